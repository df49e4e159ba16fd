package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"authstatus-go/internal/auth"
	"authstatus-go/internal/cache"
	"authstatus-go/internal/config"
	"authstatus-go/internal/logging"
	"authstatus-go/internal/session"
	"authstatus-go/internal/status"
	"authstatus-go/internal/storage"
	"authstatus-go/internal/twitter"
)

// Application holds all the major components of the service.
type Application struct {
	Config        *config.Config
	Logger        zerolog.Logger
	Storage       *storage.SQLiteStorage
	Tokens        *auth.TokenStore
	OAuth         *auth.OAuthManager
	Checker       *status.Checker
	SessionStore  session.Store
	HTTPServer    *http.Server
	MetricsServer *http.Server
}

// New creates and initializes a new Application instance.
func New(cfg *config.Config, logger zerolog.Logger) (*Application, error) {
	// Setup: Database
	store, err := storage.NewSQLiteStorage(storage.Config{
		Path:            cfg.DB.Path,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime.Duration,
		BusyTimeout:     cfg.DB.BusyTimeout.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Setup: Twitter client
	twitterClient := twitter.NewClient(twitter.Config{
		ClientID:     cfg.Twitter.ClientID,
		ClientSecret: cfg.Twitter.ClientSecret,
		RedirectURL:  cfg.Twitter.RedirectURL,
		Timeout:      cfg.Twitter.RequestTimeout.Duration,
	}, logging.WithComponent(logger, "twitter"))

	// Setup: Token lifecycle
	tokenStore := auth.NewTokenStore(store, []byte(cfg.EncryptionKey))
	refresher := auth.NewRefresher(tokenStore, twitterClient,
		cfg.Status.RefreshThreshold.Duration, logging.WithComponent(logger, "refresher"))

	// Setup: Status checker with its process-local cache
	checker := status.NewChecker(tokenStore, refresher, twitterClient, cache.New(),
		status.TTLPolicy{
			Success:   cfg.Status.SuccessTTL.Duration,
			Negative:  cfg.Status.NegativeTTL.Duration,
			RateLimit: cfg.Status.RateLimitTTL.Duration,
		},
		cfg.Status.RefreshThreshold.Duration,
		logging.WithComponent(logger, "status"))

	// Setup: OAuth connect flow
	oauthManager := auth.NewOAuthManager(twitterClient, tokenStore,
		auth.NewInMemoryPKCEStore(), auth.NewInMemoryStateStore(),
		logging.WithComponent(logger, "oauth"))

	// Setup: Session store
	sessionStore := session.NewInMemoryStore()

	// Setup: HTTP server for metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Storage:       store,
		Tokens:        tokenStore,
		OAuth:         oauthManager,
		Checker:       checker,
		SessionStore:  sessionStore,
		MetricsServer: metricsServer,
	}

	// Setup: Main HTTP server
	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/healthz", app.handleHealthz)
	httpMux.HandleFunc("/api/session", app.handleCreateSession)

	httpMux.Handle("/api/twitter/status", app.requireAuth(http.HandlerFunc(app.handleStatus)))
	httpMux.Handle("/api/twitter/connect", app.requireAuth(http.HandlerFunc(app.handleConnect)))
	httpMux.Handle("/api/twitter/callback", app.requireAuth(http.HandlerFunc(app.handleCallback)))
	httpMux.Handle("/api/twitter/disconnect", app.requireAuth(http.HandlerFunc(app.handleDisconnect)))

	app.HTTPServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: httpMux,
	}

	return app, nil
}

// Start begins the application's services.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.Info().Msg("starting application services")

	go func() {
		a.Logger.Info().Str("addr", a.MetricsServer.Addr).Msg("starting metrics server")
		if err := a.MetricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting HTTP server")
		if err := a.HTTPServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	return nil
}

// Stop gracefully shuts down the application's services.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.Info().Msg("stopping application services")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := a.MetricsServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("metrics server shutdown error")
	}

	if err := a.Storage.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("error closing database")
	}

	a.Logger.Info().Msg("application stopped gracefully")
	return nil
}
