package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"authstatus-go/internal/app"
	"authstatus-go/internal/config"
	"authstatus-go/internal/logging"
	"authstatus-go/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "authstatus",
	Short: "Twitter token lifecycle and status service",
	Long: `authstatus owns the Twitter credential lifecycle for the dashboard:
OAuth2 connect with PKCE, encrypted token storage, proactive refresh,
and a rate-aware cached status endpoint.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger := logging.New(logging.Config{Level: cfg.LogLevel, JSONOutput: true})

		application, err := app.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("creating application: %w", err)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if err := application.Start(ctx); err != nil {
			return fmt.Errorf("starting application: %w", err)
		}

		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		logger.Info().Msg("shutdown signal received, initiating graceful shutdown")

		return application.Stop(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [destination]",
	Short: "Write a consistent snapshot of the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Backup(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("backing up database: %w", err)
		}
		fmt.Printf("backup written to %s\n", args[0])
		return nil
	},
}

func openStorage() (*storage.SQLiteStorage, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := storage.NewSQLiteStorage(storage.Config{
		Path:            cfg.DB.Path,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime.Duration,
		BusyTimeout:     cfg.DB.BusyTimeout.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return store, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs/config.json", "path to the config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
