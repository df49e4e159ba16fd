package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for the service.
type Config struct {
	HTTPPort      int    `json:"http_port" validate:"gte=0"`
	MetricsPort   int    `json:"metrics_port" validate:"gte=0"`
	LogLevel      string `json:"log_level" validate:"oneof=debug info warn error"`
	EncryptionKey string `json:"encryption_key" validate:"required,min=32"`

	DB struct {
		Path            string   `json:"path" validate:"required"`
		MaxOpenConns    int      `json:"max_open_conns" validate:"min=1"`
		MaxIdleConns    int      `json:"max_idle_conns" validate:"min=0"`
		ConnMaxLifetime Duration `json:"conn_max_lifetime" validate:"min=1m"`
		BusyTimeout     Duration `json:"busy_timeout" validate:"min=100ms"`
	} `json:"db"`

	Session struct {
		TTL            Duration `json:"ttl" validate:"min=1m"`
		InternalSecret string   `json:"internal_secret" validate:"required,min=16"`
	} `json:"session"`

	Twitter struct {
		ClientID       string   `json:"client_id" validate:"required"`
		ClientSecret   string   `json:"client_secret"`
		RedirectURL    string   `json:"redirect_url" validate:"required,url"`
		DashboardURL   string   `json:"dashboard_url" validate:"required,url"`
		RequestTimeout Duration `json:"request_timeout" validate:"min=1s"`
	} `json:"twitter"`

	Status struct {
		RefreshThreshold Duration `json:"refresh_threshold" validate:"min=1s"`
		SuccessTTL       Duration `json:"success_ttl" validate:"min=1s"`
		NegativeTTL      Duration `json:"negative_ttl" validate:"min=1s"`
		RateLimitTTL     Duration `json:"rate_limit_ttl" validate:"min=1s"`
	} `json:"status"`
}

// Duration is a wrapper around time.Duration that implements JSON marshaling/unmarshaling
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load reads configuration from a file and overrides with environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with the tuning constants the
// service ships with. Anything present in the config file wins.
func defaults() *Config {
	cfg := &Config{
		HTTPPort:    8080,
		MetricsPort: 9090,
		LogLevel:    "info",
	}
	cfg.DB.MaxOpenConns = 10
	cfg.DB.MaxIdleConns = 5
	cfg.DB.ConnMaxLifetime = Duration{time.Hour}
	cfg.DB.BusyTimeout = Duration{5 * time.Second}
	cfg.Session.TTL = Duration{24 * time.Hour}
	cfg.Twitter.RequestTimeout = Duration{10 * time.Second}
	cfg.Status.RefreshThreshold = Duration{5 * time.Minute}
	cfg.Status.SuccessTTL = Duration{5 * time.Minute}
	cfg.Status.NegativeTTL = Duration{45 * time.Second}
	cfg.Status.RateLimitTTL = Duration{15 * time.Minute}
	return cfg
}

// applyEnvOverrides overrides config fields with environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		var err error
		c.HTTPPort, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing HTTP_PORT: %w", err)
		}
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		var err error
		c.MetricsPort, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing METRICS_PORT: %w", err)
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DB.Path = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
	if v := os.Getenv("SESSION_INTERNAL_SECRET"); v != "" {
		c.Session.InternalSecret = v
	}
	if v := os.Getenv("TWITTER_CLIENT_ID"); v != "" {
		c.Twitter.ClientID = v
	}
	if v := os.Getenv("TWITTER_CLIENT_SECRET"); v != "" {
		c.Twitter.ClientSecret = v
	}
	if v := os.Getenv("TWITTER_REDIRECT_URL"); v != "" {
		c.Twitter.RedirectURL = v
	}

	return nil
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	validate := validator.New()

	// Register custom validation for Duration
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if duration, ok := field.Interface().(Duration); ok {
			return duration.Duration
		}
		return nil
	}, Duration{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if c.DB.MaxIdleConns > c.DB.MaxOpenConns {
		return fmt.Errorf("db.max_idle_conns cannot be greater than db.max_open_conns")
	}

	return nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
