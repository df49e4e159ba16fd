package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `{
	"encryption_key": "0123456789abcdef0123456789abcdef",
	"db": {"path": "/tmp/authstatus.db"},
	"session": {"internal_secret": "super-secret-value"},
	"twitter": {
		"client_id": "client-id",
		"redirect_url": "https://example.com/api/twitter/callback",
		"dashboard_url": "https://example.com/dashboard"
	}
}`

func TestLoad_ValidConfigWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/tmp/authstatus.db", cfg.DB.Path)
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Status.RefreshThreshold.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Status.SuccessTTL.Duration)
	assert.Equal(t, 45*time.Second, cfg.Status.NegativeTTL.Duration)
	assert.Equal(t, 15*time.Minute, cfg.Status.RateLimitTTL.Duration)
}

func TestLoad_FileValuesOverrideDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `{
		"http_port": 9000,
		"log_level": "debug",
		"encryption_key": "0123456789abcdef0123456789abcdef",
		"db": {"path": "/tmp/authstatus.db", "max_open_conns": 25},
		"session": {"internal_secret": "super-secret-value"},
		"twitter": {
			"client_id": "client-id",
			"redirect_url": "https://example.com/api/twitter/callback",
			"dashboard_url": "https://example.com/dashboard"
		},
		"status": {"negative_ttl": "30s"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, 30*time.Second, cfg.Status.NegativeTTL.Duration)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8888")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DB_PATH", "/data/override.db")
	t.Setenv("TWITTER_CLIENT_ID", "env-client-id")

	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.HTTPPort)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/data/override.db", cfg.DB.Path)
	assert.Equal(t, "env-client-id", cfg.Twitter.ClientID)
}

func TestLoad_InvalidEnvPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")

	_, err := Load(writeConfigFile(t, validConfig))
	assert.ErrorContains(t, err, "HTTP_PORT")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoad_MalformedJSON(t *testing.T) {
	_, err := Load(writeConfigFile(t, `{"http_port": `))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]interface{})
	}{
		{
			name: "short encryption key",
			mutate: func(m map[string]interface{}) {
				m["encryption_key"] = "too-short"
			},
		},
		{
			name: "bad log level",
			mutate: func(m map[string]interface{}) {
				m["log_level"] = "verbose"
			},
		},
		{
			name: "missing db path",
			mutate: func(m map[string]interface{}) {
				m["db"] = map[string]interface{}{"path": ""}
			},
		},
		{
			name: "redirect url not a url",
			mutate: func(m map[string]interface{}) {
				m["twitter"].(map[string]interface{})["redirect_url"] = "not a url"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(validConfig), &m))
			tt.mutate(m)
			raw, err := json.Marshal(m)
			require.NoError(t, err)

			_, err = Load(writeConfigFile(t, string(raw)))
			assert.Error(t, err)
		})
	}
}

func TestLoad_IdleConnsExceedingOpenConns(t *testing.T) {
	_, err := Load(writeConfigFile(t, `{
		"encryption_key": "0123456789abcdef0123456789abcdef",
		"db": {"path": "/tmp/authstatus.db", "max_open_conns": 2, "max_idle_conns": 5},
		"session": {"internal_secret": "super-secret-value"},
		"twitter": {
			"client_id": "client-id",
			"redirect_url": "https://example.com/api/twitter/callback",
			"dashboard_url": "https://example.com/dashboard"
		}
	}`))
	assert.ErrorContains(t, err, "max_idle_conns")
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "duration string", input: `"90s"`, want: 90 * time.Second},
		{name: "nanosecond number", input: `60000000000`, want: time.Minute},
		{name: "garbage string", input: `"soon"`, wantErr: true},
		{name: "wrong type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}
