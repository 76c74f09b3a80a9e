package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "app:\n  logLevel: info\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.Upstream.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Upstream.Timeout)
	assert.True(t, cfg.Upstream.CircuitBreaker.Enabled)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, PolicyReject, cfg.Submission.Policy)
	assert.Equal(t, "html", cfg.App.DefaultFormat)
	assert.Equal(t, int64(5*1024*1024), cfg.App.MaxFileSize)
	assert.Equal(t, TLSModeDisabled, cfg.Server.TLS.Mode)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestLoadConfigFileAndEnvironment(t *testing.T) {
	path := writeConfigFile(t, `
upstream:
  baseURL: "http://analyzer.internal:5000/"
  timeout: 10s
submission:
  policy: SUPERSEDE
app:
  defaultFormat: json
`)
	t.Setenv("RESUMESENSE_SERVER_PORT", "9999")
	t.Setenv("RESUMESENSE_SERVER_APIKEYS", "one, two")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://analyzer.internal:5000", cfg.Upstream.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, PolicySupersede, cfg.Submission.Policy)
	assert.Equal(t, "json", cfg.App.DefaultFormat)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, []string{"one", "two"}, cfg.Server.APIKeys)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigInvalid(t *testing.T) {
	path := writeConfigFile(t, "submission:\n  policy: queue\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid submission policy")
}

func TestLoadConfigRejectsDisabledSessionCleanup(t *testing.T) {
	path := writeConfigFile(t, "submission:\n  cleanupInterval: 0s\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleanupInterval must be positive")
}

func validConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:5000",
			Timeout: time.Minute,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 0.6,
			},
		},
		Server:     ServerConfig{Port: "8080", TLS: TLSConfig{Mode: TLSModeDisabled}},
		Submission: SubmissionConfig{
			Policy:          PolicyReject,
			SessionTTL:      30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		App: AppConfig{
			DefaultFormat:    "html",
			SupportedFormats: []string{"html", "json"},
			MaxFileSize:      1024,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:     "missing base URL",
			mutate:   func(c *Config) { c.Upstream.BaseURL = "" },
			errorMsg: "upstream base URL is required",
		},
		{
			name:     "base URL without scheme",
			mutate:   func(c *Config) { c.Upstream.BaseURL = "localhost:5000" },
			errorMsg: "must start with http:// or https://",
		},
		{
			name:     "non-positive timeout",
			mutate:   func(c *Config) { c.Upstream.Timeout = 0 },
			errorMsg: "upstream timeout must be positive",
		},
		{
			name:     "breaker threshold out of range",
			mutate:   func(c *Config) { c.Upstream.CircuitBreaker.FailureThreshold = 1.5 },
			errorMsg: "failureThreshold",
		},
		{
			name: "disabled breaker ignores threshold",
			mutate: func(c *Config) {
				c.Upstream.CircuitBreaker.Enabled = false
				c.Upstream.CircuitBreaker.FailureThreshold = 0
			},
		},
		{
			name:     "missing port",
			mutate:   func(c *Config) { c.Server.Port = "" },
			errorMsg: "server port is required",
		},
		{
			name:     "unknown policy",
			mutate:   func(c *Config) { c.Submission.Policy = "queue" },
			errorMsg: "invalid submission policy",
		},
		{
			name:     "zero session TTL",
			mutate:   func(c *Config) { c.Submission.SessionTTL = 0 },
			errorMsg: "submission sessionTTL must be positive",
		},
		{
			name:     "negative cleanup interval",
			mutate:   func(c *Config) { c.Submission.CleanupInterval = -time.Second },
			errorMsg: "submission cleanupInterval must be positive",
		},
		{
			name:     "zero max file size",
			mutate:   func(c *Config) { c.App.MaxFileSize = 0 },
			errorMsg: "max file size must be positive",
		},
		{
			name:     "unsupported default format",
			mutate:   func(c *Config) { c.App.DefaultFormat = "pdf" },
			errorMsg: "invalid default format",
		},
		{
			name:     "bad tls",
			mutate:   func(c *Config) { c.Server.TLS.Mode = TLSModeServer },
			errorMsg: "TLS configuration error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestSplitKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitKeys(" a , ,b,"))
	assert.Nil(t, splitKeys(""))
}

func TestApplyFallbacks(t *testing.T) {
	cfg := validConfig()
	cfg.Server.APIKeys = []string{"k1,k2"}
	cfg.Upstream.BaseURL = "https://analyzer.example.com//"
	cfg.Submission.Policy = "  Supersede "
	cfg.App.LogLevel = "debug"
	cfg.Observability.ServiceName = "resumesense"

	cfg.applyFallbacks()

	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, "https://analyzer.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, PolicySupersede, cfg.Submission.Policy)
	assert.True(t, cfg.Observability.ConsoleOutput)
	assert.Contains(t, cfg.Observability.ServiceInstance, "resumesense-")
}

func TestSupportsFormat(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.SupportsFormat("json"))
	assert.False(t, cfg.SupportsFormat("markdown"))
}
