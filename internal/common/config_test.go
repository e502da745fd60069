package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flexfill.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "https://logistics.amazon.co.uk", config.Portal.BaseURL)
	assert.Equal(t, "/internal/scheduling/dsps/api/getProviderDemandData", config.Portal.DemandPath)
	assert.Equal(t, "midway-auth.amazon.com", config.Auth.AuthDomain)
	assert.Equal(t, 24*time.Hour, config.Auth.ExpiryGrace)
	assert.Equal(t, 15, config.Fetch.MaxConcurrency)
	assert.Equal(t, 7, config.Fetch.Days)
	assert.Equal(t, 10, config.Fetch.RateLimit)
	assert.Equal(t, 5, config.Status.MaxAttempts)
	assert.False(t, config.Watch.Enabled)
	assert.Empty(t, config.Alert.WebhookURL)

	require.NoError(t, Validate(config))
}

func TestLoadFromFilesOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment = "production"

[fetch]
max_concurrency = 5
days = 3

[sites]
station_prefix = "D"

[alert]
webhook_url = "https://hooks.chime.aws/incomingwebhooks/abc"
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 5, config.Fetch.MaxConcurrency)
	assert.Equal(t, 3, config.Fetch.Days)
	assert.Equal(t, "D", config.Sites.StationPrefix)
	assert.Equal(t, "https://hooks.chime.aws/incomingwebhooks/abc", config.Alert.WebhookURL)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://logistics.amazon.co.uk", config.Portal.BaseURL)
	assert.Equal(t, 10, config.Fetch.RateLimit)
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	first := writeConfig(t, "[fetch]\ndays = 3\n")
	second := writeConfig(t, "[fetch]\ndays = 14\n")

	config, err := LoadFromFiles(first, second)
	require.NoError(t, err)

	assert.Equal(t, 14, config.Fetch.Days)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "absent.toml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFromFilesMalformedTOML(t *testing.T) {
	path := writeConfig(t, "[fetch\ndays = 3")

	_, err := LoadFromFiles(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestEnvOverridesBeatFiles(t *testing.T) {
	path := writeConfig(t, "[sites]\nstation_prefix = \"D\"\n")

	t.Setenv("FLEXFILL_STATION_PREFIX", "DSS")
	t.Setenv("FLEXFILL_FETCH_MAX_CONCURRENCY", "4")
	t.Setenv("FLEXFILL_FETCH_REQUEST_TIMEOUT", "45s")
	t.Setenv("FLEXFILL_LOG_LEVEL", "debug")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "DSS", config.Sites.StationPrefix)
	assert.Equal(t, 4, config.Fetch.MaxConcurrency)
	assert.Equal(t, 45*time.Second, config.Fetch.RequestTimeout)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.Portal.BaseURL = "" }},
		{"non-url base url", func(c *Config) { c.Portal.BaseURL = "not a url" }},
		{"zero concurrency", func(c *Config) { c.Fetch.MaxConcurrency = 0 }},
		{"zero days", func(c *Config) { c.Fetch.Days = 0 }},
		{"empty output dir", func(c *Config) { c.Export.OutputDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.Error(t, Validate(config))
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, "DXE", 2, 8)

	assert.Equal(t, "DXE", config.Sites.StationPrefix)
	assert.Equal(t, 2, config.Fetch.Days)
	assert.Equal(t, 8, config.Fetch.MaxConcurrency)
}

func TestApplyFlagOverridesZeroValuesIgnored(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, "", 0, 0)

	assert.Empty(t, config.Sites.StationPrefix)
	assert.Equal(t, 7, config.Fetch.Days)
	assert.Equal(t, 15, config.Fetch.MaxConcurrency)
}
