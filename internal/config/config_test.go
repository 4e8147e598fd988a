package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Server.RatePerSecond)
	assert.Equal(t, 24, cfg.Pricing.MarketStaleHours)
	assert.Equal(t, 2, cfg.Pricing.CollabTimeoutSecs)
	assert.Equal(t, 72, cfg.Pricing.QuoteValidityHours)
	assert.Equal(t, "default", cfg.Pricing.DefaultSegment)
	assert.InDelta(t, 0.5, cfg.Pricing.SystemLoad, 0.001)
	assert.Equal(t, 1000, cfg.Experiment.DefaultSampleSize)
	assert.InDelta(t, 0.05, cfg.Experiment.DefaultSignificance, 0.001)
	assert.Equal(t, 90, cfg.Optimize.ElasticityWindowDays)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
server:
  port: 9090
pricing:
  quote_validity_hours: 48
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 48, cfg.Pricing.QuoteValidityHours)
	// Defaults still apply for unset values
	assert.Equal(t, 24, cfg.Pricing.MarketStaleHours)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PRICING_STORE_DRIVER", "postgres")
	t.Setenv("PRICING_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PRICING_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestDurationHelpers(t *testing.T) {
	cfg := PricingConfig{MarketStaleHours: 24, CollabTimeoutSecs: 2, QuoteValidityHours: 72}
	assert.Equal(t, "24h0m0s", cfg.MarketStaleAfter().String())
	assert.Equal(t, "2s", cfg.CollabTimeout().String())
	assert.Equal(t, "72h0m0s", cfg.QuoteValidity().String())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Pricing.MarketStaleHours = 24
	cfg.Pricing.QuoteValidityHours = 72
	cfg.Pricing.SystemLoad = 0.5
	cfg.Experiment.DefaultSampleSize = 1000
	cfg.Experiment.DefaultSignificance = 0.05
	cfg.Server.Port = 8080
	cfg.Server.RatePerSecond = 50
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/pricing"
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateSystemLoadBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Pricing.SystemLoad = -0.1
	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "system_load")

	cfg.Pricing.SystemLoad = 1.1
	err = cfg.Validate("cli")
	assert.Error(t, err)

	cfg.Pricing.SystemLoad = 1.0
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidateSignificanceBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Experiment.DefaultSignificance = 0
	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "default_significance")

	cfg.Experiment.DefaultSignificance = 1
	err = cfg.Validate("cli")
	assert.Error(t, err)

	cfg.Experiment.DefaultSignificance = 0.01
	assert.NoError(t, cfg.Validate("cli"))
}
