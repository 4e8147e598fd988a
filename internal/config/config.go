package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Experiment ExperimentConfig `yaml:"experiment" mapstructure:"experiment"`
	Optimize   OptimizeConfig   `yaml:"optimize" mapstructure:"optimize"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// MonitoringConfig configures the background metrics checker.
type MonitoringConfig struct {
	Enabled                 bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	AcceptanceRateThreshold float64 `yaml:"acceptance_rate_threshold" mapstructure:"acceptance_rate_threshold"`
	ExpiredBacklogThreshold int     `yaml:"expired_backlog_threshold" mapstructure:"expired_backlog_threshold"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PricingConfig configures the price calculation engine.
type PricingConfig struct {
	MarketStaleHours    int     `yaml:"market_stale_hours" mapstructure:"market_stale_hours"`
	CollabTimeoutSecs   int     `yaml:"collab_timeout_secs" mapstructure:"collab_timeout_secs"`
	QuoteValidityHours  int     `yaml:"quote_validity_hours" mapstructure:"quote_validity_hours"`
	DefaultSegment      string  `yaml:"default_segment" mapstructure:"default_segment"`
	SystemLoad          float64 `yaml:"system_load" mapstructure:"system_load"`
	ExpirySweepMins     int     `yaml:"expiry_sweep_mins" mapstructure:"expiry_sweep_mins"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
	RetryMaxAttempts    int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBackoffMillis  int     `yaml:"retry_backoff_millis" mapstructure:"retry_backoff_millis"`
}

// MarketStaleAfter returns the market-data freshness window.
func (c PricingConfig) MarketStaleAfter() time.Duration {
	return time.Duration(c.MarketStaleHours) * time.Hour
}

// CollabTimeout returns the per-lookup timeout for collaborator reads.
func (c PricingConfig) CollabTimeout() time.Duration {
	return time.Duration(c.CollabTimeoutSecs) * time.Second
}

// QuoteValidity returns how long a new quote stays open.
func (c PricingConfig) QuoteValidity() time.Duration {
	return time.Duration(c.QuoteValidityHours) * time.Hour
}

// BreakerCooldown returns how long an open collaborator breaker rejects
// before probing.
func (c PricingConfig) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSecs) * time.Second
}

// RetryBackoff returns the initial backoff for pricing-model lookup
// retries.
func (c PricingConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMillis) * time.Millisecond
}

// ExperimentConfig configures experiment defaults.
type ExperimentConfig struct {
	DefaultSampleSize   int     `yaml:"default_sample_size" mapstructure:"default_sample_size"`
	DefaultSignificance float64 `yaml:"default_significance" mapstructure:"default_significance"`
}

// OptimizeConfig configures the optimization strategies.
type OptimizeConfig struct {
	ElasticityWindowDays int `yaml:"elasticity_window_days" mapstructure:"elasticity_window_days"`
}

// CatalogConfig points at the adjustment-factor catalog file. An empty
// path means the built-in defaults.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port            int `yaml:"port" mapstructure:"port"`
	RatePerSecond   int `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst       int `yaml:"rate_burst" mapstructure:"rate_burst"`
	ShutdownSecs    int `yaml:"shutdown_secs" mapstructure:"shutdown_secs"`
	ReadTimeoutSecs int `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 50)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.shutdown_secs", 15)
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("pricing.market_stale_hours", 24)
	v.SetDefault("pricing.collab_timeout_secs", 2)
	v.SetDefault("pricing.quote_validity_hours", 72)
	v.SetDefault("pricing.default_segment", "default")
	v.SetDefault("pricing.system_load", 0.5)
	v.SetDefault("pricing.expiry_sweep_mins", 15)
	v.SetDefault("pricing.breaker_threshold", 5)
	v.SetDefault("pricing.breaker_cooldown_secs", 30)
	v.SetDefault("pricing.retry_max_attempts", 3)
	v.SetDefault("pricing.retry_backoff_millis", 200)
	v.SetDefault("experiment.default_sample_size", 1000)
	v.SetDefault("experiment.default_significance", 0.05)
	v.SetDefault("optimize.elasticity_window_days", 90)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.acceptance_rate_threshold", 0.1)
	v.SetDefault("monitoring.expired_backlog_threshold", 100)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given run mode. Shared
// bounds are checked in every mode; store and server requirements only
// where the mode needs them.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Pricing.SystemLoad < 0 || c.Pricing.SystemLoad > 1 {
		problems = append(problems, "pricing.system_load must be between 0 and 1")
	}
	if c.Pricing.MarketStaleHours <= 0 {
		problems = append(problems, "pricing.market_stale_hours must be > 0")
	}
	if c.Pricing.QuoteValidityHours <= 0 {
		problems = append(problems, "pricing.quote_validity_hours must be > 0")
	}
	if c.Experiment.DefaultSignificance <= 0 || c.Experiment.DefaultSignificance >= 1 {
		problems = append(problems, "experiment.default_significance must be in (0, 1)")
	}
	if c.Experiment.DefaultSampleSize <= 0 {
		problems = append(problems, "experiment.default_sample_size must be > 0")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RatePerSecond <= 0 {
			problems = append(problems, "server.rate_per_second must be > 0")
		}
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	case "cli":
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
