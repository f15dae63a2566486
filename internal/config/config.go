package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Learn     LearnConfig     `yaml:"learn" mapstructure:"learn"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Schema    SchemaConfig    `yaml:"schema" mapstructure:"schema"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
}

// StoreConfig configures the pattern database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RatePerSec  float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LearnConfig configures how confirmations are written back.
type LearnConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ReconcileConfig configures suggestion scoring and store protection.
type ReconcileConfig struct {
	ConfidencePivot  float64 `yaml:"confidence_pivot" mapstructure:"confidence_pivot"`
	BreakerFailures  int     `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// SchemaConfig points at an entities YAML file that extends the built-in
// entity registry.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ImportConfig holds defaults for reading import files.
type ImportConfig struct {
	Charset string `yaml:"charset" mapstructure:"charset"`
	Sheet   string `yaml:"sheet" mapstructure:"sheet"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECONCILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reconcile.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_per_sec", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.timeout_secs", 30)
	v.SetDefault("learn.concurrency", 8)
	v.SetDefault("learn.timeout_secs", 10)
	v.SetDefault("reconcile.confidence_pivot", 2.0)
	v.SetDefault("reconcile.breaker_failures", 5)
	v.SetDefault("reconcile.breaker_reset_secs", 30)

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

// Validate checks the settings a command needs. Mode is "serve" for the
// HTTP API or "cli" for the one-shot commands.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RatePerSec <= 0 {
			errs = append(errs, "server.rate_per_sec must be > 0")
		}
		if c.Server.RateBurst <= 0 {
			errs = append(errs, "server.rate_burst must be > 0")
		}
	case "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Store.MinConns > c.Store.MaxConns && c.Store.MaxConns > 0 {
		errs = append(errs, "store.min_conns must not exceed store.max_conns")
	}
	if c.Learn.Concurrency < 1 || c.Learn.Concurrency > 64 {
		errs = append(errs, "learn.concurrency must be between 1 and 64")
	}
	if c.Learn.TimeoutSecs <= 0 {
		errs = append(errs, "learn.timeout_secs must be > 0")
	}
	if c.Reconcile.ConfidencePivot <= 0 {
		errs = append(errs, "reconcile.confidence_pivot must be > 0")
	}
	if c.Reconcile.BreakerFailures < 0 || c.Reconcile.BreakerResetSecs < 0 {
		errs = append(errs, "reconcile.breaker_* values must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
