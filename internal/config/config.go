// Package config loads application configuration and initializes logging.
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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Import  ImportConfig  `yaml:"import" mapstructure:"import"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeocodeConfig configures the geocoding provider and batch behavior.
type GeocodeConfig struct {
	Provider        string  `yaml:"provider" mapstructure:"provider"`
	Token           string  `yaml:"token" mapstructure:"token"`
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	Country         string  `yaml:"country" mapstructure:"country"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	PacingMs        int     `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	CacheEnabled    bool    `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	CacheTTLDays    int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
	RunDefaultLimit int     `yaml:"run_default_limit" mapstructure:"run_default_limit"`
	RunMaxLimit     int     `yaml:"run_max_limit" mapstructure:"run_max_limit"`
}

// ImportConfig configures spreadsheet imports.
type ImportConfig struct {
	MaxRows       int    `yaml:"max_rows" mapstructure:"max_rows"`
	GeocodeOnLoad bool   `yaml:"geocode_on_load" mapstructure:"geocode_on_load"`
	MappingFile   string `yaml:"mapping_file" mapstructure:"mapping_file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("JOBMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("geocode.provider", "mapbox")
	v.SetDefault("geocode.token", "")
	v.SetDefault("geocode.base_url", "")
	v.SetDefault("geocode.country", "us")
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.rate_limit", 0)
	v.SetDefault("geocode.max_attempts", 1)
	v.SetDefault("geocode.concurrency", 5)
	v.SetDefault("geocode.pacing_ms", 120)
	v.SetDefault("geocode.cache_enabled", false)
	v.SetDefault("geocode.cache_ttl_days", 90)
	v.SetDefault("geocode.run_default_limit", 50)
	v.SetDefault("geocode.run_max_limit", 500)
	v.SetDefault("import.max_rows", 1000)
	v.SetDefault("import.geocode_on_load", false)
	v.SetDefault("import.mapping_file", "")

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

// Validate checks the settings a command needs. mode is one of "serve",
// "import", "geocode" or "report".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "import", "geocode", "report":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for the postgres driver")
	}
	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		errs = append(errs, "store.driver must be postgres or sqlite")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}
	if mode == "serve" || mode == "geocode" {
		if c.Geocode.Concurrency < 1 || c.Geocode.Concurrency > 50 {
			errs = append(errs, "geocode.concurrency must be between 1 and 50")
		}
		if c.Geocode.MaxAttempts < 1 || c.Geocode.MaxAttempts > 10 {
			errs = append(errs, "geocode.max_attempts must be between 1 and 10")
		}
		if c.Geocode.PacingMs < 0 {
			errs = append(errs, "geocode.pacing_ms must be >= 0")
		}
		if c.Geocode.RunMaxLimit < 1 {
			errs = append(errs, "geocode.run_max_limit must be >= 1")
		}
	}
	if mode == "import" && c.Import.MaxRows < 1 {
		errs = append(errs, "import.max_rows must be >= 1")
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
