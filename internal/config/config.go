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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Luma   LumaConfig   `yaml:"luma" mapstructure:"luma"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// LumaConfig holds event-platform API settings.
type LumaConfig struct {
	APIKey       string  `yaml:"api_key" mapstructure:"api_key"`
	CalendarID   string  `yaml:"calendar_id" mapstructure:"calendar_id"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	LookbackDays int     `yaml:"lookback_days" mapstructure:"lookback_days"`
}

// ImportConfig configures row parsing and person matching.
type ImportConfig struct {
	// Columns maps logical field names to the export file's header text.
	// Validated once per batch before any row is decoded.
	Columns map[string]string `yaml:"columns" mapstructure:"columns"`

	// FuzzyThreshold is the minimum first-name similarity (0-1) for the
	// fuzzy match stage.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`

	// MaxDownloads caps concurrent export downloads during sync.
	MaxDownloads int `yaml:"max_downloads" mapstructure:"max_downloads"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultColumns returns the logical field to header mapping for Luma exports.
func DefaultColumns() map[string]string {
	return map[string]string{
		"first_name":    "First Name",
		"last_name":     "Last Name",
		"email":         "Email",
		"school_email":  "What is your school email?",
		"phone":         "Phone Number",
		"approved":      "Order Status",
		"checked_in":    "Tickets Scanned",
		"rsvp_datetime": "Order Date/Time",
		"tracking_link": "Tracking Link",
		"gender":        "Detected Gender",
		"school":        "What school do you go to?",
		"class_year":    "What is your graduation year?",
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("luma.base_url", "https://api.lu.ma/v1")
	v.SetDefault("luma.rate_per_sec", 4.0)
	v.SetDefault("luma.lookback_days", 90)
	v.SetDefault("import.fuzzy_threshold", 0.80)
	v.SetDefault("import.max_downloads", 4)
	v.SetDefault("import.columns", DefaultColumns())
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
