package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort      = 5000
	DefaultBodyLimit = 100 * 1024

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrMissingDatabaseURL is returned when no database URL was configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is not defined")

// Config aggregates runtime configuration resolved from multiple sources.
type Config struct {
	Host                 string
	Port                 int
	Database             DatabaseConfig
	BodyLimit            int64
	LogLevel             string
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	ReadHeaderTimeout    time.Duration
	ShutdownGracePeriod  time.Duration
}

// DatabaseConfig describes how the database connector reaches its backend.
type DatabaseConfig struct {
	Driver          string
	URL             string
	ConnectAttempts int
	RetryDelay      time.Duration
	ConnectTimeout  time.Duration
	AutoMigrate     bool
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type yamlConfig struct {
	Host                 string       `yaml:"host"`
	Port                 int          `yaml:"port"`
	Database             yamlDatabase `yaml:"database"`
	BodyLimit            int64        `yaml:"body_limit"`
	LogLevel             string       `yaml:"log_level"`
	EnableRequestLogging *bool        `yaml:"enable_request_logging"`
	RateLimit            struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	ReadHeaderTimeout   string `yaml:"read_header_timeout"`
	ShutdownGracePeriod string `yaml:"shutdown_grace_period"`
}

type yamlDatabase struct {
	Driver          string `yaml:"driver"`
	URL             string `yaml:"url"`
	ConnectAttempts int    `yaml:"connect_attempts"`
	RetryDelay      string `yaml:"retry_delay"`
	ConnectTimeout  string `yaml:"connect_timeout"`
	AutoMigrate     *bool  `yaml:"auto_migrate"`
}

// CLIOverrides holds command-line flag overrides. Nil fields were not set.
type CLIOverrides struct {
	ConfigFile string
	Host       *string
	Port       *int
}

// Load resolves the final configuration. overrides may be nil.
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Port: DefaultPort,
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			ConnectAttempts: 5,
			RetryDelay:      2 * time.Second,
			ConnectTimeout:  10 * time.Second,
			AutoMigrate:     true,
		},
		BodyLimit:            DefaultBodyLimit,
		LogLevel:             "info",
		EnableRequestLogging: true,
		ReadHeaderTimeout:    5 * time.Second,
		ShutdownGracePeriod:  10 * time.Second,
	}
}

func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Host != "" {
		cfg.Host = yamlCfg.Host
	}
	if yamlCfg.Port != 0 {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.BodyLimit > 0 {
		cfg.BodyLimit = yamlCfg.BodyLimit
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.RateLimit.RPS > 0 {
		cfg.RateLimitRPS = yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst > 0 {
		cfg.RateLimitBurst = yamlCfg.RateLimit.Burst
	}

	db := yamlCfg.Database
	if db.Driver != "" {
		cfg.Database.Driver = db.Driver
	}
	if db.URL != "" {
		cfg.Database.URL = db.URL
	}
	if db.ConnectAttempts > 0 {
		cfg.Database.ConnectAttempts = db.ConnectAttempts
	}
	if db.AutoMigrate != nil {
		cfg.Database.AutoMigrate = *db.AutoMigrate
	}

	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{db.RetryDelay, "database.retry_delay", &cfg.Database.RetryDelay},
		{db.ConnectTimeout, "database.connect_timeout", &cfg.Database.ConnectTimeout},
		{yamlCfg.ReadHeaderTimeout, "read_header_timeout", &cfg.ReadHeaderTimeout},
		{yamlCfg.ShutdownGracePeriod, "shutdown_grace_period", &cfg.ShutdownGracePeriod},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = value
	}

	return nil
}

func applyEnvConfig(cfg *Config) error {
	if host := env("HOST"); host != "" {
		cfg.Host = host
	}

	if raw := env("PORT"); raw != "" {
		port, err := parsePort(raw)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = port
	}

	if url := env("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if driver := env("DB_DRIVER"); driver != "" {
		cfg.Database.Driver = strings.ToLower(driver)
	}
	if raw := env("DB_CONNECT_ATTEMPTS"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			return fmt.Errorf("DB_CONNECT_ATTEMPTS must be a positive integer, got %q", raw)
		}
		cfg.Database.ConnectAttempts = value
	}
	if raw := env("DB_RETRY_DELAY"); raw != "" {
		value, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("DB_RETRY_DELAY: %w", err)
		}
		cfg.Database.RetryDelay = value
	}
	if raw := env("DB_AUTO_MIGRATE"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("DB_AUTO_MIGRATE: %w", err)
		}
		cfg.Database.AutoMigrate = value
	}

	if raw := env("BODY_LIMIT"); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			return fmt.Errorf("BODY_LIMIT must be a positive integer, got %q", raw)
		}
		cfg.BodyLimit = value
	}
	if level := env("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if raw := env("REQUEST_LOGGING"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("REQUEST_LOGGING: %w", err)
		}
		cfg.EnableRequestLogging = value
	}
	if raw := env("RATE_LIMIT_RPS"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			return fmt.Errorf("RATE_LIMIT_RPS must be a non-negative number, got %q", raw)
		}
		cfg.RateLimitRPS = value
	}
	if raw := env("RATE_LIMIT_BURST"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return fmt.Errorf("RATE_LIMIT_BURST must be a non-negative integer, got %q", raw)
		}
		cfg.RateLimitBurst = value
	}

	return nil
}

func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Host != nil && *overrides.Host != "" {
		cfg.Host = *overrides.Host
	}
	if overrides.Port != nil && *overrides.Port != 0 {
		cfg.Port = *overrides.Port
	}
}

func validateConfig(cfg Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return port, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
