package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/sift/internal/executions"
	"github.com/JaimeStill/sift/internal/extraction"
	"github.com/JaimeStill/sift/pkg/auth"
	"github.com/JaimeStill/sift/pkg/database"
	"github.com/JaimeStill/sift/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvSiftEnv             = "SIFT_ENV"
	EnvSiftStore           = "SIFT_STORE"
	EnvSiftLogLevel        = "SIFT_LOG_LEVEL"
	EnvSiftShutdownTimeout = "SIFT_SHUTDOWN_TIMEOUT"
	EnvSiftVersion         = "SIFT_VERSION"
)

// Store selects the persistence driver for domain records.
type Store string

const (
	StorePostgres Store = "postgres"
	StoreMemory   Store = "memory"
)

var databaseEnv = &database.Env{
	Host:            "SIFT_DB_HOST",
	Port:            "SIFT_DB_PORT",
	Name:            "SIFT_DB_NAME",
	User:            "SIFT_DB_USER",
	Password:        "SIFT_DB_PASSWORD",
	SSLMode:         "SIFT_DB_SSL_MODE",
	MaxOpenConns:    "SIFT_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "SIFT_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "SIFT_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "SIFT_DB_CONN_TIMEOUT",
	PingAttempts:    "SIFT_DB_PING_ATTEMPTS",
}

var storageEnv = &storage.Env{
	Provider:         "SIFT_STORAGE_PROVIDER",
	ContainerName:    "SIFT_STORAGE_CONTAINER_NAME",
	ConnectionString: "SIFT_STORAGE_CONNECTION_STRING",
	ServiceURL:       "SIFT_STORAGE_SERVICE_URL",
	PresignTTL:       "SIFT_STORAGE_PRESIGN_TTL",
}

// Config is the root configuration for the Sift service.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	API             APIConfig         `toml:"api"`
	Extraction      extraction.Config `toml:"extraction"`
	Executions      executions.Config `toml:"executions"`
	Auth            auth.Config       `toml:"auth"`
	Store           Store             `toml:"store"`
	LogLevel        string            `toml:"log_level"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the SIFT_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvSiftEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Level returns LogLevel as a slog.Level. Call after Load.
func (c *Config) Level() slog.Level {
	var level slog.Level
	level.UnmarshalText([]byte(c.LogLevel))
	return level
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.Store != "" {
		c.Store = overlay.Store
	}
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Extraction.Merge(&overlay.Extraction)
	c.Executions.Merge(&overlay.Executions)
	c.Auth.Merge(&overlay.Auth)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if c.Store == StorePostgres {
		if err := c.Database.Finalize(databaseEnv); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Extraction.Finalize(extractionEnv); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if err := c.Executions.Finalize(executionsEnv); err != nil {
		return fmt.Errorf("executions: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.Store == "" {
		c.Store = StorePostgres
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvSiftStore); v != "" {
		c.Store = Store(v)
	}
	if v := os.Getenv(EnvSiftLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvSiftShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvSiftVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("invalid store: %q", c.Store)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvSiftEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
