package storage

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Provider names a storage backend.
type Provider string

const (
	ProviderAzure  Provider = "azure"
	ProviderMemory Provider = "memory"
)

// Config holds blob storage connection parameters.
//
// The azure provider authenticates with ConnectionString when set. Otherwise it
// connects to ServiceURL with the default Azure token credential chain and signs
// presigned URLs with a user delegation key.
type Config struct {
	Provider         Provider `toml:"provider"`
	ContainerName    string   `toml:"container_name"`
	ConnectionString string   `toml:"connection_string"`
	ServiceURL       string   `toml:"service_url"`
	PresignTTL       string   `toml:"presign_ttl"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider         string
	ContainerName    string
	ConnectionString string
	ServiceURL       string
	PresignTTL       string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.ServiceURL != "" {
		c.ServiceURL = overlay.ServiceURL
	}
	if overlay.PresignTTL != "" {
		c.PresignTTL = overlay.PresignTTL
	}
}

// PresignTTLDuration parses PresignTTL. Call after Finalize.
func (c *Config) PresignTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.PresignTTL)
	return d
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderAzure
	}
	if c.ContainerName == "" {
		c.ContainerName = "documents"
	}
	if c.PresignTTL == "" {
		c.PresignTTL = "15m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = Provider(v)
		}
	}
	if env.ContainerName != "" {
		if v := os.Getenv(env.ContainerName); v != "" {
			c.ContainerName = v
		}
	}
	if env.ConnectionString != "" {
		if v := os.Getenv(env.ConnectionString); v != "" {
			c.ConnectionString = v
		}
	}
	if env.ServiceURL != "" {
		if v := os.Getenv(env.ServiceURL); v != "" {
			c.ServiceURL = v
		}
	}
	if env.PresignTTL != "" {
		if v := os.Getenv(env.PresignTTL); v != "" {
			if _, err := strconv.Atoi(v); err == nil {
				v += "s"
			}
			c.PresignTTL = v
		}
	}
}

func (c *Config) validate() error {
	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	if _, err := time.ParseDuration(c.PresignTTL); err != nil {
		return fmt.Errorf("invalid presign_ttl: %w", err)
	}

	switch c.Provider {
	case ProviderMemory:
		return nil
	case ProviderAzure:
		if c.ConnectionString == "" && c.ServiceURL == "" {
			return fmt.Errorf("connection_string or service_url required for azure provider")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage provider %q", c.Provider)
	}
}
