package auth

import (
	"fmt"
	"os"
)

// Config holds identity settings. When Issuer is empty the middleware trusts the
// X-Owner-ID and X-Organization-ID headers set by an upstream gateway.
type Config struct {
	Issuer            string `toml:"issuer"`
	ClientID          string `toml:"client_id"`
	OrganizationClaim string `toml:"organization_claim"`
	DefaultOwner      string `toml:"default_owner"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Issuer            string
	ClientID          string
	OrganizationClaim string
	DefaultOwner      string
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
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.OrganizationClaim != "" {
		c.OrganizationClaim = overlay.OrganizationClaim
	}
	if overlay.DefaultOwner != "" {
		c.DefaultOwner = overlay.DefaultOwner
	}
}

func (c *Config) loadDefaults() {
	if c.OrganizationClaim == "" {
		c.OrganizationClaim = "org_id"
	}
	if c.DefaultOwner == "" {
		c.DefaultOwner = "local"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Issuer != "" {
		if v := os.Getenv(env.Issuer); v != "" {
			c.Issuer = v
		}
	}
	if env.ClientID != "" {
		if v := os.Getenv(env.ClientID); v != "" {
			c.ClientID = v
		}
	}
	if env.OrganizationClaim != "" {
		if v := os.Getenv(env.OrganizationClaim); v != "" {
			c.OrganizationClaim = v
		}
	}
	if env.DefaultOwner != "" {
		if v := os.Getenv(env.DefaultOwner); v != "" {
			c.DefaultOwner = v
		}
	}
}

func (c *Config) validate() error {
	if c.Issuer != "" && c.ClientID == "" {
		return fmt.Errorf("client_id required when issuer is set")
	}
	return nil
}
