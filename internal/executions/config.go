package executions

import (
	"fmt"
	"os"
	"time"
)

// Config holds execution tracking settings. A zero ProcessingTimeout disables
// the supervisor.
type Config struct {
	PollInterval      string `toml:"poll_interval"`
	ProcessingTimeout string `toml:"processing_timeout"`
	SweepInterval     string `toml:"sweep_interval"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	PollInterval      string
	ProcessingTimeout string
	SweepInterval     string
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
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
	if overlay.ProcessingTimeout != "" {
		c.ProcessingTimeout = overlay.ProcessingTimeout
	}
	if overlay.SweepInterval != "" {
		c.SweepInterval = overlay.SweepInterval
	}
}

// PollIntervalDuration parses PollInterval. Call after Finalize.
func (c *Config) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// ProcessingTimeoutDuration parses ProcessingTimeout. Call after Finalize.
func (c *Config) ProcessingTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ProcessingTimeout)
	return d
}

// SweepIntervalDuration parses SweepInterval. Call after Finalize.
func (c *Config) SweepIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	return d
}

func (c *Config) loadDefaults() {
	if c.PollInterval == "" {
		c.PollInterval = "1s"
	}
	if c.ProcessingTimeout == "" {
		c.ProcessingTimeout = "0s"
	}
	if c.SweepInterval == "" {
		c.SweepInterval = "1m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.PollInterval != "" {
		if v := os.Getenv(env.PollInterval); v != "" {
			c.PollInterval = v
		}
	}
	if env.ProcessingTimeout != "" {
		if v := os.Getenv(env.ProcessingTimeout); v != "" {
			c.ProcessingTimeout = v
		}
	}
	if env.SweepInterval != "" {
		if v := os.Getenv(env.SweepInterval); v != "" {
			c.SweepInterval = v
		}
	}
}

func (c *Config) validate() error {
	poll, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return fmt.Errorf("invalid poll_interval: %w", err)
	}
	if poll <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	timeout, err := time.ParseDuration(c.ProcessingTimeout)
	if err != nil {
		return fmt.Errorf("invalid processing_timeout: %w", err)
	}
	if timeout < 0 {
		return fmt.Errorf("processing_timeout must not be negative")
	}

	sweep, err := time.ParseDuration(c.SweepInterval)
	if err != nil {
		return fmt.Errorf("invalid sweep_interval: %w", err)
	}
	if timeout > 0 && sweep <= 0 {
		return fmt.Errorf("sweep_interval must be positive when processing_timeout is set")
	}
	return nil
}
