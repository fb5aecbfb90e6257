package maintenance

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config schedules the retention and rollup jobs.
type Config struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	BatchSize     int    `toml:"batch_size"`
	MaxBatches    int    `toml:"max_batches"`
	RetentionAt   string `toml:"retention_at"`
	RollupAt      string `toml:"rollup_at"`
	Timezone      string `toml:"timezone"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled       string
	RetentionDays string
	BatchSize     string
	RetentionAt   string
	RollupAt      string
	Timezone      string
}

// RetentionWindow returns how long audit entries are kept.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Location returns the timezone job times are expressed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	c.Enabled = overlay.Enabled
	if overlay.RetentionDays != 0 {
		c.RetentionDays = overlay.RetentionDays
	}
	if overlay.BatchSize != 0 {
		c.BatchSize = overlay.BatchSize
	}
	if overlay.MaxBatches != 0 {
		c.MaxBatches = overlay.MaxBatches
	}
	if overlay.RetentionAt != "" {
		c.RetentionAt = overlay.RetentionAt
	}
	if overlay.RollupAt != "" {
		c.RollupAt = overlay.RollupAt
	}
	if overlay.Timezone != "" {
		c.Timezone = overlay.Timezone
	}
}

func (c *Config) loadDefaults() {
	if c.RetentionDays == 0 {
		c.RetentionDays = 30
	}
	if c.BatchSize == 0 {
		c.BatchSize = 500
	}
	if c.MaxBatches == 0 {
		c.MaxBatches = 100
	}
	if c.RetentionAt == "" {
		c.RetentionAt = "02:00"
	}
	if c.RollupAt == "" {
		c.RollupAt = "03:00"
	}
	if c.Timezone == "" {
		c.Timezone = "America/Los_Angeles"
	}
}

func (c *Config) loadEnv(env *Env) error {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			enabled, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.Enabled, err)
			}
			c.Enabled = enabled
		}
	}
	if env.RetentionDays != "" {
		if v := os.Getenv(env.RetentionDays); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.RetentionDays, err)
			}
			c.RetentionDays = n
		}
	}
	if env.BatchSize != "" {
		if v := os.Getenv(env.BatchSize); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.BatchSize, err)
			}
			c.BatchSize = n
		}
	}
	if env.RetentionAt != "" {
		if v := os.Getenv(env.RetentionAt); v != "" {
			c.RetentionAt = v
		}
	}
	if env.RollupAt != "" {
		if v := os.Getenv(env.RollupAt); v != "" {
			c.RollupAt = v
		}
	}
	if env.Timezone != "" {
		if v := os.Getenv(env.Timezone); v != "" {
			c.Timezone = v
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be positive")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.MaxBatches < 1 {
		return fmt.Errorf("max_batches must be positive")
	}
	if _, err := ParseClock(c.RetentionAt); err != nil {
		return fmt.Errorf("retention_at: %w", err)
	}
	if _, err := ParseClock(c.RollupAt); err != nil {
		return fmt.Errorf("rollup_at: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	return nil
}
