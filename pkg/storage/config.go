package storage

import (
	"fmt"
	"net/url"
	"os"

	"github.com/JaimeStill/terra/pkg/formatting"
)

// Config holds Azure Blob Storage connection parameters.
// Either ConnectionString or ServiceURL selects the account; ServiceURL
// authenticates through the default Azure credential chain. When both are
// empty the storage system is not configured and az:// locators are refused.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	ServiceURL       string `toml:"service_url"`
	MaxBlobSize      string `toml:"max_blob_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ContainerName    string
	ConnectionString string
	ServiceURL       string
	MaxBlobSize      string
}

// Configured reports whether an account has been selected.
func (c *Config) Configured() bool {
	return c.ConnectionString != "" || c.ServiceURL != ""
}

// MaxBlobSizeBytes returns MaxBlobSize in bytes.
func (c *Config) MaxBlobSizeBytes() int64 {
	n, err := formatting.ParseBytes(c.MaxBlobSize)
	if err != nil {
		return 20 * 1024 * 1024
	}
	return n
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
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.ServiceURL != "" {
		c.ServiceURL = overlay.ServiceURL
	}
	if overlay.MaxBlobSize != "" {
		c.MaxBlobSize = overlay.MaxBlobSize
	}
}

func (c *Config) loadDefaults() {
	if c.ContainerName == "" {
		c.ContainerName = "cleanup-photos"
	}
	if c.MaxBlobSize == "" {
		c.MaxBlobSize = "20MB"
	}
}

func (c *Config) loadEnv(env *Env) {
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
	if env.MaxBlobSize != "" {
		if v := os.Getenv(env.MaxBlobSize); v != "" {
			c.MaxBlobSize = v
		}
	}
}

func (c *Config) validate() error {
	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	if c.ConnectionString != "" && c.ServiceURL != "" {
		return fmt.Errorf("connection_string and service_url are mutually exclusive")
	}
	if c.ServiceURL != "" {
		u, err := url.Parse(c.ServiceURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("invalid service_url: %q", c.ServiceURL)
		}
	}
	if _, err := formatting.ParseBytes(c.MaxBlobSize); err != nil {
		return fmt.Errorf("invalid max_blob_size: %w", err)
	}
	return nil
}
