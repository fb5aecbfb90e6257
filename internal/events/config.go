package events

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds RabbitMQ connection and consumption settings. An empty URL
// leaves the broker disabled.
type Config struct {
	URL          string `toml:"url"`
	Exchange     string `toml:"exchange"`
	Queue        string `toml:"queue"`
	Prefetch     int    `toml:"prefetch"`
	Concurrency  int    `toml:"concurrency"`
	MaxRetries   int    `toml:"max_retries"`
	RetryDelay   string `toml:"retry_delay"`
	RetryPrefix  string `toml:"retry_exchange_prefix"`
	DialTimeout  string `toml:"dial_timeout"`
	MaxReconnect string `toml:"max_reconnect_backoff"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	URL         string
	Exchange    string
	Queue       string
	Prefetch    string
	Concurrency string
	MaxRetries  string
	RetryDelay  string
}

// Enabled reports whether a broker URL is configured.
func (c *Config) Enabled() bool {
	return c.URL != ""
}

// RetryExchange is the exchange failed deliveries are republished to.
func (c *Config) RetryExchange() string {
	return c.RetryPrefix + c.Queue
}

// RetryDelayDuration returns RetryDelay as a time.Duration.
func (c *Config) RetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryDelay)
	return d
}

// DialTimeoutDuration returns DialTimeout as a time.Duration.
func (c *Config) DialTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DialTimeout)
	return d
}

// MaxReconnectDuration returns MaxReconnect as a time.Duration.
func (c *Config) MaxReconnectDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxReconnect)
	return d
}

// Workers returns the worker pool size, never above the prefetch count.
func (c *Config) Workers() int {
	if c.Prefetch > 0 && c.Concurrency > c.Prefetch {
		return c.Prefetch
	}
	return c.Concurrency
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
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.Exchange != "" {
		c.Exchange = overlay.Exchange
	}
	if overlay.Queue != "" {
		c.Queue = overlay.Queue
	}
	if overlay.Prefetch != 0 {
		c.Prefetch = overlay.Prefetch
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.RetryDelay != "" {
		c.RetryDelay = overlay.RetryDelay
	}
	if overlay.RetryPrefix != "" {
		c.RetryPrefix = overlay.RetryPrefix
	}
	if overlay.DialTimeout != "" {
		c.DialTimeout = overlay.DialTimeout
	}
	if overlay.MaxReconnect != "" {
		c.MaxReconnect = overlay.MaxReconnect
	}
}

func (c *Config) loadDefaults() {
	if c.Exchange == "" {
		c.Exchange = "terra"
	}
	if c.Queue == "" {
		c.Queue = "terra-verification"
	}
	if c.Prefetch == 0 {
		c.Prefetch = 16
	}
	if c.Concurrency == 0 {
		c.Concurrency = 8
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.RetryDelay == "" {
		c.RetryDelay = "30s"
	}
	if c.RetryPrefix == "" {
		c.RetryPrefix = "terra-retry."
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "60s"
	}
	if c.MaxReconnect == "" {
		c.MaxReconnect = "30s"
	}
}

func (c *Config) loadEnv(env *Env) error {
	if env.URL != "" {
		if v := os.Getenv(env.URL); v != "" {
			c.URL = v
		}
	}
	if env.Exchange != "" {
		if v := os.Getenv(env.Exchange); v != "" {
			c.Exchange = v
		}
	}
	if env.Queue != "" {
		if v := os.Getenv(env.Queue); v != "" {
			c.Queue = v
		}
	}
	if env.RetryDelay != "" {
		if v := os.Getenv(env.RetryDelay); v != "" {
			c.RetryDelay = v
		}
	}

	ints := []struct {
		name   string
		target *int
	}{
		{env.Prefetch, &c.Prefetch},
		{env.Concurrency, &c.Concurrency},
		{env.MaxRetries, &c.MaxRetries},
	}
	for _, i := range ints {
		if i.name == "" {
			continue
		}
		if v := os.Getenv(i.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", i.name, err)
			}
			*i.target = n
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			return fmt.Errorf("invalid url: must use amqp or amqps scheme")
		}
	}
	if c.Prefetch < 1 {
		return fmt.Errorf("prefetch must be positive")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	for name, v := range map[string]string{
		"retry_delay":           c.RetryDelay,
		"dial_timeout":          c.DialTimeout,
		"max_reconnect_backoff": c.MaxReconnect,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}
