package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/terra/internal/events"
	"github.com/JaimeStill/terra/internal/maintenance"
	"github.com/JaimeStill/terra/pkg/database"
	"github.com/JaimeStill/terra/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	EnvTerraEnv             = "TERRA_ENV"
	EnvTerraShutdownTimeout = "TERRA_SHUTDOWN_TIMEOUT"
	EnvTerraVersion         = "TERRA_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "TERRA_DB_HOST",
	Port:            "TERRA_DB_PORT",
	Name:            "TERRA_DB_NAME",
	User:            "TERRA_DB_USER",
	Password:        "TERRA_DB_PASSWORD",
	SSLMode:         "TERRA_DB_SSL_MODE",
	MaxOpenConns:    "TERRA_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "TERRA_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "TERRA_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "TERRA_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "TERRA_STORAGE_CONTAINER_NAME",
	ConnectionString: "TERRA_STORAGE_CONNECTION_STRING",
	ServiceURL:       "TERRA_STORAGE_SERVICE_URL",
	MaxBlobSize:      "TERRA_STORAGE_MAX_BLOB_SIZE",
}

var brokerEnv = &events.Env{
	URL:         "TERRA_BROKER_URL",
	Exchange:    "TERRA_BROKER_EXCHANGE",
	Queue:       "TERRA_BROKER_QUEUE",
	Prefetch:    "TERRA_BROKER_PREFETCH",
	Concurrency: "TERRA_BROKER_CONCURRENCY",
	MaxRetries:  "TERRA_BROKER_MAX_RETRIES",
	RetryDelay:  "TERRA_BROKER_RETRY_DELAY",
}

var maintenanceEnv = &maintenance.Env{
	Enabled:       "TERRA_MAINTENANCE_ENABLED",
	RetentionDays: "TERRA_MAINTENANCE_RETENTION_DAYS",
	BatchSize:     "TERRA_MAINTENANCE_BATCH_SIZE",
	RetentionAt:   "TERRA_MAINTENANCE_RETENTION_AT",
	RollupAt:      "TERRA_MAINTENANCE_ROLLUP_AT",
	Timezone:      "TERRA_MAINTENANCE_TIMEZONE",
}

// Config is the root configuration for the Terra service.
type Config struct {
	Server          ServerConfig       `toml:"server"`
	Database        database.Config    `toml:"database"`
	Storage         storage.Config     `toml:"storage"`
	API             APIConfig          `toml:"api"`
	Verification    VerificationConfig `toml:"verification"`
	Vision          VisionConfig       `toml:"vision"`
	Broker          events.Config      `toml:"broker"`
	Maintenance     maintenance.Config `toml:"maintenance"`
	ShutdownTimeout string             `toml:"shutdown_timeout"`
	Version         string             `toml:"version"`
}

// Env returns the TERRA_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvTerraEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration. Variables in a .env file are loaded
// first without overriding the process environment.
func Load() (*Config, error) {
	if _, err := os.Stat(DotEnvFile); err == nil {
		if err := godotenv.Load(DotEnvFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
		}
	}

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
	c.Verification.Merge(&overlay.Verification)
	c.Vision.Merge(&overlay.Vision)
	c.Broker.Merge(&overlay.Broker)
	c.Maintenance.Merge(&overlay.Maintenance)
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
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Verification.Finalize(); err != nil {
		return fmt.Errorf("verification: %w", err)
	}
	if err := c.Vision.Finalize(); err != nil {
		return fmt.Errorf("vision: %w", err)
	}
	if err := c.Broker.Finalize(brokerEnv); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if err := c.Maintenance.Finalize(maintenanceEnv); err != nil {
		return fmt.Errorf("maintenance: %w", err)
	}
	return nil
}
func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvTerraShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvTerraVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
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
	if env := os.Getenv(EnvTerraEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
