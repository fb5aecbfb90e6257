package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/terra/internal/ledger"
	"github.com/JaimeStill/terra/internal/verification"
	"github.com/JaimeStill/terra/internal/vision"
	"github.com/JaimeStill/terra/pkg/formatting"
)

const (
	EnvVerificationRadius       = "TERRA_VERIFICATION_RADIUS"
	EnvVerificationStageTimeout = "TERRA_VERIFICATION_STAGE_TIMEOUT"
	EnvVerificationBonus        = "TERRA_VERIFICATION_BONUS_MULTIPLIER"
	EnvLedgerMaxAttempts        = "TERRA_LEDGER_MAX_ATTEMPTS"

	EnvVisionAPIKey       = "TERRA_VISION_API_KEY"
	EnvVisionModel        = "TERRA_VISION_MODEL"
	EnvVisionMaxImageSize = "TERRA_VISION_MAX_IMAGE_SIZE"
	EnvVisionFetchTimeout = "TERRA_VISION_FETCH_TIMEOUT"
	EnvVisionBackend      = "TERRA_VISION_BACKEND"
	EnvVisionProject      = "TERRA_VISION_PROJECT"
	EnvVisionLocation     = "TERRA_VISION_LOCATION"
)

// VerificationConfig tunes the pipeline and the ledger retry policy.
type VerificationConfig struct {
	Radius            float64 `toml:"radius"`
	StageTimeout      string  `toml:"stage_timeout"`
	BonusMultiplier   float64 `toml:"bonus_multiplier"`
	LedgerMaxAttempts int     `toml:"ledger_max_attempts"`
	LedgerBaseDelay   string  `toml:"ledger_base_delay"`
	LedgerMaxDelay    string  `toml:"ledger_max_delay"`
}

// Pipeline returns the pipeline settings.
func (c *VerificationConfig) Pipeline() verification.Config {
	d, _ := time.ParseDuration(c.StageTimeout)
	return verification.Config{Radius: c.Radius, StageTimeout: d}
}

// Retry returns the ledger retry policy.
func (c *VerificationConfig) Retry() ledger.RetryConfig {
	base, _ := time.ParseDuration(c.LedgerBaseDelay)
	maxDelay, _ := time.ParseDuration(c.LedgerMaxDelay)
	return ledger.RetryConfig{
		MaxAttempts: c.LedgerMaxAttempts,
		BaseDelay:   base,
		MaxDelay:    maxDelay,
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *VerificationConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *VerificationConfig) Merge(overlay *VerificationConfig) {
	if overlay.Radius != 0 {
		c.Radius = overlay.Radius
	}
	if overlay.StageTimeout != "" {
		c.StageTimeout = overlay.StageTimeout
	}
	if overlay.BonusMultiplier != 0 {
		c.BonusMultiplier = overlay.BonusMultiplier
	}
	if overlay.LedgerMaxAttempts != 0 {
		c.LedgerMaxAttempts = overlay.LedgerMaxAttempts
	}
	if overlay.LedgerBaseDelay != "" {
		c.LedgerBaseDelay = overlay.LedgerBaseDelay
	}
	if overlay.LedgerMaxDelay != "" {
		c.LedgerMaxDelay = overlay.LedgerMaxDelay
	}
}

func (c *VerificationConfig) loadDefaults() {
	if c.Radius == 0 {
		c.Radius = verification.DefaultRadius
	}
	if c.StageTimeout == "" {
		c.StageTimeout = verification.DefaultStageTimeout.String()
	}
	if c.BonusMultiplier == 0 {
		c.BonusMultiplier = ledger.DefaultBonus
	}

	def := ledger.DefaultRetryConfig()
	if c.LedgerMaxAttempts == 0 {
		c.LedgerMaxAttempts = def.MaxAttempts
	}
	if c.LedgerBaseDelay == "" {
		c.LedgerBaseDelay = def.BaseDelay.String()
	}
	if c.LedgerMaxDelay == "" {
		c.LedgerMaxDelay = def.MaxDelay.String()
	}
}

func (c *VerificationConfig) loadEnv() error {
	if v := os.Getenv(EnvVerificationRadius); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvVerificationRadius, err)
		}
		c.Radius = r
	}
	if v := os.Getenv(EnvVerificationStageTimeout); v != "" {
		c.StageTimeout = v
	}
	if v := os.Getenv(EnvVerificationBonus); v != "" {
		b, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvVerificationBonus, err)
		}
		c.BonusMultiplier = b
	}
	if v := os.Getenv(EnvLedgerMaxAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvLedgerMaxAttempts, err)
		}
		c.LedgerMaxAttempts = n
	}
	return nil
}

func (c *VerificationConfig) validate() error {
	if c.Radius <= 0 {
		return fmt.Errorf("radius must be positive")
	}
	if c.BonusMultiplier <= 0 {
		return fmt.Errorf("bonus_multiplier must be positive")
	}
	if c.LedgerMaxAttempts < 1 {
		return fmt.Errorf("ledger_max_attempts must be at least 1")
	}
	for name, v := range map[string]string{
		"stage_timeout":     c.StageTimeout,
		"ledger_base_delay": c.LedgerBaseDelay,
		"ledger_max_delay":  c.LedgerMaxDelay,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %q", name, v)
		}
	}
	return nil
}

// VisionConfig selects the generative vision model used as detector.
type VisionConfig struct {
	Backend      string `toml:"backend"`
	APIKey       string `toml:"api_key"`
	Project      string `toml:"project"`
	Location     string `toml:"location"`
	Model        string `toml:"model"`
	MaxImageSize string `toml:"max_image_size"`
	FetchTimeout string `toml:"fetch_timeout"`
}

// Client returns the model backend settings.
func (c *VisionConfig) Client() vision.ClientConfig {
	return vision.ClientConfig{
		Backend:  c.Backend,
		APIKey:   c.APIKey,
		Project:  c.Project,
		Location: c.Location,
	}
}

// MaxImageSizeBytes returns MaxImageSize in bytes.
func (c *VisionConfig) MaxImageSizeBytes() int64 {
	n, err := formatting.ParseBytes(c.MaxImageSize)
	if err != nil {
		return 20 * 1024 * 1024
	}
	return n
}

// FetchTimeoutDuration returns FetchTimeout as a time.Duration.
func (c *VisionConfig) FetchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.FetchTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *VisionConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *VisionConfig) Merge(overlay *VisionConfig) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Project != "" {
		c.Project = overlay.Project
	}
	if overlay.Location != "" {
		c.Location = overlay.Location
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.MaxImageSize != "" {
		c.MaxImageSize = overlay.MaxImageSize
	}
	if overlay.FetchTimeout != "" {
		c.FetchTimeout = overlay.FetchTimeout
	}
}

func (c *VisionConfig) loadDefaults() {
	if c.Backend == "" {
		c.Backend = vision.BackendGemini
	}
	if c.Model == "" {
		c.Model = "gemini-2.5-flash"
	}
	if c.MaxImageSize == "" {
		c.MaxImageSize = "20MB"
	}
	if c.FetchTimeout == "" {
		c.FetchTimeout = "30s"
	}
}

func (c *VisionConfig) loadEnv() {
	if v := os.Getenv(EnvVisionBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvVisionAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvVisionProject); v != "" {
		c.Project = v
	}
	if v := os.Getenv(EnvVisionLocation); v != "" {
		c.Location = v
	}
	if v := os.Getenv(EnvVisionModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvVisionMaxImageSize); v != "" {
		c.MaxImageSize = v
	}
	if v := os.Getenv(EnvVisionFetchTimeout); v != "" {
		c.FetchTimeout = v
	}
}

func (c *VisionConfig) validate() error {
	switch c.Backend {
	case vision.BackendGemini:
	case vision.BackendVertex:
		if c.Project == "" || c.Location == "" {
			return fmt.Errorf("vertex backend requires project and location")
		}
	default:
		return fmt.Errorf("invalid backend %q: want %s or %s", c.Backend, vision.BackendGemini, vision.BackendVertex)
	}
	if _, err := formatting.ParseBytes(c.MaxImageSize); err != nil {
		return fmt.Errorf("invalid max_image_size: %w", err)
	}
	if _, err := time.ParseDuration(c.FetchTimeout); err != nil {
		return fmt.Errorf("invalid fetch_timeout: %w", err)
	}
	return nil
}
