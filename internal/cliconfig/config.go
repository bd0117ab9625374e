package cliconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/wardsync/internal/domain"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// DisabledHeader turns the idempotency header off.
const DisabledHeader = "none"

// Config holds CLI configuration for wardsync.
type Config struct {
	APIBaseURL string
	AuthToken  string
	HealthPath string

	StateDir   string
	Store      string
	RoutesFile string

	ProbeInterval time.Duration
	HTTPTimeout   time.Duration

	MaxAttempts       int
	IdempotencyHeader string

	StatusAddr string

	LogFile       string
	LogLevel      string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		HealthPath:        "/health",
		Store:             StoreFile,
		ProbeInterval:     15 * time.Second,
		HTTPTimeout:       30 * time.Second,
		IdempotencyHeader: "Idempotency-Key",
		LogLevel:          "info",
		LogMaxSizeMB:      50,
		LogMaxBackups:     5,
		LogMaxAgeDays:     28,
		StateDir:          "", // Derived from the home directory during Validate
		AuthToken:         os.Getenv("WARDSYNC_AUTH_TOKEN"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("%w: api-base-url is required", domain.ErrInvalidConfig)
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api-base-url %q must be an http(s) URL", domain.ErrInvalidConfig, c.APIBaseURL)
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")

	if c.StateDir == "" {
		c.StateDir = DefaultStateDir()
		if c.StateDir == "" {
			return fmt.Errorf("%w: state-dir is required (no home directory)", domain.ErrInvalidConfig)
		}
	}

	if c.Store == "" {
		c.Store = StoreFile
	}
	if c.Store != StoreFile && c.Store != StoreSQLite {
		return fmt.Errorf("%w: store must be %q or %q, got %q", domain.ErrInvalidConfig, StoreFile, StoreSQLite, c.Store)
	}

	if c.ProbeInterval <= 0 {
		return fmt.Errorf("%w: probe interval must be positive", domain.ErrInvalidConfig)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: max attempts must not be negative", domain.ErrInvalidConfig)
	}

	if strings.EqualFold(c.IdempotencyHeader, DisabledHeader) {
		c.IdempotencyHeader = ""
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", domain.ErrInvalidConfig, c.LogLevel)
	}

	return nil
}

// DefaultStateDir returns ~/.wardsync, or "" if the home directory is unknown.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".wardsync")
	}
	return ""
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
