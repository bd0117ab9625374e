package wardsync

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bft-labs/wardsync/internal/domain"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// DefaultIdempotencyHeader is the header carrying an entry's idempotency key.
const DefaultIdempotencyHeader = "Idempotency-Key"

// Config holds the configuration for a Service.
type Config struct {
	// APIBaseURL is prefixed to relative queue URLs and used for the
	// reachability probe. Required.
	APIBaseURL string

	// AuthToken is sent as a bearer token on replays.
	AuthToken string

	// HealthPath is probed to decide connectivity. Default: /health.
	HealthPath string

	// StateDir holds the durable queue. Required unless WithStore is used.
	StateDir string

	// Store selects the queue backend: StoreFile or StoreSQLite.
	// Default: StoreFile.
	Store string

	// RoutesFile is a YAML manifest of the mounted mutating routes. When
	// empty, Routes is used; when both are empty every route is accepted.
	RoutesFile string

	// Routes are the mounted mutating routes, if RoutesFile is not set.
	Routes []Route

	// WatchRoutes reloads RoutesFile while the service runs.
	WatchRoutes bool

	// ProbeInterval is the delay between reachability probes. Default: 15s.
	ProbeInterval time.Duration

	// HTTPTimeout bounds every replay. Default: 30s.
	HTTPTimeout time.Duration

	// MaxAttempts moves an entry to the dead-letter list after this many
	// rejected replays. Zero retries forever.
	MaxAttempts int

	// IdempotencyHeader names the header carrying each entry's idempotency
	// key. Empty disables it; DefaultConfig sets DefaultIdempotencyHeader.
	IdempotencyHeader string

	// StatusAddr, if set, serves the status endpoints on this address.
	StatusAddr string
}

// DefaultConfig returns a Config with every optional field set.
func DefaultConfig() Config {
	cfg := Config{IdempotencyHeader: DefaultIdempotencyHeader}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.HealthPath == "" {
		c.HealthPath = "/health"
	}
	if c.Store == "" {
		c.Store = StoreFile
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 15 * time.Second
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
}

// validate checks the configuration. storeInjected skips the StateDir check.
func (c Config) validate(storeInjected bool) error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("%w: APIBaseURL is required", domain.ErrInvalidConfig)
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: APIBaseURL %q must be an http(s) URL", domain.ErrInvalidConfig, c.APIBaseURL)
	}
	if !storeInjected && c.StateDir == "" {
		return fmt.Errorf("%w: StateDir is required", domain.ErrInvalidConfig)
	}
	if c.Store != StoreFile && c.Store != StoreSQLite {
		return fmt.Errorf("%w: unknown store %q", domain.ErrInvalidConfig, c.Store)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: MaxAttempts must not be negative", domain.ErrInvalidConfig)
	}
	if c.WatchRoutes && c.RoutesFile == "" {
		return fmt.Errorf("%w: WatchRoutes needs RoutesFile", domain.ErrInvalidConfig)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	return c.validate(false)
}
