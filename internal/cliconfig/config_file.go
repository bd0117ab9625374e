package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	APIBaseURL        string `toml:"api_base_url"`
	AuthToken         string `toml:"auth_token"`
	HealthPath        string `toml:"health_path"`
	StateDir          string `toml:"state_dir"`
	Store             string `toml:"store"`
	RoutesFile        string `toml:"routes_file"`
	ProbeInterval     string `toml:"probe_interval"`
	HTTPTimeout       string `toml:"http_timeout"`
	MaxAttempts       int    `toml:"max_attempts"`
	IdempotencyHeader string `toml:"idempotency_header"`
	StatusAddr        string `toml:"status_addr"`
	LogFile           string `toml:"log_file"`
	LogLevel          string `toml:"log_level"`
	LogMaxSizeMB      int    `toml:"log_max_size_mb"`
	LogMaxBackups     int    `toml:"log_max_backups"`
	LogMaxAgeDays     int    `toml:"log_max_age_days"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.wardsync/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".wardsync", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("api-base-url", fc.APIBaseURL, &cfg.APIBaseURL)
	s.setString("auth-token", fc.AuthToken, &cfg.AuthToken)
	s.setString("health-path", fc.HealthPath, &cfg.HealthPath)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("store", fc.Store, &cfg.Store)
	s.setString("routes-file", fc.RoutesFile, &cfg.RoutesFile)
	s.setString("idempotency-header", fc.IdempotencyHeader, &cfg.IdempotencyHeader)
	s.setString("status-addr", fc.StatusAddr, &cfg.StatusAddr)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("probe-interval", fc.ProbeInterval, &cfg.ProbeInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setInt("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)
	s.setInt("log-max-size", fc.LogMaxSizeMB, &cfg.LogMaxSizeMB)
	s.setInt("log-max-backups", fc.LogMaxBackups, &cfg.LogMaxBackups)
	s.setInt("log-max-age", fc.LogMaxAgeDays, &cfg.LogMaxAgeDays)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
