package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by wardsync.
const EnvPrefix = "WARDSYNC_"

// ApplyEnvConfig applies WARDSYNC_* environment variables to cfg.
// Environment overrides the config file but not explicitly set flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("api-base-url", env("API_BASE_URL"), &cfg.APIBaseURL)
	s.setString("auth-token", env("AUTH_TOKEN"), &cfg.AuthToken)
	s.setString("health-path", env("HEALTH_PATH"), &cfg.HealthPath)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("store", env("STORE"), &cfg.Store)
	s.setString("routes-file", env("ROUTES_FILE"), &cfg.RoutesFile)
	s.setString("idempotency-header", env("IDEMPOTENCY_HEADER"), &cfg.IdempotencyHeader)
	s.setString("status-addr", env("STATUS_ADDR"), &cfg.StatusAddr)
	s.setString("log-file", env("LOG_FILE"), &cfg.LogFile)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("probe-interval", env("PROBE_INTERVAL"), &cfg.ProbeInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("max-attempts", env("MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("log-max-size", env("LOG_MAX_SIZE_MB"), &cfg.LogMaxSizeMB); err != nil {
		return err
	}
	if err := s.setIntFromString("log-max-backups", env("LOG_MAX_BACKUPS"), &cfg.LogMaxBackups); err != nil {
		return err
	}
	if err := s.setIntFromString("log-max-age", env("LOG_MAX_AGE_DAYS"), &cfg.LogMaxAgeDays); err != nil {
		return err
	}

	return nil
}
