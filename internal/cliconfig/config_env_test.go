package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"WARDSYNC_API_BASE_URL":       "http://env.example",
				"WARDSYNC_AUTH_TOKEN":         "secret",
				"WARDSYNC_HEALTH_PATH":        "/ping",
				"WARDSYNC_STATE_DIR":          "/state",
				"WARDSYNC_STORE":              "sqlite",
				"WARDSYNC_ROUTES_FILE":        "/etc/routes.yaml",
				"WARDSYNC_PROBE_INTERVAL":     "1m",
				"WARDSYNC_HTTP_TIMEOUT":       "5s",
				"WARDSYNC_MAX_ATTEMPTS":       "7",
				"WARDSYNC_IDEMPOTENCY_HEADER": "X-Request-Id",
				"WARDSYNC_STATUS_ADDR":        ":9090",
				"WARDSYNC_LOG_FILE":           "/var/log/wardsync.log",
				"WARDSYNC_LOG_LEVEL":          "debug",
				"WARDSYNC_LOG_MAX_SIZE_MB":    "10",
				"WARDSYNC_LOG_MAX_BACKUPS":    "2",
				"WARDSYNC_LOG_MAX_AGE_DAYS":   "3",
			},
			changed: map[string]bool{},
			expected: Config{
				APIBaseURL:        "http://env.example",
				AuthToken:         "secret",
				HealthPath:        "/ping",
				StateDir:          "/state",
				Store:             "sqlite",
				RoutesFile:        "/etc/routes.yaml",
				ProbeInterval:     time.Minute,
				HTTPTimeout:       5 * time.Second,
				MaxAttempts:       7,
				IdempotencyHeader: "X-Request-Id",
				StatusAddr:        ":9090",
				LogFile:           "/var/log/wardsync.log",
				LogLevel:          "debug",
				LogMaxSizeMB:      10,
				LogMaxBackups:     2,
				LogMaxAgeDays:     3,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"WARDSYNC_API_BASE_URL": "http://env.example",
				"WARDSYNC_STORE":        "sqlite",
			},
			changed:  map[string]bool{"api-base-url": true},
			initial:  Config{APIBaseURL: "http://flag.example"},
			expected: Config{APIBaseURL: "http://flag.example", Store: "sqlite"},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"WARDSYNC_PROBE_INTERVAL": "soon"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"WARDSYNC_MAX_ATTEMPTS": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() =\n%+v\nwant\n%+v", cfg, tt.expected)
			}
		})
	}
}
