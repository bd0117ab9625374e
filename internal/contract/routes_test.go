package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/wardsync/internal/domain"
)

const manifest = `
routes:
  - method: post
    pattern: /api/a
  - method: PATCH
    pattern: /api/b
  - method: PUT
    pattern: /api/patients/:id
  - method: DELETE
    pattern: /api/files/*
  - method: "*"
    pattern: /api/any/*/x
`

func TestRouteTable_Match(t *testing.T) {
	table, err := ParseRoutes([]byte(manifest))
	require.NoError(t, err)
	require.Equal(t, 5, table.Len())

	tests := []struct {
		method, url string
		want        bool
	}{
		{"POST", "/api/a", true},
		{"post", "/api/a/", true},
		{"POST", "https://host.example/api/a?x=1", true},
		{"PUT", "/api/a", false},
		{"POST", "/api/not-mounted", false},
		{"PATCH", "/api/b", true},
		{"PUT", "/api/patients/42", true},
		{"PUT", "/api/patients", false},
		{"PUT", "/api/patients/42/notes", false},
		{"DELETE", "/api/files", true},
		{"DELETE", "/api/files/a/b/c", true},
		{"POST", "/api/any/1/x", true},
		{"DELETE", "/api/any/1/x", true},
		{"POST", "/api/any/1/y", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Match(tt.method, tt.url))
		})
	}
}

func TestParseRoutes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "routes: [\n"},
		{"missing method", "routes:\n  - pattern: /api/a\n"},
		{"relative pattern", "routes:\n  - method: POST\n    pattern: api/a\n"},
		{"unnamed param", "routes:\n  - method: POST\n    pattern: /api/:\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoutes([]byte(tt.doc))
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestLoadRoutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))

	table, err := LoadRoutes(path)
	require.NoError(t, err)
	assert.Equal(t, Route{Method: "POST", Pattern: "/api/a"}, table.Routes()[0])

	_, err = LoadRoutes(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
