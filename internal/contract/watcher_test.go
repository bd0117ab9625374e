package contract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/wardsync/internal/domain"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - method: POST\n    pattern: /api/a\n"), 0o600))

	table, err := LoadRoutes(path)
	require.NoError(t, err)
	c := New(table)
	req := domain.QueuedRequest{ID: "1", URL: "/api/c", Method: "POST"}
	require.False(t, c.IsQueueable(req))

	reloaded := make(chan error, 4)
	w := NewWatcher(path, c, 10*time.Millisecond, nil, func(_ *RouteTable, err error) {
		reloaded <- err
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - method: POST\n    pattern: /api/c\n"), 0o600))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manifest was not reloaded")
	}
	assert.True(t, c.IsQueueable(req))
}

func TestWatcher_BadManifestKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - method: POST\n    pattern: /api/a\n"), 0o600))

	table, err := LoadRoutes(path)
	require.NoError(t, err)
	c := New(table)
	w := NewWatcher(path, c, 0, nil, nil)

	require.NoError(t, os.WriteFile(path, []byte("routes: ["), 0o600))
	assert.ErrorIs(t, w.Reload(), domain.ErrInvalidConfig)
	assert.Same(t, table, c.Routes())
}
