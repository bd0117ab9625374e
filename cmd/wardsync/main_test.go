package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/bft-labs/wardsync/internal/cliconfig"
	"github.com/bft-labs/wardsync/pkg/wardsync"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	c := &cli{cfg: cliconfig.DefaultConfig(), log: cliconfig.Logger()}
	defer c.close()

	root := newRootCommand(c)
	root.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "missing.toml")))
	return root.Execute()
}

func queueLen(t *testing.T, baseURL, dir string) int {
	t.Helper()
	svc, err := wardsync.New(wardsync.Config{APIBaseURL: baseURL, StateDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()
	n, err := svc.Len(context.Background())
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	return n
}

func TestEnqueueAndDrain(t *testing.T) {
	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer api.Close()

	dir := t.TempDir()
	common := []string{"--api-base-url", api.URL, "--state-dir", dir, "--log-level", "error"}

	if err := execute(t, append([]string{"enqueue", "post", "/api/notes", "--body", `{"text":"hi"}`, "-H", "X-Trace: 1"}, common...)...); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n := queueLen(t, api.URL, dir); n != 1 {
		t.Fatalf("queue length = %d, want 1", n)
	}

	if err := execute(t, append([]string{"drain"}, common...)...); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("API calls = %d, want 1", got)
	}
	if n := queueLen(t, api.URL, dir); n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
}

func TestEnqueueRejectsBadHeader(t *testing.T) {
	err := execute(t, "enqueue", "POST", "/api/notes", "-H", "no-colon",
		"--api-base-url", "http://example.com", "--state-dir", t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRequiresBaseURL(t *testing.T) {
	t.Setenv(cliconfig.EnvPrefix+"API_BASE_URL", "")
	if err := execute(t, "list", "--state-dir", t.TempDir()); err == nil {
		t.Fatal("expected error without api-base-url")
	}
}

func TestRoutesCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	manifest := "routes:\n  - method: POST\n    pattern: /api/notes\n  - method: PATCH\n    pattern: /api/notes/:id\n"
	if err := os.WriteFile(path, []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"list", nil, false},
		{"mounted", []string{"patch", "/api/notes/7?x=1"}, false},
		{"not mounted", []string{"DELETE", "/api/notes/7"}, true},
		{"one arg", []string{"POST"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"routes", "check", "--routes-file", path}, tt.args...)
			err := execute(t, args...)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
