package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestProbe_Check(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"ok", http.StatusOK},
		{"not found still reachable", http.StatusNotFound},
		{"server error still reachable", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewProbe(srv.Client(), ProbeConfig{URL: srv.URL + "/health"}, nil)
			if !p.Check(context.Background()) {
				t.Error("Check() = false, want true")
			}
		})
	}
}

func TestProbe_CheckUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProbe(http.DefaultClient, ProbeConfig{URL: url, Timeout: time.Second}, nil)
	if p.Check(context.Background()) {
		t.Error("Check() = true, want false")
	}
}

func TestProbe_RunReportsUntilCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p := NewProbe(srv.Client(), ProbeConfig{URL: srv.URL, Interval: 5 * time.Millisecond}, nil)

	var mu sync.Mutex
	var reports []bool
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(online bool) {
			mu.Lock()
			reports = append(reports, online)
			n := len(reports)
			mu.Unlock()
			if n == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reports) < 3 {
		t.Fatalf("got %d reports, want >= 3", len(reports))
	}
	for i, r := range reports {
		if !r {
			t.Errorf("report[%d] = false", i)
		}
	}
}

func TestHealthURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://api", "/health", "http://api/health"},
		{"http://api/", "health", "http://api/health"},
		{"http://api/", "", "http://api"},
	}
	for _, tt := range tests {
		if got := HealthURL(tt.base, tt.path); got != tt.want {
			t.Errorf("HealthURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}
