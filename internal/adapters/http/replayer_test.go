package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bft-labs/wardsync/internal/domain"
)

func TestReplayer_Success(t *testing.T) {
	var got struct {
		method, path, auth, idem, ctype, custom string
		body                                    string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		got.idem = r.Header.Get("Idempotency-Key")
		got.ctype = r.Header.Get("Content-Type")
		got.custom = r.Header.Get("X-Ward")
		got.body = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42}`))
	}))
	defer srv.Close()

	r := NewReplayer(srv.Client(), ReplayerConfig{
		BaseURL:           srv.URL + "/",
		AuthToken:         "tok",
		IdempotencyHeader: "Idempotency-Key",
	}, nil)

	resp, err := r.Replay(context.Background(), domain.QueuedRequest{
		ID:             "1",
		URL:            "/api/patients",
		Method:         "POST",
		Body:           json.RawMessage(`{"name":"a"}`),
		Headers:        map[string]string{"X-Ward": "icu"},
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}

	if resp.Status != http.StatusCreated {
		t.Errorf("Status = %d, want 201", resp.Status)
	}
	if string(resp.Data) != `{"id":42}` {
		t.Errorf("Data = %s", resp.Data)
	}
	if got.method != "POST" || got.path != "/api/patients" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.auth != "Bearer tok" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.idem != "key-1" {
		t.Errorf("Idempotency-Key = %q", got.idem)
	}
	if got.ctype != "application/json" {
		t.Errorf("Content-Type = %q", got.ctype)
	}
	if got.custom != "icu" {
		t.Errorf("X-Ward = %q", got.custom)
	}
	if got.body != `{"name":"a"}` {
		t.Errorf("body = %q", got.body)
	}
}

func TestReplayer_NoBodyNoIdempotencyHeader(t *testing.T) {
	var ctype, idem string
	var n int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctype = r.Header.Get("Content-Type")
		idem = r.Header.Get("Idempotency-Key")
		n, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := NewReplayer(srv.Client(), ReplayerConfig{BaseURL: srv.URL}, nil)
	resp, err := r.Replay(context.Background(), domain.QueuedRequest{
		ID: "1", URL: "api/patients/1", Method: "DELETE", IdempotencyKey: "k",
	})
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if resp.Status != http.StatusNoContent || resp.Data != nil {
		t.Errorf("resp = %+v", resp)
	}
	if ctype != "" || idem != "" || n != 0 {
		t.Errorf("ctype=%q idem=%q body=%d", ctype, idem, n)
	}
}

func TestReplayer_RequestAuthorizationWins(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	r := NewReplayer(srv.Client(), ReplayerConfig{BaseURL: srv.URL, AuthToken: "default"}, nil)
	_, err := r.Replay(context.Background(), domain.QueuedRequest{
		ID: "1", URL: "/x", Method: "PUT", Headers: map[string]string{"Authorization": "Bearer mine"},
	})
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if auth != "Bearer mine" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestReplayer_StatusErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    string
	}{
		{"json message and code", 409, `{"message":"duplicate","code":"CONFLICT"}`, "duplicate", "CONFLICT"},
		{"json error field", 400, `{"error":"bad field"}`, "bad field", ""},
		{"plain text", 500, "boom\n", "boom", ""},
		{"empty body", 503, "", "Service Unavailable", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			r := NewReplayer(srv.Client(), ReplayerConfig{BaseURL: srv.URL}, nil)
			_, err := r.Replay(context.Background(), domain.QueuedRequest{ID: "1", URL: "/x", Method: "POST"})

			var re *domain.ReplayError
			if !errors.As(err, &re) {
				t.Fatalf("Replay() error = %v, want *domain.ReplayError", err)
			}
			if re.Status != tt.status {
				t.Errorf("Status = %d, want %d", re.Status, tt.status)
			}
			if re.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", re.Message, tt.wantMessage)
			}
			if re.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", re.Code, tt.wantCode)
			}
		})
	}
}

func TestReplayer_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	r := NewReplayer(http.DefaultClient, ReplayerConfig{BaseURL: url}, nil)
	_, err := r.Replay(context.Background(), domain.QueuedRequest{ID: "1", URL: "/x", Method: "POST"})

	var re *domain.ReplayError
	if !errors.As(err, &re) {
		t.Fatalf("Replay() error = %v, want *domain.ReplayError", err)
	}
	if re.Status != 0 {
		t.Errorf("Status = %d, want 0", re.Status)
	}
	if re.Code != CodeNetwork {
		t.Errorf("Code = %q, want %q", re.Code, CodeNetwork)
	}
}

func TestReplayer_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-done
	}))
	defer srv.Close()
	defer close(done)

	client := &http.Client{Timeout: 50 * time.Millisecond}
	r := NewReplayer(client, ReplayerConfig{BaseURL: srv.URL}, nil)
	_, err := r.Replay(context.Background(), domain.QueuedRequest{ID: "1", URL: "/x", Method: "POST"})

	var re *domain.ReplayError
	if !errors.As(err, &re) {
		t.Fatalf("Replay() error = %v, want *domain.ReplayError", err)
	}
	if re.Code != CodeTimeout {
		t.Errorf("Code = %q, want %q", re.Code, CodeTimeout)
	}
}

func TestReplayer_AbsoluteURL(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = r.URL.Path == "/abs"
	}))
	defer srv.Close()

	r := NewReplayer(srv.Client(), ReplayerConfig{BaseURL: "http://unused.invalid"}, nil)
	if _, err := r.Replay(context.Background(), domain.QueuedRequest{ID: "1", URL: srv.URL + "/abs", Method: "POST"}); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if !hit {
		t.Error("absolute URL was rewritten")
	}
}
