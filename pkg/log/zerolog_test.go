package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestJSONAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONAdapter(&buf)

	l.Info("drained",
		String("queue", "main"),
		Int("processed", 2),
		Bool("online", true),
		Duration("took", 1500*time.Millisecond),
		Err(errors.New("boom")),
	)

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if got["message"] != "drained" {
		t.Errorf("message = %v, want drained", got["message"])
	}
	if got["level"] != "info" {
		t.Errorf("level = %v, want info", got["level"])
	}
	if got["queue"] != "main" {
		t.Errorf("queue = %v, want main", got["queue"])
	}
	if got["processed"] != float64(2) {
		t.Errorf("processed = %v, want 2", got["processed"])
	}
	if got["error"] != "boom" {
		t.Errorf("error = %v, want boom", got["error"])
	}
}

func TestJSONAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONAdapter(&buf).With(String("component", "queue"))

	l.Warn("slow write")

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if got["component"] != "queue" {
		t.Errorf("component = %v, want queue", got["component"])
	}
	if got["level"] != "warn" {
		t.Errorf("level = %v, want warn", got["level"])
	}
}

func TestNoopLogger_With(t *testing.T) {
	var l Logger = NewNoopLogger()
	if l.With(String("k", "v")) == nil {
		t.Fatal("With returned nil")
	}
}
