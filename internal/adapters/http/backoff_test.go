package http

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_NextDoublesAndCaps(t *testing.T) {
	b := newBackoff(100*time.Millisecond, 350*time.Millisecond)

	wantBase := []time.Duration{100, 200, 350, 350}
	for i, base := range wantBase {
		base *= time.Millisecond
		if b.Current() != base {
			t.Fatalf("step %d: Current() = %v, want %v", i, b.Current(), base)
		}
		d := b.Next()
		lo := time.Duration(float64(base) * 0.8)
		hi := time.Duration(float64(base) * 1.2)
		if d < lo || d > hi {
			t.Errorf("step %d: Next() = %v, want within [%v, %v]", i, d, lo, hi)
		}
	}

	b.Reset()
	if b.Current() != 100*time.Millisecond {
		t.Errorf("after Reset() Current() = %v", b.Current())
	}
}

func TestBackoff_InitialAboveMax(t *testing.T) {
	b := newBackoff(time.Minute, time.Second)
	if b.Current() != time.Second {
		t.Errorf("Current() = %v, want 1s", b.Current())
	}
}

func TestWait_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := wait(ctx, time.Hour); err == nil {
		t.Error("wait() = nil, want context error")
	}
}
