package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectivityMonitor_DefaultsOnline(t *testing.T) {
	m := NewConnectivityMonitor(nil, nil)
	assert.True(t, m.IsOnline())
}

func TestConnectivityMonitor_NotifiesTransitionsOnly(t *testing.T) {
	m := NewConnectivityMonitor(nil, nil)

	var mu sync.Mutex
	var got []bool
	m.Subscribe(func(online bool) {
		mu.Lock()
		got = append(got, online)
		mu.Unlock()
	})

	for _, v := range []bool{true, true, false, false, true, false} {
		m.Set(v)
	}
	m.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true, false}, got)
	assert.False(t, m.IsOnline())
}

func TestConnectivityMonitor_SubscribeDoesNotFireSynchronously(t *testing.T) {
	m := NewConnectivityMonitor(nil, nil)
	called := false
	m.Subscribe(func(bool) { called = true })
	assert.False(t, called)
	m.Flush()
	assert.False(t, called)
}

func TestConnectivityMonitor_Unsubscribe(t *testing.T) {
	m := NewConnectivityMonitor(nil, nil)
	calls := 0
	sub := m.Subscribe(func(bool) { calls++ })
	sub.Unsubscribe()

	m.Set(false)
	m.Flush()
	assert.Equal(t, 0, calls)
}

func TestConnectivityMonitor_RunWithManualSource(t *testing.T) {
	src := NewManualSource()
	src.Set(false)

	m := NewConnectivityMonitor(src, nil)
	changes := make(chan bool, 4)
	m.Subscribe(func(online bool) { changes <- online })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.False(t, <-changes)
	assert.False(t, m.IsOnline())

	src.Set(true)
	assert.True(t, <-changes)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
	}
}

func TestConnectivityMonitor_RunWithoutSource(t *testing.T) {
	m := NewConnectivityMonitor(nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.NoError(t, m.Run(ctx))
	assert.True(t, m.IsOnline())
}
