package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/wardsync/internal/ports"
	"github.com/bft-labs/wardsync/pkg/log"
)

// ConnectivityMonitor tracks the last known reachability and notifies
// subscribers on transitions only.
//
// Until the source reports, the monitor assumes online. A missing source
// leaves it online for good.
type ConnectivityMonitor struct {
	online    atomic.Bool
	source    ports.ConnectivitySource
	broadcast *Broadcast[bool]
	logger    log.Logger
}

// NewConnectivityMonitor creates a monitor fed by source. source may be nil.
func NewConnectivityMonitor(source ports.ConnectivitySource, logger log.Logger) *ConnectivityMonitor {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	m := &ConnectivityMonitor{
		source:    source,
		broadcast: NewBroadcast[bool](logger),
		logger:    logger,
	}
	m.online.Store(true)
	return m
}

// IsOnline returns the last known state.
func (m *ConnectivityMonitor) IsOnline() bool {
	return m.online.Load()
}

// Subscribe registers h for transitions. h is never called from within
// Subscribe and never for a repeated value.
func (m *ConnectivityMonitor) Subscribe(h func(online bool)) *Subscription {
	return m.broadcast.Subscribe(h)
}

// Set records an observation and notifies subscribers if it changes state.
func (m *ConnectivityMonitor) Set(online bool) {
	if !m.online.CompareAndSwap(!online, online) {
		return
	}
	m.logger.Info("connectivity changed", log.Bool("online", online))
	m.broadcast.Publish(online)
}

// Run feeds the monitor from its source until ctx is canceled.
func (m *ConnectivityMonitor) Run(ctx context.Context) error {
	if m.source == nil {
		<-ctx.Done()
		return nil
	}
	return m.source.Run(ctx, m.Set)
}

// Flush waits for queued notifications to be delivered.
func (m *ConnectivityMonitor) Flush() {
	m.broadcast.Flush()
}

// ManualSource is a ports.ConnectivitySource driven by Set calls, for
// embedders that already know their connectivity and for tests.
type ManualSource struct {
	mu      sync.Mutex
	report  func(bool)
	pending *bool
}

// NewManualSource creates a source with no observation yet.
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// Set reports an observation. Before Run starts, the latest one is kept and
// replayed when it does.
func (s *ManualSource) Set(online bool) {
	s.mu.Lock()
	report := s.report
	if report == nil {
		s.pending = &online
	}
	s.mu.Unlock()

	if report != nil {
		report(online)
	}
}

// Run implements ports.ConnectivitySource.
func (s *ManualSource) Run(ctx context.Context, report func(online bool)) error {
	s.mu.Lock()
	s.report = report
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		report(*pending)
	}

	<-ctx.Done()

	s.mu.Lock()
	s.report = nil
	s.mu.Unlock()
	return nil
}
