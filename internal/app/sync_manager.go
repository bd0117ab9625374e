package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bft-labs/wardsync/internal/domain"
	"github.com/bft-labs/wardsync/internal/ports"
	"github.com/bft-labs/wardsync/pkg/log"
)

// SyncState is the state of the sync manager.
type SyncState int32

const (
	SyncIdle SyncState = iota
	SyncRunning
)

// String returns a human-readable representation of the state.
func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "Idle"
	case SyncRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// Connectivity is the reachability view the sync manager depends on.
type Connectivity interface {
	IsOnline() bool
	Subscribe(h func(online bool)) *Subscription
}

// Contract decides whether a queued request may still be replayed.
type Contract interface {
	IsQueueable(req domain.QueuedRequest) bool
}

// SyncManagerConfig tunes the sync manager.
type SyncManagerConfig struct {
	// MaxAttempts moves an entry to the dead-letter list once this many
	// replays were rejected. Zero retries forever.
	MaxAttempts int

	// OnRun, if set, is called after every drain that got past the
	// connectivity check.
	OnRun func(result domain.SyncRunResult, err error)
}

// SyncDeps are the collaborators of the sync manager.
type SyncDeps struct {
	Connectivity Connectivity
	Store        ports.QueueStore
	Contract     Contract
	Replayer     ports.Replayer
	Reporter     ports.Reporter
	Indicator    *SyncIndicator
	Logger       log.Logger
}

// SyncManager replays queued requests when connectivity allows.
//
// A drain processes a snapshot of the queue in FIFO order. Entries that
// succeed or are no longer queueable are removed; rejected entries stay
// queued for the next drain. At most one drain runs at a time; concurrent
// ProcessQueue calls join it and get its result.
type SyncManager struct {
	cfg          SyncManagerConfig
	connectivity Connectivity
	store        ports.QueueStore
	contract     Contract
	replayer     ports.Replayer
	reporter     ports.Reporter
	indicator    *SyncIndicator
	logger       log.Logger

	state atomic.Int32
	group singleflight.Group

	startOnce    sync.Once
	subscription *Subscription

	mu   sync.Mutex
	runs *runGroup
	last RunRecord
}

// runGroup owns the context drains run under. CancelRuns cancels it.
type runGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRunGroup() *runGroup {
	ctx, cancel := context.WithCancel(context.Background())
	return &runGroup{ctx: ctx, cancel: cancel}
}

// RunRecord is the outcome of one drain.
type RunRecord struct {
	Result   domain.SyncRunResult
	Err      error
	Finished time.Time
}

// NewSyncManager creates a sync manager. Indicator, Reporter and Logger
// default to a private indicator, no reporting and no logging.
func NewSyncManager(deps SyncDeps, cfg SyncManagerConfig) *SyncManager {
	if deps.Logger == nil {
		deps.Logger = log.NewNoopLogger()
	}
	if deps.Indicator == nil {
		deps.Indicator = NewSyncIndicator(deps.Logger)
	}
	return &SyncManager{
		cfg:          cfg,
		connectivity: deps.Connectivity,
		store:        deps.Store,
		contract:     deps.Contract,
		replayer:     deps.Replayer,
		reporter:     safeReporter{inner: deps.Reporter, logger: deps.Logger},
		indicator:    deps.Indicator,
		logger:       deps.Logger,
		runs:         newRunGroup(),
	}
}

// State returns the current state.
func (m *SyncManager) State() SyncState {
	return SyncState(m.state.Load())
}

// Indicator returns the syncing flag written by this manager.
func (m *SyncManager) Indicator() *SyncIndicator {
	return m.indicator
}

// LastRun returns the most recent drain. ok is false before the first one.
func (m *SyncManager) LastRun() (rec RunRecord, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, !m.last.Finished.IsZero()
}

// StartSync subscribes to connectivity transitions so that going online
// triggers a drain. Only the first call subscribes; every call returns the
// same subscription.
func (m *SyncManager) StartSync() *Subscription {
	m.startOnce.Do(func() {
		sub := m.connectivity.Subscribe(func(online bool) {
			if online {
				m.triggerDrain()
			}
		})
		m.mu.Lock()
		m.subscription = sub
		m.mu.Unlock()
		m.logger.Debug("sync started")
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscription
}

// CancelRuns cancels the running drain and waits for it to return.
// Later calls and transitions still start new drains.
func (m *SyncManager) CancelRuns() {
	m.mu.Lock()
	old := m.runs
	m.runs = newRunGroup()
	m.mu.Unlock()

	old.cancel()
	old.wg.Wait()
}

// Close unsubscribes and cancels the running drain.
func (m *SyncManager) Close() {
	m.mu.Lock()
	sub := m.subscription
	m.mu.Unlock()

	sub.Unsubscribe()
	m.CancelRuns()
}

func (m *SyncManager) triggerDrain() {
	m.mu.Lock()
	g := m.runs
	g.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer g.wg.Done()
		if _, err := m.ProcessQueue(g.ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("automatic drain failed", log.Err(err))
		}
	}()
}

// ProcessQueue drains the queue once.
//
// Offline returns a zero result without touching the queue or the network.
// A failed queue read is reported and treated as an empty queue.
//
// The drain runs under the manager's own context, so a caller that gives up
// does not stop it for callers that joined. If ctx ends first, ProcessQueue
// returns a zero result and the context's error while the drain goes on.
// CancelRuns stops the drain; its callers then get the counts handled so
// far with context.Canceled.
func (m *SyncManager) ProcessQueue(ctx context.Context) (domain.SyncRunResult, error) {
	if !m.connectivity.IsOnline() {
		return domain.SyncRunResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.SyncRunResult{}, err
	}

	ch := m.group.DoChan("drain", func() (any, error) {
		m.mu.Lock()
		g := m.runs
		g.wg.Add(1)
		m.mu.Unlock()
		defer g.wg.Done()

		res, err := m.drain(g.ctx)
		return res, err
	})

	select {
	case r := <-ch:
		if r.Shared {
			m.logger.Debug("joined in-flight drain")
		}
		res, _ := r.Val.(domain.SyncRunResult)
		return res, r.Err
	case <-ctx.Done():
		return domain.SyncRunResult{}, ctx.Err()
	}
}

func (m *SyncManager) drain(ctx context.Context) (result domain.SyncRunResult, err error) {
	m.state.Store(int32(SyncRunning))
	m.indicator.set(true)
	start := time.Now()

	defer func() {
		m.indicator.set(false)
		m.state.Store(int32(SyncIdle))

		m.mu.Lock()
		m.last = RunRecord{Result: result, Err: err, Finished: time.Now()}
		m.mu.Unlock()

		if !result.Empty() || err != nil {
			m.logger.Info("sync run finished",
				log.Int("processed", result.Processed),
				log.Int("failed", result.Failed),
				log.Int("discarded", result.Discarded),
				log.Int("dead_lettered", result.DeadLettered),
				log.Duration("elapsed", time.Since(start)),
			)
		}
		if m.cfg.OnRun != nil {
			m.cfg.OnRun(result, err)
		}
	}()

	queue, readErr := m.store.List(ctx)
	if readErr != nil {
		m.report(readErr, domain.OpReadQueue, "")
		return result, nil
	}

	for _, req := range queue {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if !m.contract.IsQueueable(req) {
			m.discard(ctx, req)
			result.Discarded++
			continue
		}

		if _, replayErr := m.replayer.Replay(ctx, req); replayErr != nil {
			result.Failed++
			m.report(replayErr, domain.OpReplay, req.ID)
			if m.recordFailure(ctx, req, replayErr) {
				result.DeadLettered++
			}
			continue
		}

		if err := m.store.Remove(ctx, req.ID); err != nil {
			m.report(err, domain.OpRemove, req.ID)
		}
		result.Processed++
	}

	return result, nil
}

func (m *SyncManager) discard(ctx context.Context, req domain.QueuedRequest) {
	m.report(
		fmt.Errorf("%w: %s %s is no longer queueable", domain.ErrInvalidRequest, req.Method, req.URL),
		domain.OpDiscardInvalid,
		req.ID,
	)
	if err := m.store.Remove(ctx, req.ID); err != nil {
		m.report(err, domain.OpRemove, req.ID)
	}
}

// recordFailure bumps the attempt counter and dead-letters the entry at the
// limit. It reports whether the entry was dead-lettered.
func (m *SyncManager) recordFailure(ctx context.Context, req domain.QueuedRequest, cause error) bool {
	attempts, err := m.store.RecordFailure(ctx, req.ID, cause.Error())
	if err != nil {
		m.report(err, domain.OpRecordFailure, req.ID)
		return false
	}
	if m.cfg.MaxAttempts <= 0 || attempts < m.cfg.MaxAttempts {
		return false
	}

	reason := fmt.Sprintf("rejected %d times: %v", attempts, cause)
	if err := m.store.DeadLetter(ctx, req.ID, reason); err != nil {
		m.report(err, domain.OpDeadLetter, req.ID)
		return false
	}
	m.report(fmt.Errorf("dead-lettered after %d attempts: %w", attempts, cause), domain.OpDeadLetter, req.ID)
	return true
}

func (m *SyncManager) report(err error, op, id string) {
	m.reporter.Report(err, domain.ReportContext{Scope: domain.ReportScope, Op: op, ID: id})
}
