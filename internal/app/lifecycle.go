package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/wardsync/internal/domain"
	"github.com/bft-labs/wardsync/pkg/log"
)

// ShutdownTimeout is the maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// State represents the lifecycle state of the service.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting, StateStopped},
}

// StateChangeFunc is called after every state transition.
type StateChangeFunc func(previous, current State, reason string)

// Lifecycle runs the service's background workers and tracks its state.
// A worker returning an error other than cancellation crashes the service
// and cancels the others.
type Lifecycle struct {
	mu       sync.RWMutex
	state    State
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   log.Logger
	onChange StateChangeFunc
}

// NewLifecycle creates a stopped lifecycle. onChange may be nil.
func NewLifecycle(logger log.Logger, onChange StateChangeFunc) *Lifecycle {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Lifecycle{
		state:    StateStopped,
		logger:   logger,
		onChange: onChange,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to newState if the transition is allowed.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if !allowed(oldState, newState) {
		l.mu.Unlock()
		if oldState == StateStopped || oldState == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = newState
	l.mu.Unlock()

	if l.onChange != nil {
		l.onChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Begin moves to Starting and returns the context workers run under.
func (l *Lifecycle) Begin(parent context.Context) (context.Context, error) {
	if err := l.TransitionTo(StateStarting, "start requested"); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(parent)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
	return ctx, nil
}

// Go runs fn as a tracked worker.
func (l *Lifecycle) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		err := fn(ctx)
		if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		l.logger.Error("worker failed", log.String("worker", name), log.Err(err))
		if l.TransitionTo(StateCrashed, name+": "+err.Error()) == nil {
			l.Cancel()
		}
	}()
}

// Cancel cancels the workers' context.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Shutdown cancels the workers and waits for them up to timeout. From
// Crashed it only cleans up and stays in Stopped afterwards.
func (l *Lifecycle) Shutdown(timeout time.Duration) error {
	switch l.State() {
	case StateStarting, StateRunning:
		if err := l.TransitionTo(StateStopping, "stop requested"); err != nil {
			return err
		}
	case StateCrashed:
	default:
		return domain.ErrNotRunning
	}

	l.Cancel()
	waitErr := l.WaitWithTimeout(timeout)

	reason := "stopped"
	if waitErr != nil {
		reason = "stopped after timeout"
	}
	if err := l.TransitionTo(StateStopped, reason); err != nil {
		return err
	}
	return waitErr
}

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			log.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
