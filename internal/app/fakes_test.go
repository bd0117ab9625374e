package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/wardsync/internal/domain"
)

type fakeConnectivity struct {
	online     atomic.Bool
	broadcast  *Broadcast[bool]
	subscribes atomic.Int32
}

func newFakeConnectivity(online bool) *fakeConnectivity {
	c := &fakeConnectivity{broadcast: NewBroadcast[bool](nil)}
	c.online.Store(online)
	return c
}

func (c *fakeConnectivity) IsOnline() bool { return c.online.Load() }

func (c *fakeConnectivity) Subscribe(h func(bool)) *Subscription {
	c.subscribes.Add(1)
	return c.broadcast.Subscribe(h)
}

func (c *fakeConnectivity) set(online bool) {
	if c.online.Swap(online) != online {
		c.broadcast.Publish(online)
	}
}

// fakeStore is an in-memory QueueStore that records calls.
type fakeStore struct {
	mu          sync.Mutex
	queue       []domain.QueuedRequest
	dead        []domain.DeadLetter
	listErr     error
	removeErr   error
	listCalls   int
	removed     []string
	deadLetters []string
}

func newFakeStore(reqs ...domain.QueuedRequest) *fakeStore {
	return &fakeStore{queue: reqs}
}

func (s *fakeStore) Enqueue(_ context.Context, req domain.QueuedRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.queue {
		if r.ID == req.ID {
			return domain.ErrConflict
		}
	}
	s.queue = append(s.queue, req)
	return nil
}

func (s *fakeStore) List(context.Context) ([]domain.QueuedRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]domain.QueuedRequest(nil), s.queue...), nil
}

func (s *fakeStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, id)
	if s.removeErr != nil {
		return s.removeErr
	}
	s.drop(id)
	return nil
}

func (s *fakeStore) drop(id string) (domain.QueuedRequest, bool) {
	for i, r := range s.queue {
		if r.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return r, true
		}
	}
	return domain.QueuedRequest{}, false
}

func (s *fakeStore) RecordFailure(_ context.Context, id, message string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queue {
		if s.queue[i].ID == id {
			s.queue[i].Attempts++
			s.queue[i].LastError = message
			return s.queue[i].Attempts, nil
		}
	}
	return 0, domain.ErrNotFound
}

func (s *fakeStore) DeadLetter(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.drop(id)
	if !ok {
		return domain.ErrNotFound
	}
	s.deadLetters = append(s.deadLetters, id)
	s.dead = append(s.dead, domain.DeadLetter{Request: r, Reason: reason})
	return nil
}

func (s *fakeStore) ListDeadLetters(context.Context) ([]domain.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DeadLetter(nil), s.dead...), nil
}

func (s *fakeStore) Requeue(context.Context, string) error { return errors.New("not supported") }

func (s *fakeStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queue))
	for i, r := range s.queue {
		out[i] = r.ID
	}
	return out
}

func (s *fakeStore) removedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.removed...)
}

func (s *fakeStore) lists() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

type contractFunc func(domain.QueuedRequest) bool

func (f contractFunc) IsQueueable(req domain.QueuedRequest) bool { return f(req) }

func acceptAll() contractFunc { return func(domain.QueuedRequest) bool { return true } }

// fakeReplayer records replayed ids. Responses are looked up by id; a nil
// entry means success. If gate is set, each call waits on it.
type fakeReplayer struct {
	mu     sync.Mutex
	calls  []string
	errs   map[string]error
	gate   chan struct{}
	called chan string
}

func (r *fakeReplayer) Replay(ctx context.Context, req domain.QueuedRequest) (domain.ReplayResponse, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req.ID)
	err := r.errs[req.ID]
	gate, called := r.gate, r.called
	r.mu.Unlock()

	if called != nil {
		called <- req.ID
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.ReplayResponse{}, &domain.ReplayError{Message: ctx.Err().Error()}
		}
	}
	if err != nil {
		return domain.ReplayResponse{}, err
	}
	return domain.ReplayResponse{Status: 200}, nil
}

func (r *fakeReplayer) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type report struct {
	err error
	rc  domain.ReportContext
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []report
}

func (r *fakeReporter) Report(err error, rc domain.ReportContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report{err, rc})
}

func (r *fakeReporter) Reports() []report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]report(nil), r.reports...)
}

func (r *fakeReporter) ops() []string {
	var out []string
	for _, rep := range r.Reports() {
		out = append(out, rep.rc.Op)
	}
	return out
}
