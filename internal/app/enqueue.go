package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bft-labs/wardsync/internal/domain"
	"github.com/bft-labs/wardsync/internal/ports"
	"github.com/bft-labs/wardsync/pkg/log"
)

// Sanitizer turns a draft into a storable request.
type Sanitizer interface {
	Sanitize(d domain.RequestDraft) (domain.QueuedRequest, error)
}

// Enqueuer accepts drafts from features that went offline and persists them.
type Enqueuer struct {
	store     ports.QueueStore
	sanitizer Sanitizer
	logger    log.Logger
	onEnqueue func(domain.QueuedRequest)
}

// NewEnqueuer creates an enqueuer. onEnqueue, if set, is called after every
// stored request.
func NewEnqueuer(store ports.QueueStore, sanitizer Sanitizer, logger log.Logger, onEnqueue func(domain.QueuedRequest)) *Enqueuer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Enqueuer{store: store, sanitizer: sanitizer, logger: logger, onEnqueue: onEnqueue}
}

// Enqueue sanitizes d once and stores it. A draft without an id gets a
// time-ordered UUIDv7; every stored request gets a fresh idempotency key.
// A draft whose id is already queued fails with domain.ErrConflict and the
// queued entry keeps its key.
func (e *Enqueuer) Enqueue(ctx context.Context, d domain.RequestDraft) (domain.QueuedRequest, error) {
	req, err := e.sanitizer.Sanitize(d)
	if err != nil {
		return domain.QueuedRequest{}, err
	}

	if req.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.QueuedRequest{}, fmt.Errorf("generate id: %w", err)
		}
		req.ID = id.String()
	}
	req.IdempotencyKey = uuid.NewString()

	if err := e.store.Enqueue(ctx, req); err != nil {
		return domain.QueuedRequest{}, fmt.Errorf("enqueue %s: %w", req.ID, err)
	}

	e.logger.Info("request queued",
		log.String("id", req.ID),
		log.String("method", req.Method),
		log.String("url", req.URL),
	)
	if e.onEnqueue != nil {
		e.onEnqueue(req)
	}
	return req, nil
}
