package ports

import (
	"context"

	"github.com/bft-labs/wardsync/internal/domain"
)

// QueueStore persists queued requests in FIFO order.
// Implementations must be safe for concurrent callers: a feature enqueuing
// while the sync manager removes must never lose entries.
type QueueStore interface {
	// Enqueue durably stores a request, ordered by EnqueuedAt. Enqueuing an
	// id that is already queued leaves the existing entry untouched and
	// returns domain.ErrConflict.
	Enqueue(ctx context.Context, req domain.QueuedRequest) error

	// List returns all queued requests, oldest first.
	List(ctx context.Context) ([]domain.QueuedRequest, error)

	// Remove deletes the entry with the given id.
	// Removing an id that is not queued returns nil.
	Remove(ctx context.Context, id string) error

	// RecordFailure increments the attempt counter of an entry and stores
	// the failure message. Returns the new attempt count.
	RecordFailure(ctx context.Context, id, message string) (int, error)

	// DeadLetter moves an entry out of the queue into the dead-letter list.
	DeadLetter(ctx context.Context, id, reason string) error

	// ListDeadLetters returns dead-lettered entries, oldest failure first.
	ListDeadLetters(ctx context.Context) ([]domain.DeadLetter, error)

	// Requeue moves a dead-lettered entry back to the tail of the queue with
	// its attempt counter reset. Returns domain.ErrNotFound for unknown ids
	// and domain.ErrConflict, keeping the dead letter, when the id is
	// queued again in the meantime.
	Requeue(ctx context.Context, id string) error

	// Len returns the number of queued requests.
	Len(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}
