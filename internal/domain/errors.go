package domain

import "errors"

// Domain errors represent error conditions in the wardsync domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("wardsync: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("wardsync: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("wardsync: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("wardsync: invalid configuration")

	// ErrInvalidRequest is returned when a draft cannot become a queued request
	// (missing url or method).
	ErrInvalidRequest = errors.New("wardsync: invalid request")

	// ErrNotFound is returned when a queue entry does not exist.
	ErrNotFound = errors.New("wardsync: queue entry not found")

	// ErrConflict is returned when an id is already queued.
	ErrConflict = errors.New("wardsync: queue entry already exists")

	// ErrStorage wraps failures of the durable queue store.
	ErrStorage = errors.New("wardsync: storage failure")
)
