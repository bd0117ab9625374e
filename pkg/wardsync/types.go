package wardsync

import (
	"github.com/bft-labs/wardsync/internal/app"
	"github.com/bft-labs/wardsync/internal/contract"
	"github.com/bft-labs/wardsync/internal/domain"
	"github.com/bft-labs/wardsync/internal/ports"
	"github.com/bft-labs/wardsync/pkg/log"
)

// Queue model.
type (
	// QueuedRequest is a mutating HTTP call persisted while offline.
	QueuedRequest = domain.QueuedRequest

	// RequestDraft is the unsanitized call handed to Enqueue.
	RequestDraft = domain.RequestDraft

	// DeadLetter is an entry that exhausted its replay attempts.
	DeadLetter = domain.DeadLetter

	// SyncRunResult holds the counters of one drain.
	SyncRunResult = domain.SyncRunResult

	// ReplayError is the rejection returned by the HTTP replayer.
	ReplayError = domain.ReplayError

	// ReportContext tags an error handed to a Reporter.
	ReportContext = domain.ReportContext

	// Route is one mounted mutating route.
	Route = contract.Route
)

// Collaborators that may be injected with options.
type (
	QueueStore         = ports.QueueStore
	Reporter           = ports.Reporter
	ReporterFunc       = ports.ReporterFunc
	ConnectivitySource = ports.ConnectivitySource
	HTTPClient         = ports.HTTPClient
	Logger             = log.Logger
)

// Subscription is returned by every Subscribe call and by StartSync.
type Subscription = app.Subscription

// ManualSource is a ConnectivitySource driven by Set.
type ManualSource = app.ManualSource

// NewManualSource returns a source that reports whatever Set is given.
func NewManualSource() *ManualSource {
	return app.NewManualSource()
}

// Report operations.
const (
	ReportScope      = domain.ReportScope
	OpDiscardInvalid = domain.OpDiscardInvalid
	OpReplay         = domain.OpReplay
	OpReadQueue      = domain.OpReadQueue
	OpRemove         = domain.OpRemove
	OpRecordFailure  = domain.OpRecordFailure
	OpDeadLetter     = domain.OpDeadLetter
)

// Errors, checkable with errors.Is.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrInvalidRequest  = domain.ErrInvalidRequest
	ErrNotFound        = domain.ErrNotFound
	ErrConflict        = domain.ErrConflict
	ErrStorage         = domain.ErrStorage
)

// State is the lifecycle state of a Service.
type State = app.State

const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)
