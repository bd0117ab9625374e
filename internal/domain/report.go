package domain

// ReportScope is the scope attached to every report emitted by the sync manager.
const ReportScope = "syncManager"

// Report operations.
const (
	OpDiscardInvalid = "discardInvalidQueueItem"
	OpReplay         = "replayQueueItem"
	OpReadQueue      = "readQueue"
	OpRemove         = "removeQueueItem"
	OpRecordFailure  = "recordQueueItemFailure"
	OpDeadLetter     = "deadLetterQueueItem"
)

// ReportContext identifies where a reported error came from.
type ReportContext struct {
	Scope string
	Op    string
	ID    string
}
