package wardsync

import "time"

// EventHandler receives notifications about service activity.
//
// Connectivity and syncing events are delivered in order from a dispatcher
// goroutine. The others are called from the goroutine that caused them.
// Implementations should return quickly.
type EventHandler interface {
	OnStateChange(e StateChangeEvent)
	OnConnectivityChange(e ConnectivityEvent)
	OnSyncingChange(e SyncingEvent)
	OnSyncRun(e SyncRunEvent)
	OnEnqueue(e EnqueueEvent)
	OnRoutesReload(e RoutesReloadEvent)
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ConnectivityEvent is emitted when the service goes online or offline.
type ConnectivityEvent struct {
	Online bool
	Time   time.Time
}

// SyncingEvent is emitted when a drain starts or ends.
type SyncingEvent struct {
	Syncing bool
	Time    time.Time
}

// SyncRunEvent is emitted after every drain that ran while online.
type SyncRunEvent struct {
	Result   SyncRunResult
	Err      error
	Finished time.Time
}

// EnqueueEvent is emitted after a request was persisted.
type EnqueueEvent struct {
	Request QueuedRequest
}

// RoutesReloadEvent is emitted after the routes file was reloaded.
// On error the previous routes stay in effect.
type RoutesReloadEvent struct {
	Routes int
	Err    error
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// handle only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)         {}
func (BaseEventHandler) OnConnectivityChange(ConnectivityEvent) {}
func (BaseEventHandler) OnSyncingChange(SyncingEvent)           {}
func (BaseEventHandler) OnSyncRun(SyncRunEvent)                 {}
func (BaseEventHandler) OnEnqueue(EnqueueEvent)                 {}
func (BaseEventHandler) OnRoutesReload(RoutesReloadEvent)       {}
