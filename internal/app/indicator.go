package app

import (
	"sync/atomic"

	"github.com/bft-labs/wardsync/pkg/log"
)

// SyncIndicator is the app-wide "syncing" flag. Only the sync manager
// writes it; everyone else reads or subscribes.
type SyncIndicator struct {
	syncing   atomic.Bool
	broadcast *Broadcast[bool]
}

// NewSyncIndicator creates a cleared indicator.
func NewSyncIndicator(logger log.Logger) *SyncIndicator {
	return &SyncIndicator{broadcast: NewBroadcast[bool](logger)}
}

// Syncing reports whether a drain is in progress.
func (i *SyncIndicator) Syncing() bool {
	return i.syncing.Load()
}

// Subscribe registers h for flag changes.
func (i *SyncIndicator) Subscribe(h func(syncing bool)) *Subscription {
	return i.broadcast.Subscribe(h)
}

// Flush waits for queued notifications to be delivered.
func (i *SyncIndicator) Flush() {
	i.broadcast.Flush()
}

func (i *SyncIndicator) set(v bool) {
	if i.syncing.Swap(v) != v {
		i.broadcast.Publish(v)
	}
}
