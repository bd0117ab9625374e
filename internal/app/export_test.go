package app

import "sync"

// reset drops the StartSync subscription so a test can start it again.
func (m *SyncManager) reset() {
	m.subscription.Unsubscribe()
	m.subscription = nil
	m.startOnce = sync.Once{}
}
