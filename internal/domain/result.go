package domain

import "fmt"

// SyncRunResult holds the counters of one drain. It is never persisted.
type SyncRunResult struct {
	// Processed counts entries replayed successfully and removed.
	Processed int `json:"processed"`

	// Failed counts entries whose replay was rejected. They stay queued
	// unless they were dead-lettered.
	Failed int `json:"failed"`

	// Discarded counts entries removed because they were no longer queueable.
	Discarded int `json:"discarded"`

	// DeadLettered counts failed entries moved out of the queue after
	// reaching the attempt limit. It is a subset of Failed.
	DeadLettered int `json:"dead_lettered,omitempty"`
}

// Empty reports whether the run touched no entries.
func (r SyncRunResult) Empty() bool {
	return r.Processed == 0 && r.Failed == 0 && r.Discarded == 0
}

// Total returns the number of entries attempted in the run.
func (r SyncRunResult) Total() int {
	return r.Processed + r.Failed + r.Discarded
}

func (r SyncRunResult) String() string {
	return fmt.Sprintf("processed=%d failed=%d discarded=%d", r.Processed, r.Failed, r.Discarded)
}
