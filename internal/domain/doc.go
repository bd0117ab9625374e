// Package domain contains the core entities and value objects for wardsync.
//
// This package is the innermost layer. It has no dependencies on
// infrastructure concerns (HTTP, file system, SQLite, logging) and contains
// only the data model of the offline mutation pipeline.
//
// # Entities
//
//   - [QueuedRequest]: a mutating HTTP call captured while offline
//   - [RequestDraft]: the unsanitized form handed over by the enqueuing feature
//   - [SyncRunResult]: per-run counters returned by a drain
//   - [ReplayError]: the rejection shape of the HTTP collaborator
//   - [ReportContext]: the context attached to every error report
package domain
