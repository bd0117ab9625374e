// Package wardsync keeps mutating HTTP requests durable across network
// outages.
//
// A feature that cannot reach its API while offline hands the request to
// [Service.Enqueue]. The request is sanitized and persisted. When
// connectivity returns, the service replays the queue in FIFO order,
// removing entries that succeed and entries that are no longer valid. A
// rejected entry stays queued and is retried by the next drain.
//
// # Basic Usage
//
//	svc, err := wardsync.New(wardsync.Config{
//	    APIBaseURL:        "https://api.example.com",
//	    StateDir:          "/var/lib/myapp/wardsync",
//	    IdempotencyHeader: wardsync.DefaultIdempotencyHeader,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	_, err = svc.Enqueue(ctx, wardsync.RequestDraft{
//	    URL:    "/api/notes",
//	    Method: "POST",
//	    Body:   map[string]any{"text": "hello"},
//	})
//
// # Delivery
//
// Replay is at-least-once: an entry is removed only after the server
// accepted it, so a crash in between sends it again. Each entry carries an
// idempotency key that is sent in [Config.IdempotencyHeader] so servers
// can drop duplicates.
//
// # Connectivity
//
// By default the service polls Config.HealthPath on the API. Any HTTP
// response means online. Until the first probe completes the service
// assumes it is online. Use [WithConnectivitySource] and [NewManualSource]
// to drive connectivity yourself.
//
// # Routes
//
// Entries whose route is no longer mounted are discarded instead of being
// replayed. The mounted routes come from Config.RoutesFile, a YAML file:
//
//	routes:
//	  - method: POST
//	    pattern: /api/notes
//	  - method: PATCH
//	    pattern: /api/notes/:id
//
// With Config.WatchRoutes the file is reloaded when it changes.
//
// # Events
//
// Implement [EventHandler], or embed [BaseEventHandler], and pass it via
// [WithEventHandler] to observe state changes, connectivity, the syncing
// flag and drain results.
//
// # Lifecycle States
//
// A Service is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. A crashed or stopped service may be
// started again.
package wardsync
