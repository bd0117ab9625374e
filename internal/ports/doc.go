// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [QueueStore]: durable, ordered storage of queued requests
//   - [ConnectivitySource]: the platform reachability signal
//   - [Replayer]: sends a queued request to the API
//   - [Reporter]: fire-and-forget error reporting sink
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with concrete
// backends (JSON file, SQLite, net/http).
package ports
