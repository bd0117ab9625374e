package wardsync

import (
	"net/http"

	"github.com/bft-labs/wardsync/pkg/log"
)

// Option configures optional behavior of a Service.
type Option func(*options)

type options struct {
	httpClient   HTTPClient
	logger       Logger
	reporter     Reporter
	store        QueueStore
	source       ConnectivitySource
	eventHandler EventHandler
}

func defaultOptions(client *http.Client) options {
	return options{
		httpClient: client,
		logger:     log.NewNoopLogger(),
	}
}

// WithHTTPClient sets the client used for replays and probes.
// If not provided, an *http.Client with Config.HTTPTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a logger. If not provided, nothing is logged.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithReporter adds an error sink. Drain errors are always logged; the
// reporter receives them as well. A panicking reporter does not fail the
// drain.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// WithStore replaces the queue backend selected by Config.Store. The
// service does not close an injected store.
func WithStore(s QueueStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithConnectivitySource replaces the HTTP health probe.
func WithConnectivitySource(src ConnectivitySource) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithEventHandler sets a handler for service events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}
