package ports

import "context"

// ConnectivitySource observes platform reachability.
type ConnectivitySource interface {
	// Run reports reachability observations until ctx is canceled.
	// Observations may repeat the previous value; deduplication is the
	// monitor's job. Run returns nil on cancellation.
	Run(ctx context.Context, report func(online bool)) error
}
