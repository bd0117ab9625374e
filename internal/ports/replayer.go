package ports

import (
	"context"

	"github.com/bft-labs/wardsync/internal/domain"
)

// Replayer sends a queued request to the API.
// A non-nil error means the replay was rejected; implementations return
// *domain.ReplayError so callers can inspect status and code.
// Request-level timeouts are owned by the implementation.
type Replayer interface {
	Replay(ctx context.Context, req domain.QueuedRequest) (domain.ReplayResponse, error)
}
