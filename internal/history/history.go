package history

import (
	"context"
	"time"

	"github.com/telkar/fleetward/internal/status"
)

// Event is one observed host state, appended to an external audit store
// every time the reconciler writes a StatusRecord.
type Event struct {
	OccurredAt time.Time     `json:"occurred_at"`
	Record     status.Record `json:"record"`
}

// Sink is a destination for check history (audit/analytics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
