package repositories

import (
	"context"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/messages"
)

// Repository persists the flight log: session lifecycle entries and
// periodic position samples, keyed by a per-run id.
type Repository interface {
	// RecordJoin records the start of a player's session.
	RecordJoin(ctx context.Context, runID string, playerID uint32, name string, at time.Time) error
	// RecordLeave records the end of a player's session.
	RecordLeave(ctx context.Context, runID string, playerID uint32, at time.Time) error
	// RecordSample records a position sample for a live player.
	RecordSample(ctx context.Context, runID string, state messages.PlayerState, at time.Time) error
	// Close closes the repository.
	Close(ctx context.Context) error
}
