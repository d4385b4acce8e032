package outbox

import (
	"context"
	"time"

	domain "ministry/internal/domain/outbox"
)

// Store persists queued emails for the background worker.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save inserts the entry or updates its delivery state.
	Save(ctx context.Context, e domain.Entry) error

	// ListDue returns up to limit pending or retrying entries due at now, earliest due first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)

	// CountByStatus reports the backlog per status; statuses with no entries are absent.
	CountByStatus(ctx context.Context) (map[string]int, error)

	// PurgeDone deletes delivered entries completed before cutoff.
	// Failed and abandoned entries are kept for inspection.
	PurgeDone(ctx context.Context, cutoff time.Time) (int64, error)
}
