package event

import (
	"context"
	"time"

	domain "ministry/internal/domain/event"
)

// Store persists Event state.
type Store interface {
	Save(ctx context.Context, e domain.Event) error
	GetByID(ctx context.Context, id string) (domain.Event, error)
	// ListUpcoming returns events that have not finished by from, soonest first.
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.Event, error)
	Count(ctx context.Context) (int, error)
}
