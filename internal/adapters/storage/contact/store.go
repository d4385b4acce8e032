package contact

import (
	"context"

	domain "ministry/internal/domain/contact"
)

// Store persists contact form submissions.
type Store interface {
	Save(ctx context.Context, m domain.Message) error
	ListRecent(ctx context.Context, limit int) ([]domain.Message, error)
}
