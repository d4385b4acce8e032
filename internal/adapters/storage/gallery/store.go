package gallery

import (
	"context"

	domain "ministry/internal/domain/gallery"
)

// Source lists the photos shown on the gallery page.
type Source interface {
	List(ctx context.Context) ([]domain.Item, error)
}

// Store persists gallery items curated in the database.
type Store interface {
	Source
	Save(ctx context.Context, item domain.Item) error
	Count(ctx context.Context) (int, error)
}
