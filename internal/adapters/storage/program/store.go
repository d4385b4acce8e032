package program

import (
	"context"

	domain "ministry/internal/domain/program"
)

// Store holds the programs listed on the site.
type Store interface {
	// List returns programs ordered by sort_order, then name.
	List(ctx context.Context) ([]domain.Program, error)
	Save(ctx context.Context, p domain.Program) error
	Count(ctx context.Context) (int, error)
}
