package resource

import (
	"context"

	domain "ministry/internal/domain/resource"
)

// Store persists Resource state.
type Store interface {
	Save(ctx context.Context, r domain.Resource) error
	// GetBySlug returns domain.ErrNotFound when no resource has the slug.
	GetBySlug(ctx context.Context, slug string) (domain.Resource, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Resource, error)
	Count(ctx context.Context) (int, error)
}

// ListFilter narrows a resource listing. Zero values match everything.
type ListFilter struct {
	Category string
	Limit    int
}
