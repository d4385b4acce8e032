package resource

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ministry/internal/adapters/storage"
	domain "ministry/internal/domain/resource"
)

const timeLayout = time.RFC3339

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
// PRE: db is a valid, open database connection with migrations applied
// POST: store is ready for use
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts or updates a resource, keyed by ID.
// PRE: r has been validated
// POST: resource is persisted
func (s *SQLiteStore) Save(ctx context.Context, r domain.Resource) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resource (id, slug, title, category, body, published_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   slug=excluded.slug, title=excluded.title, category=excluded.category,
		   body=excluded.body, published_at=excluded.published_at`,
		r.ID, r.Slug, r.Title, r.Category, r.Body, r.PublishedAt.UTC().Format(timeLayout),
	)
	return err
}

// GetBySlug retrieves a resource by its slug.
// PRE: none
// POST: returns the resource or domain.ErrNotFound
func (s *SQLiteStore) GetBySlug(ctx context.Context, slug string) (domain.Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slug, title, category, body, published_at FROM resource WHERE slug = ?`, slug)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Resource{}, domain.ErrNotFound
	}
	return r, err
}

// List returns resources matching filter, newest first.
// PRE: none
// POST: returns matching resources ordered by published_at descending
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Resource, error) {
	query := `SELECT id, slug, title, category, body, published_at FROM resource`
	var args []any
	if filter.Category != "" {
		query += ` WHERE category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY published_at DESC, title ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored resources.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resource`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(row scanner) (domain.Resource, error) {
	var r domain.Resource
	var published string
	if err := row.Scan(&r.ID, &r.Slug, &r.Title, &r.Category, &r.Body, &published); err != nil {
		return domain.Resource{}, err
	}
	r.PublishedAt, _ = time.Parse(timeLayout, published)
	return r, nil
}
