package gallery

import (
	"context"

	"ministry/internal/adapters/storage"
	domain "ministry/internal/domain/gallery"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts or updates a gallery item.
// PRE: item has been validated
// POST: item is persisted
func (s *SQLiteStore) Save(ctx context.Context, item domain.Item) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gallery_item (id, title, image_url, caption, sort_order) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, image_url=excluded.image_url,
		   caption=excluded.caption, sort_order=excluded.sort_order`,
		item.ID, item.Title, item.ImageURL, item.Caption, item.SortOrder)
	return err
}

// List returns all gallery items in display order.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, image_url, caption, sort_order FROM gallery_item ORDER BY sort_order, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Title, &it.ImageURL, &it.Caption, &it.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Count returns the number of stored gallery items.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gallery_item`).Scan(&n)
	return n, err
}
