package program

import (
	"context"
	"fmt"

	"ministry/internal/adapters/storage"
	domain "ministry/internal/domain/program"
)

const programColumns = "id, name, audience, summary, duration, sort_order"

// SQLiteStore implements Store on the program table.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new program store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save validates p and upserts it by id.
// POST: p is stored, or the validation error is returned and nothing is written
func (s *SQLiteStore) Save(ctx context.Context, p domain.Program) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("program %s: %w", p.ID, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO program (`+programColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, audience=excluded.audience,
		   summary=excluded.summary, duration=excluded.duration, sort_order=excluded.sort_order`,
		p.ID, p.Name, p.Audience, p.Summary, p.Duration, p.SortOrder,
	)
	return err
}

// List returns programs in display order.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Program, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+programColumns+" FROM program ORDER BY sort_order, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var programs []domain.Program
	for rows.Next() {
		var p domain.Program
		if err := rows.Scan(&p.ID, &p.Name, &p.Audience, &p.Summary, &p.Duration, &p.SortOrder); err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM program").Scan(&n)
	return n, err
}
