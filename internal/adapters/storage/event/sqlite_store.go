package event

import (
	"context"
	"time"

	"ministry/internal/adapters/storage"
	domain "ministry/internal/domain/event"
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

// Save inserts or updates an event.
// PRE: e is a valid Event (Validate() returns nil)
// POST: event is persisted
func (s *SQLiteStore) Save(ctx context.Context, e domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event (id, title, kind, description, location, starts_at, ends_at, registration_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title=excluded.title, kind=excluded.kind, description=excluded.description,
		   location=excluded.location, starts_at=excluded.starts_at, ends_at=excluded.ends_at,
		   registration_url=excluded.registration_url`,
		e.ID, e.Title, e.Kind, e.Description, e.Location,
		formatTime(e.StartsAt), formatTime(e.EndsAt),
		e.RegistrationURL, formatTime(e.CreatedAt),
	)
	return err
}

// GetByID retrieves an event by ID.
// PRE: id is non-empty
// POST: returns the event or sql.ErrNoRows if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, kind, description, location, starts_at, ends_at, registration_url, created_at
		 FROM event WHERE id = ?`, id)
	return scanEvent(row)
}

// ListUpcoming returns events whose end (or start, when open-ended) is at or after from.
// PRE: limit > 0
// POST: returns at most limit events sorted by starts_at ascending
func (s *SQLiteStore) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.Event, error) {
	cutoff := formatTime(from)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, kind, description, location, starts_at, ends_at, registration_url, created_at
		 FROM event
		 WHERE (ends_at != '' AND ends_at >= ?) OR (ends_at = '' AND starts_at >= ?)
		 ORDER BY starts_at ASC LIMIT ?`, cutoff, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of stored events.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (domain.Event, error) {
	var e domain.Event
	var startStr, endStr, createdStr string
	err := row.Scan(&e.ID, &e.Title, &e.Kind, &e.Description, &e.Location,
		&startStr, &endStr, &e.RegistrationURL, &createdStr)
	if err != nil {
		return domain.Event{}, err
	}
	e.StartsAt = parseTime(startStr)
	e.EndsAt = parseTime(endStr)
	e.CreatedAt = parseTime(createdStr)
	return e, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, s)
	return t
}

var _ Store = (*SQLiteStore)(nil)
