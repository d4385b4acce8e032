package outbox

import (
	"context"
	"database/sql"
	"time"

	"ministry/internal/adapters/storage"
	domain "ministry/internal/domain/outbox"
)

// dateLayout is fixed-width so stored timestamps compare correctly as text.
const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `SELECT id, action_type, payload, status, attempts, max_attempts, last_error,
	last_attempted_at, next_retry_at, external_id, created_at, completed_at FROM outbox`

// SQLiteStore implements Store on the outbox table.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new outbox store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID returns sql.ErrNoRows for an unknown id.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanEntry(row)
}

// Save upserts e; only the delivery state changes on conflict.
func (s *SQLiteStore) Save(ctx context.Context, e domain.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (id, action_type, payload, status, attempts, max_attempts, last_error,
		   last_attempted_at, next_retry_at, external_id, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, attempts=excluded.attempts, max_attempts=excluded.max_attempts,
		   last_error=excluded.last_error, last_attempted_at=excluded.last_attempted_at,
		   next_retry_at=excluded.next_retry_at, external_id=excluded.external_id,
		   completed_at=excluded.completed_at`,
		e.ID, e.ActionType, e.Payload, e.Status, e.Attempts, e.MaxAttempts, e.LastError,
		nullableTime(e.LastAttemptedAt), nullableTime(e.NextRetryAt), e.ExternalID,
		e.CreatedAt.UTC().Format(dateLayout), nullableTime(e.CompletedAt))
	return err
}

// ListDue returns pending and retrying entries whose retry time has come,
// earliest due first. Entries still backing off are not returned.
// PRE: limit > 0
func (s *SQLiteStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE status IN (?, ?) AND attempts < max_attempts
		   AND (next_retry_at IS NULL OR next_retry_at = '' OR next_retry_at <= ?)
		 ORDER BY COALESCE(NULLIF(next_retry_at, ''), created_at) ASC, created_at ASC LIMIT ?`,
		domain.StatusPending, domain.StatusRetrying, now.UTC().Format(dateLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByStatus reports how many entries are in each status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// PurgeDone deletes delivered entries completed before cutoff.
// POST: Returns the number of rows deleted
func (s *SQLiteStore) PurgeDone(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?`,
		domain.StatusDone, cutoff.UTC().Format(dateLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a single row into an Entry.
func scanEntry(row scanner) (domain.Entry, error) {
	var e domain.Entry
	var createdAt string
	var lastAttemptedAt, nextRetryAt, completedAt sql.NullString
	err := row.Scan(&e.ID, &e.ActionType, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts, &e.LastError,
		&lastAttemptedAt, &nextRetryAt, &e.ExternalID, &createdAt, &completedAt)
	if err != nil {
		return domain.Entry{}, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	e.LastAttemptedAt = parseNullable(lastAttemptedAt)
	e.NextRetryAt = parseNullable(nextRetryAt)
	e.CompletedAt = parseNullable(completedAt)
	return e, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func parseNullable(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}
