package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ministry/internal/adapters/storage"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore persists credential values per device, sealed at rest.
type SQLiteStore struct {
	db     storage.SQLDB
	sealer *Sealer
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLiteStore.
// PRE: db has migrations applied; sealer is non-nil
// POST: store is ready for use
func NewSQLiteStore(db storage.SQLDB, sealer *Sealer) *SQLiteStore {
	return &SQLiteStore{db: db, sealer: sealer, now: time.Now}
}

// ForDevice returns the persistent Storage scoped to one device cookie.
// PRE: deviceID is non-empty
func (s *SQLiteStore) ForDevice(deviceID string) Storage {
	return &deviceStorage{store: s, deviceID: deviceID}
}

// PurgeOlderThan removes credential rows not written since cutoff.
// POST: Returns the number of rows deleted
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM student_credential WHERE updated_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type deviceStorage struct {
	store    *SQLiteStore
	deviceID string
}

// Get returns the unsealed value for key.
// A value that no longer unseals (rotated key) is treated as absent.
func (d *deviceStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var sealed []byte
	err := d.store.db.QueryRowContext(ctx,
		`SELECT value FROM student_credential WHERE device_id = ? AND key = ?`, d.deviceID, key,
	).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read credential %s: %w", key, err)
	}
	plain, err := d.store.sealer.Open(sealed)
	if err != nil {
		slog.Warn("credential_unsealable", "key", key)
		return "", false, nil
	}
	return string(plain), true, nil
}

// Set seals value and stores it under key for this device.
func (d *deviceStorage) Set(ctx context.Context, key, value string) error {
	sealed, err := d.store.sealer.Seal([]byte(value))
	if err != nil {
		return err
	}
	_, err = d.store.db.ExecContext(ctx,
		`INSERT INTO student_credential (device_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(device_id, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		d.deviceID, key, sealed, d.store.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("write credential %s: %w", key, err)
	}
	return nil
}

// Remove deletes the given keys for this device in one statement.
func (d *deviceStorage) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, 0, len(keys)+1)
	args = append(args, d.deviceID)
	for _, k := range keys {
		args = append(args, k)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	_, err := d.store.db.ExecContext(ctx,
		`DELETE FROM student_credential WHERE device_id = ? AND key IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

var _ Storage = (*deviceStorage)(nil)
