package credential

import (
	"bytes"
	"context"
	"testing"
	"time"

	"ministry/internal/adapters/storage/storagetest"
)

func testSealer(t *testing.T, fill byte) *Sealer {
	t.Helper()
	s, err := NewSealer(bytes.Repeat([]byte{fill}, 32))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	return s
}

func TestDeviceStorage_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)
	store := NewSQLiteStore(db, testSealer(t, 1))
	dev := store.ForDevice("device-a")
	other := store.ForDevice("device-b")

	if _, ok, err := dev.Get(ctx, "student_token"); ok || err != nil {
		t.Fatalf("Get on empty storage = ok %v, err %v", ok, err)
	}

	if err := dev.Set(ctx, "student_token", "tok-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := dev.Set(ctx, "student_token", "tok-2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if err := dev.Set(ctx, "student_role", "student"); err != nil {
		t.Fatalf("Set role: %v", err)
	}

	v, ok, err := dev.Get(ctx, "student_token")
	if err != nil || !ok || v != "tok-2" {
		t.Errorf("Get = %q, %v, %v; want tok-2", v, ok, err)
	}
	if _, ok, _ := other.Get(ctx, "student_token"); ok {
		t.Error("credential leaked across devices")
	}

	// Values are sealed at rest.
	var raw []byte
	if err := db.QueryRow(`SELECT value FROM student_credential WHERE device_id = 'device-a' AND key = 'student_token'`).Scan(&raw); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if bytes.Contains(raw, []byte("tok-2")) {
		t.Error("stored value is not sealed")
	}

	if err := dev.Remove(ctx, "student_token", "student_role", "student_user"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := dev.Remove(ctx, "student_token"); err != nil {
		t.Fatalf("Remove twice: %v", err)
	}
	for _, k := range []string{"student_token", "student_role"} {
		if _, ok, _ := dev.Get(ctx, k); ok {
			t.Errorf("%s still present after Remove", k)
		}
	}
}

func TestDeviceStorage_RotatedKeyReadsAbsent(t *testing.T) {
	ctx := context.Background()
	db := storagetest.Open(t)

	if err := NewSQLiteStore(db, testSealer(t, 1)).ForDevice("d").Set(ctx, "student_token", "secret"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_, ok, err := NewSQLiteStore(db, testSealer(t, 2)).ForDevice("d").Get(ctx, "student_token")
	if ok || err != nil {
		t.Errorf("Get with rotated key = ok %v, err %v; want absent, nil", ok, err)
	}
}

func TestSQLiteStore_PurgeOlderThan(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(storagetest.Open(t), testSealer(t, 3))
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return old }
	if err := store.ForDevice("stale").Set(ctx, "student_token", "x"); err != nil {
		t.Fatalf("Set stale: %v", err)
	}
	store.now = func() time.Time { return old.Add(60 * 24 * time.Hour) }
	if err := store.ForDevice("fresh").Set(ctx, "student_token", "y"); err != nil {
		t.Fatalf("Set fresh: %v", err)
	}

	n, err := store.PurgeOlderThan(ctx, old.Add(30*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PurgeOlderThan = %d, %v; want 1", n, err)
	}
	if _, ok, _ := store.ForDevice("fresh").Get(ctx, "student_token"); !ok {
		t.Error("fresh credential was purged")
	}
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	_ = m.Set(ctx, "student_token", "abc")
	if v, ok, _ := m.Get(ctx, "student_token"); !ok || v != "abc" {
		t.Errorf("Get = %q, %v", v, ok)
	}
	_ = m.Remove(ctx, "student_token", "student_user")
	if _, ok, _ := m.Get(ctx, "student_token"); ok {
		t.Error("value present after Remove")
	}
}

func TestSealer(t *testing.T) {
	s := testSealer(t, 9)
	sealed, err := s.Seal([]byte("hello"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	plain, err := s.Open(sealed)
	if err != nil || string(plain) != "hello" {
		t.Errorf("Open = %q, %v", plain, err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := s.Open(sealed); err != ErrUnsealable {
		t.Errorf("Open tampered error = %v, want ErrUnsealable", err)
	}
	if _, err := s.Open([]byte("short")); err != ErrUnsealable {
		t.Errorf("Open short error = %v, want ErrUnsealable", err)
	}
	if _, err := NewSealer([]byte("short")); err == nil {
		t.Error("NewSealer accepted a short key")
	}
}
