package contact

import (
	"context"
	"testing"
	"time"

	"ministry/internal/adapters/storage/storagetest"
	domain "ministry/internal/domain/contact"
)

func TestSQLiteStore_SaveListRecent(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(storagetest.Open(t))
	base := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	for i, name := range []string{"Ana", "Ben", "Cal"} {
		m := domain.Message{ID: name, Name: name, Email: name + "@example.org", Body: "hi", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Save(ctx, m); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
	}

	got, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Cal" || got[1].Name != "Ben" {
		t.Errorf("ListRecent = %+v", got)
	}
	if !got[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v", got[0].CreatedAt)
	}

	dup := domain.Message{ID: "Ana", Name: "Ana", Email: "a@example.org", Body: "again", CreatedAt: base}
	if err := store.Save(ctx, dup); err == nil {
		t.Error("saving a duplicate id should fail")
	}
}
