package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"ministry/internal/domain/event"
	"ministry/internal/domain/gallery"
	"ministry/internal/domain/program"
	"ministry/internal/domain/resource"

	"github.com/google/uuid"
)

// Countable is implemented by every content store; seeding only touches empty tables.
type Countable interface {
	Count(ctx context.Context) (int, error)
}

// EventStoreForSeed defines the store interface needed by SeedContent.
type EventStoreForSeed interface {
	Countable
	Save(ctx context.Context, e event.Event) error
}

// ProgramStoreForSeed defines the store interface needed by SeedContent.
type ProgramStoreForSeed interface {
	Countable
	Save(ctx context.Context, p program.Program) error
}

// ResourceStoreForSeed defines the store interface needed by SeedContent.
type ResourceStoreForSeed interface {
	Countable
	Save(ctx context.Context, r resource.Resource) error
}

// GalleryStoreForSeed defines the store interface needed by SeedContent.
type GalleryStoreForSeed interface {
	Countable
	Save(ctx context.Context, item gallery.Item) error
}

// SeedContentDeps holds dependencies for SeedContent.
type SeedContentDeps struct {
	EventStore    EventStoreForSeed
	ProgramStore  ProgramStoreForSeed
	ResourceStore ResourceStoreForSeed
	GalleryStore  GalleryStoreForSeed
	Now           func() time.Time
}

// ExecuteSeedContent fills empty content tables with starter rows so no page renders empty.
// PRE: migrations applied
// POST: each table that was empty now holds the starter set; non-empty tables are untouched
// INVARIANT: running it twice is the same as running it once
func ExecuteSeedContent(ctx context.Context, deps SeedContentDeps) error {
	now := deps.Now().UTC().Truncate(time.Hour)

	if err := seedIfEmpty(ctx, "events", deps.EventStore, starterEvents(now), deps.EventStore.Save); err != nil {
		return err
	}
	if err := seedIfEmpty(ctx, "programs", deps.ProgramStore, starterPrograms(), deps.ProgramStore.Save); err != nil {
		return err
	}
	if err := seedIfEmpty(ctx, "resources", deps.ResourceStore, starterResources(now), deps.ResourceStore.Save); err != nil {
		return err
	}
	return seedIfEmpty(ctx, "gallery", deps.GalleryStore, starterGallery(), deps.GalleryStore.Save)
}

func seedIfEmpty[T any](ctx context.Context, name string, store Countable, rows []T, save func(context.Context, T) error) error {
	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil // Already seeded
	}
	for _, row := range rows {
		if err := save(ctx, row); err != nil {
			return err
		}
	}
	slog.Info("seed_event", "event", name+"_seeded", "count", len(rows))
	return nil
}

func starterEvents(now time.Time) []event.Event {
	day := 24 * time.Hour
	return []event.Event{
		{
			ID:          uuid.New().String(),
			Title:       "Night of Worship",
			Kind:        event.KindWorship,
			Description: "An evening of **extended worship** and prayer. Open to everyone.",
			Location:    "Main Auditorium",
			StartsAt:    now.Add(10 * day).Add(19 * time.Hour),
			CreatedAt:   now,
		},
		{
			ID:          uuid.New().String(),
			Title:       "Vocal Health Workshop",
			Kind:        event.KindWorkshop,
			Description: "Practical care for singers: warm-ups, breath support and rest.",
			Location:    "Studio B",
			StartsAt:    now.Add(17 * day).Add(10 * time.Hour),
			EndsAt:      now.Add(17 * day).Add(13 * time.Hour),
			CreatedAt:   now,
		},
		{
			ID:          uuid.New().String(),
			Title:       "Worship Leaders Conference",
			Kind:        event.KindConference,
			Description: "Three days of teaching, rehearsal labs and team sessions.",
			Location:    "Conference Centre",
			StartsAt:    now.Add(45 * day).Add(9 * time.Hour),
			EndsAt:      now.Add(47 * day).Add(17 * time.Hour),
			CreatedAt:   now,
		},
	}
}

func starterPrograms() []program.Program {
	return []program.Program{
		{ID: uuid.New().String(), Name: "Foundations of Worship", Audience: program.AudienceAdults, Summary: "Theology and practice of worship leading.", Duration: "10 weeks", SortOrder: 1},
		{ID: uuid.New().String(), Name: "Youth Band Lab", Audience: program.AudienceYouth, Summary: "Ensemble playing and song arrangement for ages 13-18.", Duration: "8 weeks", SortOrder: 2},
		{ID: uuid.New().String(), Name: "Team Intensive", Audience: program.AudienceTeams, Summary: "Coaching for whole worship teams from one church.", Duration: "1 weekend", SortOrder: 3},
	}
}

func starterResources(now time.Time) []resource.Resource {
	return []resource.Resource{
		{
			ID:          uuid.New().String(),
			Slug:        "preparing-a-setlist",
			Title:       "Preparing a Setlist",
			Category:    resource.CategoryArticle,
			Body:        "## Start with the theme\n\nPick songs that carry the message of the service.\n\n- Keys that flow\n- Tempos that build",
			PublishedAt: now,
		},
		{
			ID:          uuid.New().String(),
			Slug:        "morning-devotional",
			Title:       "Morning Devotional",
			Category:    resource.CategoryDevotional,
			Body:        "Take ten minutes before rehearsal to read and pray together.",
			PublishedAt: now,
		},
	}
}

func starterGallery() []gallery.Item {
	return []gallery.Item{
		{ID: uuid.New().String(), Title: "Worship night", ImageURL: "/static/img/worship-night.jpg", Caption: "Our monthly night of worship.", SortOrder: 1},
		{ID: uuid.New().String(), Title: "Graduation", ImageURL: "/static/img/graduation.jpg", Caption: "Foundations class graduation.", SortOrder: 2},
	}
}
