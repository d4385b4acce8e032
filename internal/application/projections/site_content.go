package projections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	resourceStore "ministry/internal/adapters/storage/resource"
	domainEvent "ministry/internal/domain/event"
	domainGallery "ministry/internal/domain/gallery"
	domainProgram "ministry/internal/domain/program"
	domainResource "ministry/internal/domain/resource"
)

// EventLister defines the store interface needed by the events projections.
type EventLister interface {
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domainEvent.Event, error)
}

// ProgramLister defines the store interface needed by the programs projection.
type ProgramLister interface {
	List(ctx context.Context) ([]domainProgram.Program, error)
}

// ResourceReader defines the store interface needed by the resource projections.
type ResourceReader interface {
	GetBySlug(ctx context.Context, slug string) (domainResource.Resource, error)
	List(ctx context.Context, filter resourceStore.ListFilter) ([]domainResource.Resource, error)
}

// GallerySource lists gallery photos from SQLite or an object bucket.
type GallerySource interface {
	List(ctx context.Context) ([]domainGallery.Item, error)
}

// SiteContentDeps holds dependencies for the public page projections.
type SiteContentDeps struct {
	Events    EventLister
	Programs  ProgramLister
	Resources ResourceReader
	Gallery   GallerySource
	Now       func() time.Time
}

// EventsPage lists upcoming events grouped by month label.
type EventsPage struct {
	Months []EventMonth
	Total  int
}

// EventMonth is one month of events, e.g. "November 2026".
type EventMonth struct {
	Label  string
	Events []domainEvent.Event
}

// QueryEventsPage lists upcoming events, soonest first, grouped by the month they start.
// PRE: limit > 0
// POST: Months are in chronological order; ongoing multi-day events are included
func QueryEventsPage(ctx context.Context, limit int, deps SiteContentDeps) (EventsPage, error) {
	events, err := deps.Events.ListUpcoming(ctx, deps.Now(), limit)
	if err != nil {
		return EventsPage{}, fmt.Errorf("list upcoming events: %w", err)
	}
	page := EventsPage{Total: len(events)}
	for _, e := range events {
		label := e.StartsAt.Format("January 2006")
		if n := len(page.Months); n == 0 || page.Months[n-1].Label != label {
			page.Months = append(page.Months, EventMonth{Label: label})
		}
		last := &page.Months[len(page.Months)-1]
		last.Events = append(last.Events, e)
	}
	return page, nil
}

// ProgramsPage groups programs by audience, in the order audiences are declared.
type ProgramsPage struct {
	Audiences []AudiencePrograms
}

// AudiencePrograms is the programs offered to one audience.
type AudiencePrograms struct {
	Audience string
	Programs []domainProgram.Program
}

// QueryProgramsPage lists programs grouped by audience; empty audiences are omitted.
func QueryProgramsPage(ctx context.Context, deps SiteContentDeps) (ProgramsPage, error) {
	programs, err := deps.Programs.List(ctx)
	if err != nil {
		return ProgramsPage{}, fmt.Errorf("list programs: %w", err)
	}
	byAudience := make(map[string][]domainProgram.Program)
	for _, p := range programs {
		byAudience[p.Audience] = append(byAudience[p.Audience], p)
	}
	var page ProgramsPage
	for _, a := range domainProgram.ValidAudiences {
		if len(byAudience[a]) > 0 {
			page.Audiences = append(page.Audiences, AudiencePrograms{Audience: a, Programs: byAudience[a]})
		}
	}
	return page, nil
}

// QueryResources lists published resources, optionally restricted to one category.
// PRE: category is "" or one of domainResource.ValidCategories
func QueryResources(ctx context.Context, category string, deps SiteContentDeps) ([]domainResource.Resource, error) {
	list, err := deps.Resources.List(ctx, resourceStore.ListFilter{Category: category})
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return list, nil
}

// QueryResource returns one resource by slug.
// POST: Returns domainResource.ErrNotFound for unknown or malformed slugs
func QueryResource(ctx context.Context, slug string, deps SiteContentDeps) (domainResource.Resource, error) {
	if !domainResource.ValidSlug(slug) {
		return domainResource.Resource{}, domainResource.ErrNotFound
	}
	r, err := deps.Resources.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domainResource.ErrNotFound) {
			return domainResource.Resource{}, err
		}
		return domainResource.Resource{}, fmt.Errorf("get resource %s: %w", slug, err)
	}
	return r, nil
}

// QueryGallery lists gallery photos. A failing source yields an empty gallery, not an error page.
func QueryGallery(ctx context.Context, deps SiteContentDeps) []domainGallery.Item {
	items, err := deps.Gallery.List(ctx)
	if err != nil {
		slog.Error("gallery_list_failed", "error", err)
		return nil
	}
	return items
}

// HomePage is the landing page summary.
type HomePage struct {
	NextEvents []domainEvent.Event
	Programs   []domainProgram.Program
}

// QueryHomePage returns the next few events and all programs.
func QueryHomePage(ctx context.Context, deps SiteContentDeps) (HomePage, error) {
	events, err := deps.Events.ListUpcoming(ctx, deps.Now(), 3)
	if err != nil {
		return HomePage{}, fmt.Errorf("list upcoming events: %w", err)
	}
	programs, err := deps.Programs.List(ctx)
	if err != nil {
		return HomePage{}, fmt.Errorf("list programs: %w", err)
	}
	return HomePage{NextEvents: events, Programs: programs}, nil
}
