package event_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"ministry/internal/domain/event"
)

var start = time.Date(2026, 7, 10, 19, 0, 0, 0, time.UTC)

// TestEvent_Validate tests validation of Event.
func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ev      event.Event
		wantErr error
	}{
		{name: "valid", ev: event.Event{Title: "Night of Worship", Kind: event.KindWorship, StartsAt: start}},
		{name: "empty title", ev: event.Event{Kind: event.KindWorship, StartsAt: start}, wantErr: event.ErrEmptyTitle},
		{name: "long title", ev: event.Event{Title: strings.Repeat("x", 201), Kind: event.KindWorship, StartsAt: start}, wantErr: event.ErrTitleTooLong},
		{name: "bad kind", ev: event.Event{Title: "x", Kind: "party", StartsAt: start}, wantErr: event.ErrInvalidKind},
		{name: "no start", ev: event.Event{Title: "x", Kind: event.KindWorkshop}, wantErr: event.ErrNoStart},
		{name: "end before start", ev: event.Event{Title: "x", Kind: event.KindWorkshop, StartsAt: start, EndsAt: start.Add(-time.Hour)}, wantErr: event.ErrEndBeforeStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.ev.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvent_IsMultiDay(t *testing.T) {
	single := event.Event{StartsAt: start, EndsAt: start.Add(2 * time.Hour)}
	multi := event.Event{StartsAt: start, EndsAt: start.Add(48 * time.Hour)}
	if single.IsMultiDay() {
		t.Error("same-day event reported as multi-day")
	}
	if !multi.IsMultiDay() {
		t.Error("two-day event not reported as multi-day")
	}
}

func TestEvent_IsUpcoming(t *testing.T) {
	ev := event.Event{StartsAt: start, EndsAt: start.Add(48 * time.Hour)}
	if !ev.IsUpcoming(start.Add(24 * time.Hour)) {
		t.Error("event in progress should still be upcoming")
	}
	if ev.IsUpcoming(start.Add(72 * time.Hour)) {
		t.Error("finished event should not be upcoming")
	}
}
