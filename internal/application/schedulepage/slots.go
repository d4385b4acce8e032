package schedulepage

import (
	"context"
	"log/slog"
	"sync"

	"ministry/internal/adapters/schedapi"
	"ministry/internal/domain/schedule"
)

// SlotFetcher retrieves the time slots offered for a date.
type SlotFetcher interface {
	Availability(ctx context.Context, date schedule.Date) ([]schedule.Slot, error)
}

// SlotView is what the time slot section renders.
type SlotView struct {
	Date     schedule.Date
	Slots    []schedule.Slot
	Selected string // currently selected time, "" for none

	// Err is set when retrieval failed. The section stays usable: the visitor
	// may retry or pick another date.
	Err       error
	Message   string
	Retryable bool

	// Stale means a newer selection superseded this fetch before it finished.
	// A stale view carries no slots and must not be shown.
	Stale bool
}

// Selectable reports whether any slot can be chosen.
func (v SlotView) Selectable() bool {
	if v.Date.IsZero() || v.Err != nil || v.Stale {
		return false
	}
	for _, s := range v.Slots {
		if s.Available {
			return true
		}
	}
	return false
}

// slotKey identifies one wanted slot list.
type slotKey struct {
	date    schedule.Date
	refresh uint64
}

// fetch is one in-flight retrieval. view is written before done is closed.
type fetch struct {
	key    slotKey
	cancel context.CancelFunc
	done   chan struct{}
	view   SlotView
}

// SlotSection fetches slots for one visitor's selected date.
//
// At most one fetch is in flight. Wanting a different key cancels it, and a
// result is only kept when its fetch is still the current one, so a slow
// answer for an earlier date can never fill the view of a later one. Callers
// wanting the key already in flight wait for that fetch instead of starting another.
type SlotSection struct {
	fetcher SlotFetcher

	mu        sync.Mutex
	inflight  *fetch
	cached    *SlotView
	cachedKey slotKey
}

// NewSlotSection creates a SlotSection.
func NewSlotSection(fetcher SlotFetcher) *SlotSection {
	return &SlotSection{fetcher: fetcher}
}

// View returns the slot list for state.
// An unchanged (date, refresh) pair is answered from the last successful fetch;
// a changed refresh value always fetches again. Failures are never cached.
// PRE: none
// POST: No date yields an empty view; a fetch superseded meanwhile yields Stale
func (s *SlotSection) View(ctx context.Context, state schedule.State) SlotView {
	key := slotKey{date: state.Date, refresh: state.Refresh}

	s.mu.Lock()
	if !state.HasDate() {
		s.supersedeLocked()
		s.cached = nil
		s.mu.Unlock()
		return SlotView{}
	}
	if s.cached != nil && s.cachedKey == key {
		s.supersedeLocked()
		view := *s.cached
		s.mu.Unlock()
		view.Selected = state.Time
		return view
	}
	if f := s.inflight; f != nil && f.key == key {
		s.mu.Unlock()
		return s.await(ctx, f, state)
	}
	s.supersedeLocked()
	// The fetch outlives a disconnecting requester: others may be waiting on it.
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &fetch{key: key, cancel: cancel, done: make(chan struct{})}
	s.inflight = f
	s.mu.Unlock()

	slots, err := s.fetcher.Availability(fetchCtx, state.Date)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(f.done)
	if s.inflight != f {
		slog.Debug("slot_fetch_discarded", "date", state.Date.String(), "refresh", state.Refresh)
		f.view = SlotView{Date: state.Date, Stale: true}
		return f.view
	}
	s.inflight = nil

	view := SlotView{Date: state.Date}
	if err != nil {
		slog.Warn("slot_fetch_failed", "date", state.Date.String(), "error", err)
		view.Err = err
		view.Message = schedapi.UserMessage(err)
		view.Retryable = true
		s.cached = nil
	} else {
		view.Slots = slots
		cached := view
		s.cached = &cached
		s.cachedKey = key
	}
	f.view = view
	view.Selected = state.Time
	return view
}

// await waits for another caller's fetch of the same key.
func (s *SlotSection) await(ctx context.Context, f *fetch, state schedule.State) SlotView {
	select {
	case <-f.done:
		view := f.view
		view.Selected = state.Time
		return view
	case <-ctx.Done():
		return SlotView{Date: state.Date, Stale: true}
	}
}

// Retry drops any cached list for state and fetches again.
func (s *SlotSection) Retry(ctx context.Context, state schedule.State) SlotView {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
	return s.View(ctx, state)
}

// supersedeLocked cancels the in-flight fetch, if any. Its result will be discarded.
// PRE: s.mu held
func (s *SlotSection) supersedeLocked() {
	if s.inflight != nil {
		s.inflight.cancel()
		s.inflight = nil
	}
}
