package schedulepage

import (
	"context"
	"sync"

	"ministry/internal/domain/schedule"
)

// maxStaleRetries bounds how often SlotView re-reads a selection that changed under it.
const maxStaleRetries = 3

// Composer owns one visitor's schedule page state and hands snapshots to its sections.
// State changes only through OnDateSelect, OnTimeSelect and OnBooked.
type Composer struct {
	mu    sync.Mutex
	state schedule.State

	slots   *SlotSection
	confirm *ConfirmSection

	confirming sync.Mutex
}

// NewComposer creates a Composer with its own slot section and the shared confirm section.
func NewComposer(fetcher SlotFetcher, confirm *ConfirmSection) *Composer {
	return &Composer{
		slots:   NewSlotSection(fetcher),
		confirm: confirm,
	}
}

// Snapshot returns the current state.
func (c *Composer) Snapshot() schedule.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnDateSelect selects d and clears the selected time.
// POST: Snapshot().Date == d and Snapshot().Time == ""
func (c *Composer) OnDateSelect(d schedule.Date) schedule.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.state.SelectDate(d)
	return c.state
}

// OnTimeSelect selects t for the current date.
func (c *Composer) OnTimeSelect(t string) schedule.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.state.SelectTime(t)
	return c.state
}

// OnBooked signals a successful booking so the slot list is fetched again.
// POST: Snapshot().Refresh incremented by one
func (c *Composer) OnBooked() schedule.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.state.Booked()
	return c.state
}

// SlotView returns the slot list for the current selection. When the selection
// changes while fetching, the newer selection is fetched instead.
func (c *Composer) SlotView(ctx context.Context) SlotView {
	var view SlotView
	for i := 0; i < maxStaleRetries; i++ {
		view = c.slots.View(ctx, c.Snapshot())
		if !view.Stale || ctx.Err() != nil {
			break
		}
	}
	return view
}

// RetrySlots fetches the slot list for the current selection again.
func (c *Composer) RetrySlots(ctx context.Context) SlotView {
	view := c.slots.Retry(ctx, c.Snapshot())
	if view.Stale {
		return c.SlotView(ctx)
	}
	return view
}

// Confirm books the current selection. Concurrent confirms for one visitor are refused.
// POST: On success Refresh has grown by exactly one; on failure state is untouched
func (c *Composer) Confirm(ctx context.Context, contact Contact) (schedule.Booking, error) {
	if !c.confirming.TryLock() {
		return schedule.Booking{}, ErrConfirmBusy
	}
	defer c.confirming.Unlock()
	return c.confirm.Confirm(ctx, c.Snapshot(), contact, func() { c.OnBooked() })
}
