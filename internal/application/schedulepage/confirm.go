package schedulepage

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"ministry/internal/application/orchestrators"
	"ministry/internal/domain/outbox"
	"ministry/internal/domain/schedule"
)

// Errors reported by Confirm besides validation and API errors.
var (
	ErrCannotConfirm = errors.New("choose a date and a time before confirming")
	ErrConfirmBusy   = errors.New("a booking for this visit is already being submitted")
)

// Booker submits a booking to the scheduling API.
type Booker interface {
	Book(ctx context.Context, req schedule.BookingRequest) (schedule.Booking, error)
}

// Contact holds the visitor details entered on the confirmation form.
type Contact struct {
	Name  string
	Email string
	Phone string
	Notes string
}

// ConfirmSection submits bookings for the selected date and time.
// It holds no per-visitor state and is shared by every visitor.
type ConfirmSection struct {
	booker     Booker
	outbox     orchestrators.OutboxWriter
	generateID func() string
	now        func() time.Time
}

// NewConfirmSection creates a ConfirmSection. A nil outbox disables confirmation emails.
func NewConfirmSection(booker Booker, outbox orchestrators.OutboxWriter, generateID func() string, now func() time.Time) *ConfirmSection {
	return &ConfirmSection{booker: booker, outbox: outbox, generateID: generateID, now: now}
}

// Confirm books state's date and time for contact.
// PRE: none
// POST: On success onBooked has been called exactly once and a confirmation email queued.
// POST: On any failure onBooked has not been called.
func (c *ConfirmSection) Confirm(ctx context.Context, state schedule.State, contact Contact, onBooked func()) (schedule.Booking, error) {
	if !state.CanConfirm() {
		return schedule.Booking{}, ErrCannotConfirm
	}
	req := schedule.BookingRequest{
		Date:  state.Date,
		Time:  state.Time,
		Name:  strings.TrimSpace(contact.Name),
		Email: strings.TrimSpace(contact.Email),
		Phone: strings.TrimSpace(contact.Phone),
		Notes: strings.TrimSpace(contact.Notes),
	}
	if err := req.Validate(); err != nil {
		return schedule.Booking{}, err
	}

	booking, err := c.booker.Book(ctx, req)
	if err != nil {
		slog.Warn("booking_failed", "date", req.Date.String(), "time", req.Time, "error", err)
		return schedule.Booking{}, err
	}
	onBooked()
	slog.Info("booking_confirmed", "booking_id", booking.ID, "date", booking.Date.String(), "time", booking.Time)

	c.queueConfirmation(ctx, req, booking)
	return booking, nil
}

func (c *ConfirmSection) queueConfirmation(ctx context.Context, req schedule.BookingRequest, booking schedule.Booking) {
	if c.outbox == nil {
		return
	}
	when := fmt.Sprintf("%s at %s", booking.Date.In(time.UTC).Format("Monday 2 January 2006"), booking.Time)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Your visit is booked for <strong>%s</strong>.</p>",
		html.EscapeString(req.Name), html.EscapeString(when))
	if booking.Message != "" {
		body += "<p>" + html.EscapeString(booking.Message) + "</p>"
	}
	if booking.ID != "" {
		body += "<p>Reference: " + html.EscapeString(booking.ID) + "</p>"
	}

	_, err := orchestrators.ExecuteQueueEmail(ctx, outbox.EmailPayload{
		To:       []string{req.Email},
		Subject:  "Your visit is booked for " + when,
		HTML:     body,
		Category: outbox.CategoryBooking,
	}, orchestrators.QueueEmailDeps{Outbox: c.outbox, GenerateID: c.generateID, Now: c.now})
	if err != nil {
		// The booking stands; only the courtesy email is lost.
		slog.Error("booking_confirmation_queue_failed", "booking_id", booking.ID, "error", err)
	}
}
