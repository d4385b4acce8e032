package schedapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"ministry/internal/domain/schedule"
)

const (
	availabilityPath = "/schedule/availability"
	bookPath         = "/schedule/book"
)

type slotDTO struct {
	Time      string `json:"time"`
	Label     string `json:"label"`
	Available *bool  `json:"available"`
}

type availabilityResponse struct {
	envelope
	Date  string     `json:"date"`
	Slots *[]slotDTO `json:"slots"`
}

// Availability lists the time slots the service offers for date.
// PRE: date is non-zero
// POST: Returns the slots in service order, or an *Error
func (c *Client) Availability(ctx context.Context, date schedule.Date) ([]schedule.Slot, error) {
	op := http.MethodGet + " " + availabilityPath
	r, err := c.getWithRetry(ctx, availabilityPath+"?date="+url.QueryEscape(date.String()), "")
	if err != nil {
		return nil, err
	}
	if r.status < 200 || r.status > 299 {
		return nil, classify(op, r)
	}

	var body availabilityResponse
	if err := json.Unmarshal(r.body, &body); err != nil {
		return nil, &Error{Kind: KindMalformed, Op: op, Status: r.status, Err: err}
	}
	if !body.Success {
		return nil, &Error{Kind: KindBusiness, Op: op, Status: r.status, Message: body.text()}
	}
	if body.Slots == nil {
		return nil, &Error{Kind: KindMalformed, Op: op, Status: r.status, Message: "response has no slots field"}
	}
	if body.Date != "" && body.Date != date.String() {
		return nil, &Error{Kind: KindMalformed, Op: op, Status: r.status, Message: "response is for " + body.Date}
	}

	slots := make([]schedule.Slot, 0, len(*body.Slots))
	for _, s := range *body.Slots {
		if s.Time == "" {
			return nil, &Error{Kind: KindMalformed, Op: op, Status: r.status, Message: "slot without time"}
		}
		available := true
		if s.Available != nil {
			available = *s.Available
		}
		slots = append(slots, schedule.Slot{Time: s.Time, Label: s.Label, Available: available})
	}
	return slots, nil
}

type bookRequest struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
}

type bookResponse struct {
	envelope
	Booking *struct {
		ID   string `json:"id"`
		Date string `json:"date"`
		Time string `json:"time"`
	} `json:"booking"`
}

// Book submits a booking. It is never retried: a lost response must not double-book.
// PRE: req has been validated
// POST: Returns the receipt; HTTP 409 yields an *Error wrapping ErrSlotUnavailable
func (c *Client) Book(ctx context.Context, req schedule.BookingRequest) (schedule.Booking, error) {
	op := http.MethodPost + " " + bookPath
	r, err := c.do(ctx, http.MethodPost, bookPath, "", bookRequest{
		Date:  req.Date.String(),
		Time:  req.Time,
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Notes: req.Notes,
	})
	if err != nil {
		return schedule.Booking{}, asAPIError(op, err)
	}
	if r.status < 200 || r.status > 299 {
		return schedule.Booking{}, classify(op, r)
	}

	var body bookResponse
	if err := json.Unmarshal(r.body, &body); err != nil {
		return schedule.Booking{}, &Error{Kind: KindMalformed, Op: op, Status: r.status, Err: err}
	}
	if !body.Success {
		return schedule.Booking{}, &Error{Kind: KindBusiness, Op: op, Status: r.status, Message: body.text()}
	}

	booking := schedule.Booking{Date: req.Date, Time: req.Time, Message: body.Message}
	if body.Booking != nil {
		booking.ID = body.Booking.ID
		if d, err := schedule.ParseDate(body.Booking.Date); err == nil {
			booking.Date = d
		}
		if body.Booking.Time != "" {
			booking.Time = body.Booking.Time
		}
	}
	return booking, nil
}
