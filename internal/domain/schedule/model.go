package schedule

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// DateLayout is the wire and form format for a calendar date.
const DateLayout = "2006-01-02"

// Length limits for booking contact details.
const (
	MaxNameLength  = 120
	MaxPhoneLength = 40
	MaxNotesLength = 1000
)

// Domain errors
var (
	ErrInvalidDate  = errors.New("date must be in YYYY-MM-DD format")
	ErrNoDate       = errors.New("a date must be selected before booking")
	ErrNoTime       = errors.New("a time must be selected before booking")
	ErrEmptyName    = errors.New("name cannot be empty")
	ErrNameTooLong  = errors.New("name cannot exceed 120 characters")
	ErrInvalidEmail = errors.New("a valid email address is required")
	ErrPhoneTooLong = errors.New("phone cannot exceed 40 characters")
	ErrNotesTooLong = errors.New("notes cannot exceed 1000 characters")
)

// Date is a civil calendar date with no time-of-day or zone.
// The zero value means "no date selected".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
// PRE: none
// POST: Returns a non-zero Date or ErrInvalidDate
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether no date is set.
func (d Date) IsZero() bool {
	return d == Date{}
}

// String formats the date as YYYY-MM-DD, or "" when absent.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Before reports whether d falls on an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.In(time.UTC).Before(other.In(time.UTC))
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// State is the schedule page's selection snapshot.
// Views receive State by value; it only changes through SelectDate, SelectTime and Booked.
// INVARIANT: a Time is only meaningful together with a non-zero Date
type State struct {
	Date    Date
	Time    string
	Refresh uint64 // opaque: a changed value means "re-fetch slots"
}

// SelectDate returns the state with the given date selected and the time cleared.
// POST: Date == d, Time == "", Refresh unchanged
func (s State) SelectDate(d Date) State {
	s.Date = d
	s.Time = ""
	return s
}

// SelectTime returns the state with the given time label selected.
// Membership in the date's available slots is not checked here.
// POST: Time == t, Date and Refresh unchanged
func (s State) SelectTime(t string) State {
	s.Time = t
	return s
}

// Booked returns the state after a successful booking.
// POST: Refresh incremented by exactly one, selection unchanged
func (s State) Booked() State {
	s.Refresh++
	return s
}

// HasDate reports whether a date is selected.
func (s State) HasDate() bool {
	return !s.Date.IsZero()
}

// HasTime reports whether a time is selected alongside a date.
func (s State) HasTime() bool {
	return s.HasDate() && s.Time != ""
}

// CanConfirm reports whether the confirm action is enabled.
func (s State) CanConfirm() bool {
	return s.HasTime()
}

// Slot is one bookable time unit for a date, as enumerated by the scheduling API.
type Slot struct {
	Time      string // value submitted back when booking, e.g. "09:30"
	Label     string // display label, e.g. "9:30 AM"
	Available bool
}

// DisplayLabel returns Label, falling back to Time.
func (s Slot) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Time
}

// BookingRequest carries everything submitted to the scheduling API on confirm.
type BookingRequest struct {
	Date  Date
	Time  string
	Name  string
	Email string
	Phone string
	Notes string
}

// Validate checks the request before it is sent.
// PRE: BookingRequest struct is populated
// POST: Returns nil if valid, the first violated rule otherwise
func (b *BookingRequest) Validate() error {
	if b.Date.IsZero() {
		return ErrNoDate
	}
	if strings.TrimSpace(b.Time) == "" {
		return ErrNoTime
	}
	name := strings.TrimSpace(b.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(b.Email)); err != nil {
		return ErrInvalidEmail
	}
	if len(b.Phone) > MaxPhoneLength {
		return ErrPhoneTooLong
	}
	if len(b.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

// Booking is the receipt returned by the scheduling API after a successful booking.
type Booking struct {
	ID      string
	Date    Date
	Time    string
	Message string
}
