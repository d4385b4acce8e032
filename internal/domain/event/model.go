package event

import (
	"errors"
	"time"
)

// Kind constants.
const (
	KindWorship    = "worship"    // worship night or service
	KindWorkshop   = "workshop"   // teaching session or masterclass
	KindConference = "conference" // multi-day gathering, usually with registration
	KindOutreach   = "outreach"
)

// ValidKinds contains all valid event kinds.
var ValidKinds = []string{KindWorship, KindWorkshop, KindConference, KindOutreach}

// Max length constants.
const (
	MaxTitleLength           = 200
	MaxDescriptionLength     = 4000
	MaxLocationLength        = 200
	MaxRegistrationURLLength = 2048
)

// Domain errors
var (
	ErrEmptyTitle     = errors.New("event title cannot be empty")
	ErrTitleTooLong   = errors.New("event title cannot exceed 200 characters")
	ErrInvalidKind    = errors.New("event kind must be one of: worship, workshop, conference, outreach")
	ErrNoStart        = errors.New("event start time is required")
	ErrEndBeforeStart = errors.New("event end cannot be before start")
)

// Event is a public ministry event listed on the events page.
// INVARIANT: EndsAt >= StartsAt when EndsAt is set.
type Event struct {
	ID              string
	Title           string
	Kind            string
	Description     string // Markdown
	Location        string
	StartsAt        time.Time
	EndsAt          time.Time // zero value means open-ended / single session
	RegistrationURL string
	CreatedAt       time.Time
}

// Validate checks the event's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (e *Event) Validate() error {
	if e.Title == "" {
		return ErrEmptyTitle
	}
	if len(e.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if !isValidKind(e.Kind) {
		return ErrInvalidKind
	}
	if e.StartsAt.IsZero() {
		return ErrNoStart
	}
	if !e.EndsAt.IsZero() && e.EndsAt.Before(e.StartsAt) {
		return ErrEndBeforeStart
	}
	if len(e.Description) > MaxDescriptionLength {
		return errors.New("event description cannot exceed 4000 characters")
	}
	if len(e.Location) > MaxLocationLength {
		return errors.New("event location cannot exceed 200 characters")
	}
	if len(e.RegistrationURL) > MaxRegistrationURLLength {
		return errors.New("registration URL cannot exceed 2048 characters")
	}
	return nil
}

// IsMultiDay returns true if the event spans more than one day.
// PRE: none
// POST: returns true if EndsAt is set and on a different calendar day than StartsAt
func (e *Event) IsMultiDay() bool {
	if e.EndsAt.IsZero() {
		return false
	}
	return e.EndsAt.After(e.StartsAt) &&
		e.EndsAt.Format("2006-01-02") != e.StartsAt.Format("2006-01-02")
}

// IsUpcoming reports whether the event has not yet finished at now.
func (e *Event) IsUpcoming(now time.Time) bool {
	end := e.EndsAt
	if end.IsZero() {
		end = e.StartsAt
	}
	return !end.Before(now)
}

func isValidKind(k string) bool {
	for _, v := range ValidKinds {
		if v == k {
			return true
		}
	}
	return false
}
