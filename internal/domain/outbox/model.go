package outbox

import (
	"encoding/json"
	"errors"
	"time"
)

// Status constants for outbox entry lifecycle.
const (
	StatusPending   = "pending"
	StatusRetrying  = "retrying"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// ActionTypeEmail delivers an EmailPayload through the configured email sender.
const ActionTypeEmail = "email"

// DefaultMaxAttempts applies when an entry is queued without an explicit limit.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyPayload    = errors.New("payload is required")
	ErrNoRecipients    = errors.New("email payload needs at least one recipient")
	ErrEmptySubject    = errors.New("email payload needs a subject")
)

// Entry is one deferred side effect, persisted before it is attempted.
type Entry struct {
	ID              string
	ActionType      string
	Payload         string // JSON, replayed verbatim on every attempt
	Status          string
	Attempts        int
	MaxAttempts     int
	LastError       string
	LastAttemptedAt time.Time
	NextRetryAt     time.Time
	ExternalID      string // provider id of the delivered message
	CreatedAt       time.Time
	CompletedAt     time.Time
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid; MaxAttempts defaulted when unset
func (e *Entry) Validate() error {
	if e.ActionType == "" {
		return ErrEmptyActionType
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// Due reports whether the worker should attempt the entry at now.
// POST: false for terminal entries and for retries scheduled after now
func (e *Entry) Due(now time.Time) bool {
	if e.IsTerminal() || e.Attempts >= e.MaxAttempts {
		return false
	}
	return e.NextRetryAt.IsZero() || !now.Before(e.NextRetryAt)
}

// IsTerminal returns true if the entry will never be attempted again.
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusDone || e.Status == StatusFailed || e.Status == StatusAbandoned
}

// MarkAttempt records the start of an attempt.
// POST: Attempts incremented, LastAttemptedAt = now, status retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess marks the entry as delivered.
// POST: Status done, error cleared, CompletedAt = now
func (e *Entry) MarkSuccess(externalID string, now time.Time) {
	e.Status = StatusDone
	e.ExternalID = externalID
	e.LastError = ""
	e.NextRetryAt = time.Time{}
	e.CompletedAt = now
}

// MarkFailed records a failed attempt and schedules the next one.
// POST: LastError set; status failed once attempts are exhausted, else NextRetryAt pushed out
func (e *Entry) MarkFailed(err error, now time.Time, baseDelay, maxDelay time.Duration) {
	e.LastError = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
		e.NextRetryAt = time.Time{}
		e.CompletedAt = now
		return
	}
	e.NextRetryAt = now.Add(e.NextRetryDelay(baseDelay, maxDelay))
}

// MarkAbandoned stops an entry whose payload can never succeed.
func (e *Entry) MarkAbandoned(reason string, now time.Time) {
	e.Status = StatusAbandoned
	e.LastError = reason
	e.CompletedAt = now
}

// NextRetryDelay calculates the delay before the next retry attempt.
// Uses exponential backoff: 2^attempts * baseDelay, capped at maxDelay.
// PRE: Attempts is set
// POST: Returns duration for next retry
func (e *Entry) NextRetryDelay(baseDelay time.Duration, maxDelay time.Duration) time.Duration {
	if e.Attempts >= 30 {
		return maxDelay
	}
	delay := baseDelay * (1 << e.Attempts)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}

// EmailPayload is the JSON body of an ActionTypeEmail entry.
type EmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`

	// Category groups messages in the provider's dashboard, e.g. "contact" or "booking".
	Category string `json:"category,omitempty"`
}

// Email categories.
const (
	CategoryContact = "contact"
	CategoryBooking = "booking"
)

// Validate checks the payload can be handed to a sender.
func (p EmailPayload) Validate() error {
	if len(p.To) == 0 {
		return ErrNoRecipients
	}
	if p.Subject == "" {
		return ErrEmptySubject
	}
	return nil
}

// NewEmailEntry builds a pending email entry.
// PRE: payload is valid
// POST: Returns a validated pending Entry
func NewEmailEntry(id string, payload EmailPayload, now time.Time) (Entry, error) {
	if err := payload.Validate(); err != nil {
		return Entry{}, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:          id,
		ActionType:  ActionTypeEmail,
		Payload:     string(raw),
		Status:      StatusPending,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
	}
	return e, e.Validate()
}
