package contact

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Length limits.
const (
	MaxNameLength    = 120
	MaxSubjectLength = 200
	MaxBodyLength    = 5000
)

// Domain errors
var (
	ErrEmptyName      = errors.New("name cannot be empty")
	ErrNameTooLong    = errors.New("name cannot exceed 120 characters")
	ErrInvalidEmail   = errors.New("a valid email address is required")
	ErrSubjectTooLong = errors.New("subject cannot exceed 200 characters")
	ErrEmptyBody      = errors.New("message cannot be empty")
	ErrBodyTooLong    = errors.New("message cannot exceed 5000 characters")
)

// Message is an enquiry submitted through the contact form.
type Message struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// Normalize trims surrounding whitespace from every field.
func (m *Message) Normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Body = strings.TrimSpace(m.Body)
}

// Validate checks if the Message has valid data.
// PRE: Normalize has been called
// POST: Returns nil if valid, the first violated rule otherwise
func (m *Message) Validate() error {
	if m.Name == "" {
		return ErrEmptyName
	}
	if len(m.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if _, err := mail.ParseAddress(m.Email); err != nil {
		return ErrInvalidEmail
	}
	if len(m.Subject) > MaxSubjectLength {
		return ErrSubjectTooLong
	}
	if m.Body == "" {
		return ErrEmptyBody
	}
	if len(m.Body) > MaxBodyLength {
		return ErrBodyTooLong
	}
	return nil
}

// SubjectLine returns the subject, or a default built from the sender's name.
func (m *Message) SubjectLine() string {
	if m.Subject != "" {
		return m.Subject
	}
	return "Website enquiry from " + m.Name
}
