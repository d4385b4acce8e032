package email

import (
	"context"
	"time"
)

// Message is one outgoing email.
type Message struct {
	To      []string
	From    string // empty means the sender's default, e.g. "Worship Academy <hello@worshipacademy.org>"
	Subject string
	HTML    string
	ReplyTo string

	// Category is attached as a provider tag when set. Letters, digits, '_' and '-' only.
	Category string
}

// Receipt is what the provider reports after accepting a message.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers email through an external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
