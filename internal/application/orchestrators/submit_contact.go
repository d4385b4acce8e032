package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domainContact "ministry/internal/domain/contact"
	domainOutbox "ministry/internal/domain/outbox"
)

// ContactStoreForSubmit defines the store interface needed by SubmitContact.
type ContactStoreForSubmit interface {
	Save(ctx context.Context, m domainContact.Message) error
}

// SubmitContactInput carries the contact form fields.
type SubmitContactInput struct {
	Name    string
	Email   string
	Subject string
	Body    string
}

// SubmitContactDeps holds dependencies for SubmitContact.
type SubmitContactDeps struct {
	ContactStore ContactStoreForSubmit
	Outbox       OutboxWriter
	Inbox        string // ministry address notified of new messages; empty skips the email
	GenerateID   func() string
	Now          func() time.Time
}

// ExecuteSubmitContact validates and stores an enquiry, then queues a notification
// to the ministry inbox with the visitor as reply-to.
// PRE: none
// POST: Message persisted; notification queued when Inbox is set
func ExecuteSubmitContact(ctx context.Context, input SubmitContactInput, deps SubmitContactDeps) (domainContact.Message, error) {
	msg := domainContact.Message{
		ID:        deps.GenerateID(),
		Name:      input.Name,
		Email:     input.Email,
		Subject:   input.Subject,
		Body:      input.Body,
		CreatedAt: deps.Now(),
	}
	msg.Normalize()
	if err := msg.Validate(); err != nil {
		return domainContact.Message{}, err
	}

	if err := deps.ContactStore.Save(ctx, msg); err != nil {
		return domainContact.Message{}, fmt.Errorf("save contact message: %w", err)
	}
	slog.Info("contact_submitted", "message_id", msg.ID)

	if deps.Inbox == "" {
		return msg, nil
	}
	payload := domainOutbox.EmailPayload{
		To:       []string{deps.Inbox},
		Subject:  msg.SubjectLine(),
		HTML: fmt.Sprintf("<p><strong>%s</strong> &lt;%s&gt; wrote:</p><p>%s</p>",
			escapeLines(msg.Name), escapeLines(msg.Email), escapeLines(msg.Body)),
		ReplyTo:  msg.Email,
		Category: domainOutbox.CategoryContact,
	}
	queueDeps := QueueEmailDeps{Outbox: deps.Outbox, GenerateID: deps.GenerateID, Now: deps.Now}
	if _, err := ExecuteQueueEmail(ctx, payload, queueDeps); err != nil {
		// The message is stored; staff still see it even if the notification is lost.
		slog.Error("contact_notification_queue_failed", "message_id", msg.ID, "error", err)
	}
	return msg, nil
}
