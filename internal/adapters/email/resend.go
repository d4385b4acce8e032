package email

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/resend/resend-go/v2"
)

// tagValue matches what Resend accepts as a tag value.
var tagValue = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// ResendSender sends email via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a ResendSender.
// PRE: apiKey is a valid Resend API key; from is a verified sender address
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// request maps msg onto a Resend send request.
// Categories Resend would reject are dropped rather than failing the send.
func (s *ResendSender) request(msg Message) *resend.SendEmailRequest {
	from := msg.From
	if from == "" {
		from = s.from
	}
	req := &resend.SendEmailRequest{
		From:    from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		ReplyTo: msg.ReplyTo,
	}
	if msg.Category != "" && tagValue.MatchString(msg.Category) {
		req.Tags = []resend.Tag{{Name: "category", Value: msg.Category}}
	}
	return req
}

// Send hands one message to Resend.
// PRE: msg has at least one recipient and a subject
// POST: Message is accepted for delivery; returns the Resend message ID
func (s *ResendSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	sent, err := s.client.Emails.SendWithContext(ctx, s.request(msg))
	if err != nil {
		slog.Error("resend_send_failed", "error", err, "recipients", len(msg.To), "category", msg.Category)
		return Receipt{}, fmt.Errorf("resend send failed: %w", err)
	}

	slog.Info("resend_sent", "message_id", sent.Id, "recipients", len(msg.To), "category", msg.Category)
	return Receipt{MessageID: sent.Id, SentAt: time.Now()}, nil
}
