package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	emailAdapter "ministry/internal/adapters/email"
	outboxStore "ministry/internal/adapters/storage/outbox"
	domain "ministry/internal/domain/outbox"
)

// --- Queue Email ---

// OutboxWriter is the store interface needed to queue outbox entries.
type OutboxWriter interface {
	Save(ctx context.Context, e domain.Entry) error
}

// QueueEmailDeps holds dependencies for QueueEmail.
type QueueEmailDeps struct {
	Outbox     OutboxWriter
	GenerateID func() string
	Now        func() time.Time
}

// ExecuteQueueEmail persists an email for the background worker to deliver.
// PRE: payload has recipients and a subject
// POST: A pending outbox entry exists; nothing has been sent yet
func ExecuteQueueEmail(ctx context.Context, payload domain.EmailPayload, deps QueueEmailDeps) (domain.Entry, error) {
	entry, err := domain.NewEmailEntry(deps.GenerateID(), payload, deps.Now())
	if err != nil {
		return domain.Entry{}, err
	}
	if err := deps.Outbox.Save(ctx, entry); err != nil {
		return domain.Entry{}, fmt.Errorf("queue email: %w", err)
	}
	slog.Info("outbox_queued", "entry_id", entry.ID, "action_type", entry.ActionType, "subject", payload.Subject)
	return entry, nil
}

// escapeLines renders visitor-supplied text as HTML, keeping line breaks.
func escapeLines(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>\n")
}

// --- Processor ---

// OutboxProcessor delivers queued external actions, retrying failures with backoff.
type OutboxProcessor struct {
	store     outboxStore.Store
	executors map[string]ActionExecutor
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
	now       func() time.Time
}

// ActionExecutor executes a specific type of external action.
type ActionExecutor interface {
	// Execute runs the action with the given payload and returns the provider's id for it.
	Execute(ctx context.Context, payload string) (string, error)
}

// PermanentError marks an executor failure that no retry can fix, e.g. an undecodable payload.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// NewOutboxProcessor creates a new outbox processor.
func NewOutboxProcessor(store outboxStore.Store, executors map[string]ActionExecutor) *OutboxProcessor {
	return &OutboxProcessor{
		store:     store,
		executors: executors,
		baseDelay: 30 * time.Second,
		maxDelay:  1 * time.Hour,
		batchSize: 25,
		now:       time.Now,
	}
}

// ProcessPending attempts every due entry once.
// PRE: Context is valid
// POST: Due entries are done, rescheduled, failed or abandoned; returns the number attempted
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (int, error) {
	entries, err := p.store.ListDue(ctx, p.now(), p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due outbox entries: %w", err)
	}

	attempted := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.Due(p.now()) {
			continue
		}
		attempted++
		if err := p.processEntry(ctx, entry); err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "error", err.Error())
		}
	}
	return attempted, nil
}

func (p *OutboxProcessor) processEntry(ctx context.Context, entry domain.Entry) error {
	executor, ok := p.executors[entry.ActionType]
	if !ok {
		entry.MarkAbandoned("no executor registered for action type: "+entry.ActionType, p.now())
		return p.store.Save(ctx, entry)
	}

	entry.MarkAttempt(p.now())
	externalID, err := executor.Execute(ctx, entry.Payload)
	var permanent *PermanentError
	switch {
	case err == nil:
		entry.MarkSuccess(externalID, p.now())
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	case errors.As(err, &permanent):
		entry.MarkAbandoned(err.Error(), p.now())
		slog.Error("outbox_action_abandoned", "entry_id", entry.ID, "error", err.Error())
	default:
		entry.MarkFailed(err, p.now(), p.baseDelay, p.maxDelay)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "status", entry.Status, "error", err.Error())
	}

	return p.store.Save(ctx, entry)
}

// --- Email Executor ---

// EmailExecutor delivers ActionTypeEmail payloads through a Sender.
type EmailExecutor struct {
	Sender  emailAdapter.Sender
	ReplyTo string // used when the payload names no reply-to address
}

// Execute sends the email described by payload.
// PRE: payload is JSON matching domain.EmailPayload
// POST: Email accepted by the provider; returns its message ID
// INVARIANT: outbox entry status managed by caller
func (e *EmailExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p domain.EmailPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", &PermanentError{Err: fmt.Errorf("unmarshal email payload: %w", err)}
	}
	if err := p.Validate(); err != nil {
		return "", &PermanentError{Err: err}
	}
	replyTo := p.ReplyTo
	if replyTo == "" {
		replyTo = e.ReplyTo
	}
	receipt, err := e.Sender.Send(ctx, emailAdapter.Message{
		To:       p.To,
		Subject:  p.Subject,
		HTML:     p.HTML,
		ReplyTo:  replyTo,
		Category: p.Category,
	})
	if err != nil {
		return "", err
	}
	return receipt.MessageID, nil
}

// --- Background Worker ---

// StartBackgroundWorker processes pending entries every interval until ctx is cancelled.
// PRE: interval > 0
// POST: Returns a channel closed once the worker has stopped
func StartBackgroundWorker(ctx context.Context, processor *OutboxProcessor, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("outbox_worker_stopped")
				return
			case <-ticker.C:
				n, err := processor.ProcessPending(ctx)
				if err != nil {
					slog.Error("outbox_worker_error", "error", err)
				} else if n > 0 {
					slog.Info("outbox_worker_pass", "attempted", n)
				}
			}
		}
	}()
	return done
}
