package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gateway "github.com/nimasrn/ar-collections/internal/gateways"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/queue"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/prom"
)

var ErrLockHeld = errors.New("email lock held by another consumer")

type EmailSender interface {
	SendEmail(ctx context.Context, job model.EmailJob) (*gateway.SendEmailResponse, error)
}

type EmailStatusRepository interface {
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, retry bool) error
}

// EmailProcessor delivers queued scheduled emails through the edge function.
// Retries go through the scheduled_emails row: a failed send puts it back to
// pending and the next dispatch republishes it, until the retry budget is spent.
type EmailProcessor struct {
	sender      EmailSender
	emails      EmailStatusRepository
	idempotency *IdempotencyService
	maxRetries  int
	now         func() time.Time
}

func NewEmailProcessor(sender EmailSender, emails EmailStatusRepository, idempotency *IdempotencyService) *EmailProcessor {
	return &EmailProcessor{
		sender:      sender,
		emails:      emails,
		idempotency: idempotency,
		maxRetries:  idempotency.config.MaxRetries,
		now:         time.Now,
	}
}

func (p *EmailProcessor) GetType() string {
	return "email"
}

// Process returns an error only when the message should stay pending in the
// stream. Every other outcome is recorded on the email row and acked.
func (p *EmailProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var job model.EmailJob
	if err := msg.Decode(&job); err != nil {
		logger.Error("Failed to unmarshal email job", "message_id", msg.ID, "error", err)
		prom.IncEmail("unknown", "invalid")
		// undecodable payloads are retried until the queue dead-letters them
		return fmt.Errorf("decode email job: %w", err)
	}
	emailID := job.EmailID.String()

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, emailID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyProcessed):
			return nil
		case errors.Is(err, ErrMaxRetriesExceeded):
			p.markFailed(ctx, job, "maximum retries exceeded", false)
			return nil
		case errors.Is(err, ErrLockAcquireFailed):
			return ErrLockHeld
		default:
			return err
		}
	}
	defer func() {
		_ = p.idempotency.ReleaseLock(ctx, procCtx)
	}()

	logger.Debug("Sending email", "email_id", emailID, "kind", job.Kind, "retry_count", procCtx.RetryCount)

	if _, err := p.sender.SendEmail(ctx, job); err != nil {
		retries := p.idempotency.MarkFailure(ctx, procCtx, err)
		p.markFailed(ctx, job, err.Error(), retries < p.maxRetries)
		return nil
	}

	if err := p.emails.MarkSent(ctx, job.EmailID, p.now()); err != nil {
		// the send happened; the processed marker keeps it from going out twice
		logger.Error("Failed to mark email sent", "email_id", emailID, "error", err)
	}
	if err := p.idempotency.MarkSuccess(ctx, procCtx); err != nil {
		logger.Error("Failed to mark success", "email_id", emailID, "error", err)
	}
	prom.IncEmail(job.Kind, "sent")
	logger.Info("Email sent", "email_id", emailID, "kind", job.Kind)
	return nil
}

func (p *EmailProcessor) markFailed(ctx context.Context, job model.EmailJob, reason string, retry bool) {
	if err := p.emails.MarkFailed(ctx, job.EmailID, reason, retry); err != nil {
		logger.Error("Failed to mark email failed", "email_id", job.EmailID, "error", err)
	}
	result := "failed"
	if retry {
		result = "retry"
	}
	prom.IncEmail(job.Kind, result)
}
