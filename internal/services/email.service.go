package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/prom"
)

type ScheduledEmailRepository interface {
	Enqueue(ctx context.Context, m *model.ScheduledEmail) (*model.ScheduledEmail, bool, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledEmail, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, retry bool) error
	List(ctx context.Context, f model.EmailFilter) (model.Page[model.ScheduledEmail], error)
}

type DueReminderRepository interface {
	Due(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error
}

// JobPublisher is satisfied by *queue.Queue.
type JobPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type ScheduleEmailInput struct {
	Kind        string
	Recipient   string
	Subject     string
	Body        string
	ReferenceID string
	// zero means now
	SendAt time.Time
}

type EmailConfig struct {
	DispatchBatch int
	MaxAttempts   int
}

// EmailService owns the scheduled_emails table: scheduling with dedup,
// handing due rows to the email queue and turning reminders into emails.
type EmailService struct {
	emails    ScheduledEmailRepository
	reminders DueReminderRepository
	profiles  ProfileLookup
	publisher JobPublisher
	config    EmailConfig
	now       func() time.Time
}

func NewEmailService(emails ScheduledEmailRepository, reminders DueReminderRepository, profiles ProfileLookup, publisher JobPublisher, config EmailConfig) *EmailService {
	if config.DispatchBatch <= 0 {
		config.DispatchBatch = 100
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	return &EmailService{
		emails:    emails,
		reminders: reminders,
		profiles:  profiles,
		publisher: publisher,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Schedule stores an email unless the same logical send already exists. The
// stored row is returned in both cases; created is false for a duplicate.
func (s *EmailService) Schedule(ctx context.Context, in ScheduleEmailInput) (*model.ScheduledEmail, bool, error) {
	in.Recipient = strings.TrimSpace(in.Recipient)
	if _, err := mail.ParseAddress(in.Recipient); err != nil {
		return nil, false, fmt.Errorf("%w: invalid recipient %q", ErrInvalidRequest, in.Recipient)
	}
	if strings.TrimSpace(in.Subject) == "" {
		return nil, false, fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}
	if in.Kind == "" {
		in.Kind = model.EmailKindCustom
	}
	if in.SendAt.IsZero() {
		in.SendAt = s.now()
	}
	ref := in.ReferenceID
	if ref == "" {
		ref = strings.ToLower(strings.TrimSpace(in.Subject))
	}

	return s.enqueue(ctx, &model.ScheduledEmail{
		DedupKey:    model.EmailDedupKey(in.Kind, in.Recipient, ref, in.SendAt),
		Kind:        in.Kind,
		Recipient:   in.Recipient,
		Subject:     in.Subject,
		Body:        in.Body,
		ReferenceID: in.ReferenceID,
		SendAt:      in.SendAt.UTC(),
		Status:      model.EmailPending,
	})
}

func (s *EmailService) enqueue(ctx context.Context, m *model.ScheduledEmail) (*model.ScheduledEmail, bool, error) {
	row, created, err := s.emails.Enqueue(ctx, m)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue email: %w", err)
	}
	result := "scheduled"
	if !created {
		result = "duplicate"
		logger.Debug("email already scheduled", "dedup_key", m.DedupKey, "email_id", row.ID)
	}
	prom.IncEmail(m.Kind, result)
	return row, created, nil
}

// DispatchDue claims due emails and publishes them to the queue. It returns
// how many were published.
func (s *EmailService) DispatchDue(ctx context.Context) (int, error) {
	rows, err := s.emails.ClaimDue(ctx, s.now(), s.config.DispatchBatch)
	if err != nil {
		return 0, fmt.Errorf("claim due emails: %w", err)
	}

	published := 0
	for _, row := range rows {
		job := model.EmailJob{
			EmailID:   row.ID,
			Recipient: row.Recipient,
			Subject:   row.Subject,
			Body:      row.Body,
			Kind:      row.Kind,
		}
		if _, err := s.publisher.PublishJSON(ctx, job, map[string]string{"kind": row.Kind}); err != nil {
			retry := row.Attempts < s.config.MaxAttempts
			logger.Error("failed to publish email job", "email_id", row.ID, "attempts", row.Attempts, "retry", retry, "error", err)
			if markErr := s.emails.MarkFailed(ctx, row.ID, "publish: "+err.Error(), retry); markErr != nil {
				logger.Error("failed to release email after publish error", "email_id", row.ID, "error", markErr)
			}
			continue
		}
		published++
	}
	if len(rows) > 0 {
		logger.Info("dispatched due emails", "claimed", len(rows), "published", published)
	}
	return published, nil
}

// ScheduleDueReminders emails every due reminder to its owner once.
func (s *EmailService) ScheduleDueReminders(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.reminders.Due(ctx, now, s.config.DispatchBatch)
	if err != nil {
		return 0, fmt.Errorf("load due reminders: %w", err)
	}

	scheduled := 0
	for _, r := range due {
		owner, err := s.profiles.Get(ctx, r.UserID)
		if err != nil {
			logger.Error("reminder owner lookup failed", "reminder_id", r.ID, "user_id", r.UserID, "error", err)
			continue
		}
		if !owner.IsActive || owner.Email == "" {
			// nobody to tell; mark it so it is not retried forever
			if err := s.reminders.MarkNotified(ctx, r.ID, now); err != nil {
				logger.Error("failed to mark reminder notified", "reminder_id", r.ID, "user_id", r.UserID, "error", err)
			}
			continue
		}

		_, created, err := s.enqueue(ctx, &model.ScheduledEmail{
			DedupKey:    model.ReminderDedupKey(r.ID),
			Kind:        model.EmailKindReminder,
			Recipient:   owner.Email,
			Subject:     "Reminder: " + r.Title,
			Body:        reminderBody(r),
			ReferenceID: r.ID.String(),
			SendAt:      now,
			Status:      model.EmailPending,
		})
		if err != nil {
			logger.Error("failed to schedule reminder email", "reminder_id", r.ID, "error", err)
			continue
		}
		if err := s.reminders.MarkNotified(ctx, r.ID, now); err != nil {
			logger.Error("failed to mark reminder notified", "reminder_id", r.ID, "error", err)
		}
		if created {
			scheduled++
		}
	}
	return scheduled, nil
}

func reminderBody(r model.Reminder) string {
	var b strings.Builder
	b.WriteString(r.Title)
	b.WriteString("\n\nDue: ")
	b.WriteString(r.RemindAt.UTC().Format(time.RFC1123))
	if r.Notes != "" {
		b.WriteString("\n\n")
		b.WriteString(r.Notes)
	}
	return b.String()
}

func (s *EmailService) List(ctx context.Context, f model.EmailFilter) (model.Page[model.ScheduledEmail], error) {
	return s.emails.List(ctx, f)
}
