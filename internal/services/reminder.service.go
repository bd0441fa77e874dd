package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
)

type ReminderRepository interface {
	Create(ctx context.Context, m *model.Reminder) (*model.Reminder, error)
	ListByUser(ctx context.Context, userID uuid.UUID, includeCompleted bool) ([]model.Reminder, error)
	Complete(ctx context.Context, id, userID uuid.UUID, at time.Time) error
}

type CreateReminderInput struct {
	CustomerID *uuid.UUID
	InvoiceID  *uuid.UUID
	TicketID   *uuid.UUID
	Title      string
	Notes      string
	RemindAt   time.Time
}

type ReminderService struct {
	reminders ReminderRepository
	now       func() time.Time
}

func NewReminderService(reminders ReminderRepository) *ReminderService {
	return &ReminderService{
		reminders: reminders,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReminderService) Create(ctx context.Context, actor *model.UserProfile, in CreateReminderInput) (*model.Reminder, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if in.RemindAt.IsZero() {
		return nil, fmt.Errorf("%w: remind_at is required", ErrInvalidRequest)
	}
	return s.reminders.Create(ctx, &model.Reminder{
		UserID:     actor.ID,
		CustomerID: in.CustomerID,
		InvoiceID:  in.InvoiceID,
		TicketID:   in.TicketID,
		Title:      in.Title,
		Notes:      strings.TrimSpace(in.Notes),
		RemindAt:   in.RemindAt.UTC(),
	})
}

func (s *ReminderService) ListMine(ctx context.Context, actor *model.UserProfile, includeCompleted bool) ([]model.Reminder, error) {
	return s.reminders.ListByUser(ctx, actor.ID, includeCompleted)
}

// Complete only touches reminders owned by actor.
func (s *ReminderService) Complete(ctx context.Context, actor *model.UserProfile, id uuid.UUID) error {
	return s.reminders.Complete(ctx, id, actor.ID, s.now())
}
