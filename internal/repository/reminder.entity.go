package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
)

type ReminderEntity struct {
	pg.Model
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	CustomerID  *uuid.UUID `gorm:"column:customer_id;type:uuid"`
	InvoiceID   *uuid.UUID `gorm:"column:invoice_id;type:uuid"`
	TicketID    *uuid.UUID `gorm:"column:ticket_id;type:uuid"`
	Title       string     `gorm:"column:title;not null"`
	Notes       string     `gorm:"column:notes;not null"`
	RemindAt    time.Time  `gorm:"column:remind_at;not null"`
	NotifiedAt  *time.Time `gorm:"column:notified_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

func (ReminderEntity) TableName() string {
	return "reminders"
}

func toReminderEntity(m *model.Reminder) *ReminderEntity {
	return &ReminderEntity{
		Model:       pg.Model{ID: m.ID},
		UserID:      m.UserID,
		CustomerID:  m.CustomerID,
		InvoiceID:   m.InvoiceID,
		TicketID:    m.TicketID,
		Title:       m.Title,
		Notes:       m.Notes,
		RemindAt:    m.RemindAt.UTC(),
		NotifiedAt:  m.NotifiedAt,
		CompletedAt: m.CompletedAt,
	}
}

func toReminderModel(e *ReminderEntity) *model.Reminder {
	return &model.Reminder{
		ID:          e.ID,
		UserID:      e.UserID,
		CustomerID:  e.CustomerID,
		InvoiceID:   e.InvoiceID,
		TicketID:    e.TicketID,
		Title:       e.Title,
		Notes:       e.Notes,
		RemindAt:    e.RemindAt,
		NotifiedAt:  e.NotifiedAt,
		CompletedAt: e.CompletedAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
