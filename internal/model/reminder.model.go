package model

import (
	"time"

	"github.com/google/uuid"
)

type Reminder struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	CustomerID  *uuid.UUID `json:"customer_id"`
	InvoiceID   *uuid.UUID `json:"invoice_id"`
	TicketID    *uuid.UUID `json:"ticket_id"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes"`
	RemindAt    time.Time  `json:"remind_at"`
	NotifiedAt  *time.Time `json:"notified_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
