package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ColorRed    = "red"
	ColorOrange = "orange"
	ColorYellow = "yellow"
	ColorGreen  = "green"
)

// AutoRedActor is recorded as the author of automatic escalations.
const AutoRedActor = "system:auto-red"

type ColorStatusOption struct {
	Value     string    `json:"value"`
	Label     string    `json:"label"`
	SortOrder int       `json:"sort_order"`
	IsSystem  bool      `json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
}

type Invoice struct {
	ID              uuid.UUID       `json:"id"`
	ReferenceNumber string          `json:"reference_number"`
	CustomerID      *uuid.UUID      `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Balance         decimal.Decimal `json:"balance"`
	InvoiceDate     *time.Time      `json:"invoice_date"`
	DueDate         *time.Time      `json:"due_date"`
	ColorStatus     string          `json:"color_status"`
	// a locked status is only ever changed by a user
	StatusLocked    bool       `json:"status_locked"`
	StatusChangedAt *time.Time `json:"status_changed_at"`
	StatusChangedBy string     `json:"status_changed_by"`
	PromiseDate     *time.Time `json:"promise_date"`
	PromiseSetBy    string     `json:"promise_set_by"`
	LastSyncedAt    *time.Time `json:"last_synced_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsBrokenPromise reports a green invoice whose promise date has passed while
// money is still owed.
func (i Invoice) IsBrokenPromise(now time.Time) bool {
	return i.ColorStatus == ColorGreen &&
		i.PromiseDate != nil &&
		i.PromiseDate.Before(now) &&
		i.Balance.IsPositive()
}

// DaysPastDue is zero for invoices without a due date or not yet due.
func (i Invoice) DaysPastDue(now time.Time) int {
	if i.DueDate == nil {
		return 0
	}
	due := truncateDay(*i.DueDate)
	today := truncateDay(now)
	if !today.After(due) {
		return 0
	}
	return int(today.Sub(due).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type InvoiceStatusChange struct {
	ID        uuid.UUID `json:"id"`
	InvoiceID uuid.UUID `json:"invoice_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedBy string    `json:"changed_by"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type InvoiceFilter struct {
	Query         string
	ColorStatuses []string
	CustomerID    *uuid.UUID
	MinBalance    *decimal.Decimal
	MaxBalance    *decimal.Decimal
	DueFrom       *time.Time
	DueTo         *time.Time
	OnlyOpen      bool
	BrokenPromise bool
	// whitelisted in the repository, unknown values fall back to due_date
	Sort   string
	Desc   bool
	Limit  int
	Offset int
}

// AutoRedCandidate is an open invoice joined with its customer threshold.
type AutoRedCandidate struct {
	Invoice          Invoice
	RedThresholdDays int
}
