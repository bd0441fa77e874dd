package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketOpen          TicketStatus = "open"
	TicketInProgress    TicketStatus = "in_progress"
	TicketPromised      TicketStatus = "promised"
	TicketPromiseBroken TicketStatus = "promise_broken"
	TicketResolved      TicketStatus = "resolved"
	TicketClosed        TicketStatus = "closed"
	TicketMerged        TicketStatus = "merged"
)

var ErrInvalidTicketTransition = errors.New("ticket status transition not allowed")

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketOpen:          {TicketInProgress, TicketPromised, TicketResolved, TicketClosed},
	TicketInProgress:    {TicketOpen, TicketPromised, TicketResolved, TicketClosed},
	TicketPromised:      {TicketInProgress, TicketPromiseBroken, TicketResolved, TicketClosed},
	TicketPromiseBroken: {TicketInProgress, TicketPromised, TicketResolved, TicketClosed},
	TicketResolved:      {TicketOpen, TicketClosed},
	TicketClosed:        {TicketOpen},
}

// CanTransition reports whether a ticket may move from one status to another.
// Merged tickets are terminal and only Merge produces that status.
func (s TicketStatus) CanTransition(to TicketStatus) bool {
	for _, next := range ticketTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsOpen is true for every status still worked by a collector.
func (s TicketStatus) IsOpen() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketPromised, TicketPromiseBroken:
		return true
	}
	return false
}

func OpenTicketStatuses() []TicketStatus {
	return []TicketStatus{TicketOpen, TicketInProgress, TicketPromised, TicketPromiseBroken}
}

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
)

func (p TicketPriority) Valid() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh
}

type Ticket struct {
	ID                  uuid.UUID        `json:"id"`
	CustomerID          *uuid.UUID       `json:"customer_id"`
	Title               string           `json:"title"`
	Status              TicketStatus     `json:"status"`
	Priority            TicketPriority   `json:"priority"`
	AssignedCollectorID *uuid.UUID       `json:"assigned_collector_id"`
	AssignedAt          *time.Time       `json:"assigned_at"`
	AssignedBy          string           `json:"assigned_by"`
	PromiseDate         *time.Time       `json:"promise_date"`
	PromiseAmount       *decimal.Decimal `json:"promise_amount"`
	MergedIntoID        *uuid.UUID       `json:"merged_into_id"`
	CreatedBy           string           `json:"created_by"`
	ClosedAt            *time.Time       `json:"closed_at"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	Invoices            []Invoice        `json:"invoices,omitempty"`
}

type TicketCreate struct {
	CustomerID          *uuid.UUID
	Title               string
	Priority            TicketPriority
	AssignedCollectorID *uuid.UUID
	InvoiceIDs          []uuid.UUID
	CreatedBy           string
}

type TicketActivity struct {
	ID        uuid.UUID `json:"id"`
	TicketID  uuid.UUID `json:"ticket_id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	TicketActionCreated       = "created"
	TicketActionAssigned      = "assigned"
	TicketActionStatusChanged = "status_changed"
	TicketActionPromiseSet    = "promise_set"
	TicketActionPromiseBroken = "promise_broken"
	TicketActionNote          = "note"
	TicketActionInvoicesAdded = "invoices_added"
	TicketActionMerged        = "merged"
)

type TicketMergeEvent struct {
	ID             uuid.UUID `json:"id"`
	TargetTicketID uuid.UUID `json:"target_ticket_id"`
	SourceTicketID uuid.UUID `json:"source_ticket_id"`
	MergedBy       string    `json:"merged_by"`
	InvoiceCount   int       `json:"invoice_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type TicketFilter struct {
	Statuses            []TicketStatus
	AssignedCollectorID *uuid.UUID
	CustomerID          *uuid.UUID
	Limit               int
	Offset              int
}

type AutoTicketRule struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Enabled        bool            `json:"enabled"`
	MinBalance     decimal.Decimal `json:"min_balance"`
	MinDaysOverdue int             `json:"min_days_overdue"`
	AssignTo       *uuid.UUID      `json:"assign_to"`
	Priority       TicketPriority  `json:"priority"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
