package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"github.com/shopspring/decimal"
)

type TicketEntity struct {
	pg.Model
	CustomerID          *uuid.UUID       `gorm:"column:customer_id;type:uuid;index"`
	Title               string           `gorm:"column:title;not null"`
	Status              string           `gorm:"column:status;not null"`
	Priority            string           `gorm:"column:priority;not null"`
	AssignedCollectorID *uuid.UUID       `gorm:"column:assigned_collector_id;type:uuid;index"`
	AssignedAt          *time.Time       `gorm:"column:assigned_at"`
	AssignedBy          string           `gorm:"column:assigned_by;not null"`
	PromiseDate         *time.Time       `gorm:"column:promise_date;type:date"`
	PromiseAmount       *decimal.Decimal `gorm:"column:promise_amount;type:numeric(14,2)"`
	MergedIntoID        *uuid.UUID       `gorm:"column:merged_into_id;type:uuid"`
	CreatedBy           string           `gorm:"column:created_by;not null"`
	ClosedAt            *time.Time       `gorm:"column:closed_at"`
}

func (TicketEntity) TableName() string {
	return "collection_tickets"
}

type TicketInvoiceEntity struct {
	pg.Model
	TicketID  uuid.UUID `gorm:"column:ticket_id;type:uuid;not null;uniqueIndex:ticket_invoices_ticket_invoice_key"`
	InvoiceID uuid.UUID `gorm:"column:invoice_id;type:uuid;not null;uniqueIndex:ticket_invoices_ticket_invoice_key"`
}

func (TicketInvoiceEntity) TableName() string {
	return "ticket_invoices"
}

type TicketMergeEventEntity struct {
	pg.Model
	TargetTicketID uuid.UUID `gorm:"column:target_ticket_id;type:uuid;not null"`
	SourceTicketID uuid.UUID `gorm:"column:source_ticket_id;type:uuid;not null"`
	MergedBy       string    `gorm:"column:merged_by;not null"`
	InvoiceCount   int       `gorm:"column:invoice_count;not null"`
}

func (TicketMergeEventEntity) TableName() string {
	return "ticket_merge_events"
}

type TicketActivityEntity struct {
	pg.Model
	TicketID uuid.UUID `gorm:"column:ticket_id;type:uuid;not null;index"`
	Actor    string    `gorm:"column:actor;not null"`
	Action   string    `gorm:"column:action;not null"`
	Details  string    `gorm:"column:details;not null"`
}

func (TicketActivityEntity) TableName() string {
	return "ticket_activity_log"
}

type AutoTicketRuleEntity struct {
	pg.Model
	Name           string          `gorm:"column:name;not null"`
	Enabled        bool            `gorm:"column:enabled;not null"`
	MinBalance     decimal.Decimal `gorm:"column:min_balance;type:numeric(14,2);not null"`
	MinDaysOverdue int             `gorm:"column:min_days_overdue;not null"`
	AssignTo       *uuid.UUID      `gorm:"column:assign_to;type:uuid"`
	Priority       string          `gorm:"column:priority;not null"`
}

func (AutoTicketRuleEntity) TableName() string {
	return "auto_ticket_rules"
}

func toTicketModel(e *TicketEntity) *model.Ticket {
	if e == nil {
		return nil
	}
	return &model.Ticket{
		ID:                  e.ID,
		CustomerID:          e.CustomerID,
		Title:               e.Title,
		Status:              model.TicketStatus(e.Status),
		Priority:            model.TicketPriority(e.Priority),
		AssignedCollectorID: e.AssignedCollectorID,
		AssignedAt:          e.AssignedAt,
		AssignedBy:          e.AssignedBy,
		PromiseDate:         e.PromiseDate,
		PromiseAmount:       e.PromiseAmount,
		MergedIntoID:        e.MergedIntoID,
		CreatedBy:           e.CreatedBy,
		ClosedAt:            e.ClosedAt,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func toTicketActivityModel(e *TicketActivityEntity) model.TicketActivity {
	return model.TicketActivity{
		ID:        e.ID,
		TicketID:  e.TicketID,
		Actor:     e.Actor,
		Action:    e.Action,
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
	}
}

func toMergeEventModel(e *TicketMergeEventEntity) model.TicketMergeEvent {
	return model.TicketMergeEvent{
		ID:             e.ID,
		TargetTicketID: e.TargetTicketID,
		SourceTicketID: e.SourceTicketID,
		MergedBy:       e.MergedBy,
		InvoiceCount:   e.InvoiceCount,
		CreatedAt:      e.CreatedAt,
	}
}

func toAutoTicketRuleEntity(m *model.AutoTicketRule) *AutoTicketRuleEntity {
	return &AutoTicketRuleEntity{
		Model:          pg.Model{ID: m.ID},
		Name:           m.Name,
		Enabled:        m.Enabled,
		MinBalance:     m.MinBalance,
		MinDaysOverdue: m.MinDaysOverdue,
		AssignTo:       m.AssignTo,
		Priority:       string(m.Priority),
	}
}

func toAutoTicketRuleModel(e *AutoTicketRuleEntity) model.AutoTicketRule {
	return model.AutoTicketRule{
		ID:             e.ID,
		Name:           e.Name,
		Enabled:        e.Enabled,
		MinBalance:     e.MinBalance,
		MinDaysOverdue: e.MinDaysOverdue,
		AssignTo:       e.AssignTo,
		Priority:       model.TicketPriority(e.Priority),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}
