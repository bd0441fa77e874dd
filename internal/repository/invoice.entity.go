package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"github.com/shopspring/decimal"
)

type InvoiceEntity struct {
	pg.Model
	ReferenceNumber string          `gorm:"column:reference_number;not null;uniqueIndex"`
	CustomerID      *uuid.UUID      `gorm:"column:customer_id;type:uuid;index"`
	CustomerName    string          `gorm:"column:customer_name;not null"`
	Description     string          `gorm:"column:description;not null"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	Balance         decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null"`
	InvoiceDate     *time.Time      `gorm:"column:invoice_date;type:date"`
	DueDate         *time.Time      `gorm:"column:due_date;type:date"`
	ColorStatus     *string         `gorm:"column:color_status"`
	StatusLocked    bool            `gorm:"column:status_locked;not null"`
	StatusChangedAt *time.Time      `gorm:"column:status_changed_at"`
	StatusChangedBy string          `gorm:"column:status_changed_by;not null"`
	PromiseDate     *time.Time      `gorm:"column:promise_date;type:date"`
	PromiseSetBy    string          `gorm:"column:promise_set_by;not null"`
	LastSyncedAt    *time.Time      `gorm:"column:last_synced_at"`
}

func (InvoiceEntity) TableName() string {
	return "invoices"
}

type InvoiceStatusChangeEntity struct {
	pg.Model
	InvoiceID uuid.UUID `gorm:"column:invoice_id;type:uuid;not null;index"`
	OldStatus string    `gorm:"column:old_status;not null"`
	NewStatus string    `gorm:"column:new_status;not null"`
	ChangedBy string    `gorm:"column:changed_by;not null"`
	Reason    string    `gorm:"column:reason;not null"`
}

func (InvoiceStatusChangeEntity) TableName() string {
	return "invoice_status_changes"
}

type ColorStatusOptionEntity struct {
	Value     string    `gorm:"column:value;primaryKey"`
	Label     string    `gorm:"column:label;not null"`
	SortOrder int       `gorm:"column:sort_order;not null"`
	IsSystem  bool      `gorm:"column:is_system;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ColorStatusOptionEntity) TableName() string {
	return "color_status_options"
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toInvoiceEntity(i *model.Invoice) *InvoiceEntity {
	if i == nil {
		return nil
	}
	return &InvoiceEntity{
		Model:           pg.Model{ID: i.ID, CreatedAt: i.CreatedAt, UpdatedAt: i.UpdatedAt},
		ReferenceNumber: i.ReferenceNumber,
		CustomerID:      i.CustomerID,
		CustomerName:    i.CustomerName,
		Description:     i.Description,
		Amount:          i.Amount,
		Balance:         i.Balance,
		InvoiceDate:     i.InvoiceDate,
		DueDate:         i.DueDate,
		ColorStatus:     nullableString(i.ColorStatus),
		StatusLocked:    i.StatusLocked,
		StatusChangedAt: i.StatusChangedAt,
		StatusChangedBy: i.StatusChangedBy,
		PromiseDate:     i.PromiseDate,
		PromiseSetBy:    i.PromiseSetBy,
		LastSyncedAt:    i.LastSyncedAt,
	}
}

func toInvoiceModel(e *InvoiceEntity) *model.Invoice {
	if e == nil {
		return nil
	}
	return &model.Invoice{
		ID:              e.ID,
		ReferenceNumber: e.ReferenceNumber,
		CustomerID:      e.CustomerID,
		CustomerName:    e.CustomerName,
		Description:     e.Description,
		Amount:          e.Amount,
		Balance:         e.Balance,
		InvoiceDate:     e.InvoiceDate,
		DueDate:         e.DueDate,
		ColorStatus:     derefString(e.ColorStatus),
		StatusLocked:    e.StatusLocked,
		StatusChangedAt: e.StatusChangedAt,
		StatusChangedBy: e.StatusChangedBy,
		PromiseDate:     e.PromiseDate,
		PromiseSetBy:    e.PromiseSetBy,
		LastSyncedAt:    e.LastSyncedAt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toInvoiceModels(entities []*InvoiceEntity) []model.Invoice {
	models := make([]model.Invoice, 0, len(entities))
	for _, e := range entities {
		models = append(models, *toInvoiceModel(e))
	}
	return models
}

func toStatusChangeModel(e *InvoiceStatusChangeEntity) model.InvoiceStatusChange {
	return model.InvoiceStatusChange{
		ID:        e.ID,
		InvoiceID: e.InvoiceID,
		OldStatus: e.OldStatus,
		NewStatus: e.NewStatus,
		ChangedBy: e.ChangedBy,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}
}

func toColorStatusModel(e *ColorStatusOptionEntity) model.ColorStatusOption {
	return model.ColorStatusOption{
		Value:     e.Value,
		Label:     e.Label,
		SortOrder: e.SortOrder,
		IsSystem:  e.IsSystem,
		CreatedAt: e.CreatedAt,
	}
}
