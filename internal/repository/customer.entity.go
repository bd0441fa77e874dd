package repository

import (
	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"github.com/shopspring/decimal"
)

type CustomerEntity struct {
	pg.Model
	AcumaticaID      string `gorm:"column:acumatica_id;not null;uniqueIndex"`
	Name             string `gorm:"column:name;not null"`
	Email            string `gorm:"column:email;not null"`
	Phone            string `gorm:"column:phone;not null"`
	RedThresholdDays *int   `gorm:"column:red_threshold_days"`
	IsActive         bool   `gorm:"column:is_active;not null"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerEntity(c *model.Customer) *CustomerEntity {
	if c == nil {
		return nil
	}
	return &CustomerEntity{
		Model:            pg.Model{ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt},
		AcumaticaID:      c.AcumaticaID,
		Name:             c.Name,
		Email:            c.Email,
		Phone:            c.Phone,
		RedThresholdDays: c.RedThresholdDays,
		IsActive:         c.IsActive,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:               e.ID,
		AcumaticaID:      e.AcumaticaID,
		Name:             e.Name,
		Email:            e.Email,
		Phone:            e.Phone,
		RedThresholdDays: e.RedThresholdDays,
		IsActive:         e.IsActive,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

// customerSummaryRow is the scan target of the summary aggregation.
type customerSummaryRow struct {
	CustomerID         uuid.UUID       `gorm:"column:customer_id"`
	Name               string          `gorm:"column:name"`
	OpenBalance        decimal.Decimal `gorm:"column:open_balance"`
	InvoiceCount       int64           `gorm:"column:invoice_count"`
	RedCount           int64           `gorm:"column:red_count"`
	BrokenPromiseCount int64           `gorm:"column:broken_promise_count"`
	CurrentAmount      decimal.Decimal `gorm:"column:current_amount"`
	Days1To30          decimal.Decimal `gorm:"column:days_1_30"`
	Days31To60         decimal.Decimal `gorm:"column:days_31_60"`
	Days61To90         decimal.Decimal `gorm:"column:days_61_90"`
	Over90             decimal.Decimal `gorm:"column:over_90"`
}

func (r customerSummaryRow) toModel() model.CustomerSummary {
	return model.CustomerSummary{
		CustomerID:         r.CustomerID,
		Name:               r.Name,
		OpenBalance:        r.OpenBalance,
		InvoiceCount:       r.InvoiceCount,
		RedCount:           r.RedCount,
		BrokenPromiseCount: r.BrokenPromiseCount,
		Current:            r.CurrentAmount,
		Days1To30:          r.Days1To30,
		Days31To60:         r.Days31To60,
		Days61To90:         r.Days61To90,
		Over90:             r.Over90,
	}
}
