package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Customer struct {
	ID          uuid.UUID `json:"id"`
	AcumaticaID string    `json:"acumatica_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	// nil disables automatic red escalation for the customer
	RedThresholdDays *int      `json:"red_threshold_days"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CustomerSummary aggregates the open invoices of one customer.
type CustomerSummary struct {
	CustomerID         uuid.UUID       `json:"customer_id"`
	Name               string          `json:"name"`
	OpenBalance        decimal.Decimal `json:"open_balance"`
	InvoiceCount       int64           `json:"invoice_count"`
	RedCount           int64           `json:"red_count"`
	BrokenPromiseCount int64           `json:"broken_promise_count"`
	Current            decimal.Decimal `json:"current"`
	Days1To30          decimal.Decimal `json:"days_1_30"`
	Days31To60         decimal.Decimal `json:"days_31_60"`
	Days61To90         decimal.Decimal `json:"days_61_90"`
	Over90             decimal.Decimal `json:"over_90"`
}

type CustomerSummaryFilter struct {
	Query           string
	OnlyWithBalance bool
	// one of name, open_balance, invoice_count; anything else sorts by name
	Sort   string
	Desc   bool
	Limit  int
	Offset int
}
