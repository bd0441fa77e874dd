package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"github.com/shopspring/decimal"
)

type PaymentEntity struct {
	pg.Model
	AcumaticaID     string          `gorm:"column:acumatica_id;not null;uniqueIndex"`
	CustomerID      *uuid.UUID      `gorm:"column:customer_id;type:uuid"`
	ReferenceNumber string          `gorm:"column:reference_number;not null"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	PaymentDate     *time.Time      `gorm:"column:payment_date;type:date"`
	PaymentMethod   string          `gorm:"column:payment_method;not null"`
}

func (PaymentEntity) TableName() string {
	return "payments"
}

type PaymentApplicationEntity struct {
	pg.Model
	PaymentID     uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:payment_invoice_applications_payment_invoice_key"`
	InvoiceID     uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;uniqueIndex:payment_invoice_applications_payment_invoice_key"`
	AmountApplied decimal.Decimal `gorm:"column:amount_applied;type:numeric(14,2);not null"`
	AppliedAt     *time.Time      `gorm:"column:applied_at"`
}

func (PaymentApplicationEntity) TableName() string {
	return "payment_invoice_applications"
}

func toPaymentEntity(p *model.Payment) *PaymentEntity {
	return &PaymentEntity{
		Model:           pg.Model{ID: p.ID},
		AcumaticaID:     p.AcumaticaID,
		CustomerID:      p.CustomerID,
		ReferenceNumber: p.ReferenceNumber,
		Amount:          p.Amount,
		PaymentDate:     p.PaymentDate,
		PaymentMethod:   p.PaymentMethod,
	}
}

func toPaymentApplicationModel(e *PaymentApplicationEntity) model.PaymentApplication {
	return model.PaymentApplication{
		ID:            e.ID,
		PaymentID:     e.PaymentID,
		InvoiceID:     e.InvoiceID,
		AmountApplied: e.AmountApplied,
		AppliedAt:     e.AppliedAt,
	}
}
