package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	*pg.DB
}

func NewPaymentRepository(db *pg.DB) *PaymentRepository {
	return &PaymentRepository{db}
}

func (r *PaymentRepository) Upsert(ctx context.Context, p *model.Payment) (model.UpsertResult, error) {
	var res model.UpsertResult
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var existing PaymentEntity
		err := r.Write(ctx).Where("acumatica_id = ?", p.AcumaticaID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e := toPaymentEntity(p)
			if err := r.Write(ctx).Create(e).Error; err != nil {
				return err
			}
			res = model.UpsertResult{ID: e.ID, Created: true, Changed: true}
			return nil
		}
		if err != nil {
			return err
		}

		changes := map[string]any{}
		if !sameUUID(existing.CustomerID, p.CustomerID) {
			changes["customer_id"] = p.CustomerID
		}
		if existing.ReferenceNumber != p.ReferenceNumber {
			changes["reference_number"] = p.ReferenceNumber
		}
		if !existing.Amount.Equal(p.Amount) {
			changes["amount"] = p.Amount
		}
		if !sameDay(existing.PaymentDate, p.PaymentDate) {
			changes["payment_date"] = p.PaymentDate
		}
		if existing.PaymentMethod != p.PaymentMethod {
			changes["payment_method"] = p.PaymentMethod
		}
		res = model.UpsertResult{ID: existing.ID, Changes: changes, Changed: len(changes) > 0}
		if !res.Changed {
			return nil
		}
		return r.Write(ctx).Model(&existing).Updates(changes).Error
	})
	return res, err
}

// UpsertApplication is idempotent on (payment_id, invoice_id); a repeated sync
// only refreshes the applied amount.
func (r *PaymentRepository) UpsertApplication(ctx context.Context, app model.PaymentApplication) error {
	e := &PaymentApplicationEntity{
		PaymentID:     app.PaymentID,
		InvoiceID:     app.InvoiceID,
		AmountApplied: app.AmountApplied,
		AppliedAt:     app.AppliedAt,
	}
	return r.Write(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "payment_id"}, {Name: "invoice_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"amount_applied": app.AmountApplied,
			"applied_at":     app.AppliedAt,
			"updated_at":     time.Now().UTC(),
		}),
	}).Create(e).Error
}

func (r *PaymentRepository) ApplicationsForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.PaymentApplication, error) {
	var entities []*PaymentApplicationEntity
	if err := r.Read(ctx).Where("invoice_id = ?", invoiceID).Order("applied_at").Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]model.PaymentApplication, 0, len(entities))
	for _, e := range entities {
		out = append(out, toPaymentApplicationModel(e))
	}
	return out, nil
}
