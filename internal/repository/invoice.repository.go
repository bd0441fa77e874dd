package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrStatusUnchanged is returned when a color status change is a no-op.
	ErrStatusUnchanged = errors.New("invoice already has this color status")
)

type InvoiceRepository struct {
	*pg.DB
}

func NewInvoiceRepository(db *pg.DB) *InvoiceRepository {
	return &InvoiceRepository{db}
}

// Upsert matches on the normalized reference number and overwrites the ERP
// owned columns. Collection state (color, promise, lock) is never touched.
func (r *InvoiceRepository) Upsert(ctx context.Context, inv *model.Invoice) (model.UpsertResult, error) {
	ref, err := model.NormalizeReferenceNumber(inv.ReferenceNumber)
	if err != nil {
		return model.UpsertResult{}, err
	}

	var res model.UpsertResult
	err = r.WithinTransaction(ctx, func(ctx context.Context) error {
		var existing InvoiceEntity
		err := r.Write(ctx).Where("reference_number = ?", ref).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e := toInvoiceEntity(inv)
			e.ReferenceNumber = ref
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
		if !sameUUID(existing.CustomerID, inv.CustomerID) {
			changes["customer_id"] = inv.CustomerID
		}
		if inv.CustomerName != "" && existing.CustomerName != inv.CustomerName {
			changes["customer_name"] = inv.CustomerName
		}
		if existing.Description != inv.Description {
			changes["description"] = inv.Description
		}
		if !existing.Amount.Equal(inv.Amount) {
			changes["amount"] = inv.Amount
		}
		if !existing.Balance.Equal(inv.Balance) {
			changes["balance"] = inv.Balance
		}
		if !sameDay(existing.InvoiceDate, inv.InvoiceDate) {
			changes["invoice_date"] = inv.InvoiceDate
		}
		if !sameDay(existing.DueDate, inv.DueDate) {
			changes["due_date"] = inv.DueDate
		}

		res = model.UpsertResult{ID: existing.ID, Changes: changes}
		updates := map[string]any{"last_synced_at": inv.LastSyncedAt}
		for k, v := range changes {
			updates[k] = v
		}
		res.Changed = len(changes) > 0
		return r.Write(ctx).Model(&existing).Updates(updates).Error
	})
	return res, err
}

func (r *InvoiceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var e InvoiceEntity
	if err := r.Read(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return toInvoiceModel(&e), nil
}

func (r *InvoiceRepository) GetByReference(ctx context.Context, raw string) (*model.Invoice, error) {
	ref, err := model.NormalizeReferenceNumber(raw)
	if err != nil {
		return nil, err
	}
	var e InvoiceEntity
	if err := r.Read(ctx).First(&e, "reference_number = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return toInvoiceModel(&e), nil
}

func (r *InvoiceRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Invoice, error) {
	if len(ids) == 0 {
		return []model.Invoice{}, nil
	}
	var entities []*InvoiceEntity
	if err := r.Read(ctx).Where("id IN ?", ids).Order("reference_number").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toInvoiceModels(entities), nil
}

var invoiceSorts = map[string]string{
	"reference_number": "reference_number",
	"customer_name":    "customer_name",
	"amount":           "amount",
	"balance":          "balance",
	"due_date":         "due_date",
	"color_status":     "color_status",
	"updated_at":       "updated_at",
}

// Search is the dynamic invoice query used by the invoice grid. The free text
// term is matched against reference, customer name and description.
func (r *InvoiceRepository) Search(ctx context.Context, f model.InvoiceFilter, now time.Time) (model.Page[model.Invoice], error) {
	limit, offset := model.ClampPage(f.Limit, f.Offset)
	page := model.Page[model.Invoice]{Limit: limit, Offset: offset, Items: []model.Invoice{}}

	q := r.Read(ctx).Model(&InvoiceEntity{})
	if f.Query != "" {
		pattern := likePattern(f.Query)
		q = q.Where(
			r.Read(ctx).
				Where(likeClause(r.DB, "reference_number"), pattern).
				Or(likeClause(r.DB, "customer_name"), pattern).
				Or(likeClause(r.DB, "description"), pattern),
		)
	}
	if len(f.ColorStatuses) > 0 {
		q = q.Where("color_status IN ?", f.ColorStatuses)
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.MinBalance != nil {
		q = q.Where("balance >= ?", *f.MinBalance)
	}
	if f.MaxBalance != nil {
		q = q.Where("balance <= ?", *f.MaxBalance)
	}
	if f.DueFrom != nil {
		q = q.Where("due_date >= ?", startOfDay(*f.DueFrom))
	}
	if f.DueTo != nil {
		q = q.Where("due_date <= ?", startOfDay(*f.DueTo))
	}
	if f.OnlyOpen {
		q = q.Where("balance > 0")
	}
	if f.BrokenPromise {
		q = brokenPromiseScope(q, now)
	}

	if err := q.Count(&page.Total).Error; err != nil {
		return page, err
	}

	col, ok := invoiceSorts[f.Sort]
	if !ok {
		col = "due_date"
	}
	dir := " ASC"
	if f.Desc {
		dir = " DESC"
	}

	var entities []*InvoiceEntity
	if err := q.Order(col + dir).Order("reference_number ASC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return page, err
	}
	page.Items = toInvoiceModels(entities)
	return page, nil
}

func brokenPromiseScope(q *gorm.DB, now time.Time) *gorm.DB {
	return q.Where("color_status = ? AND promise_date < ? AND balance > 0", model.ColorGreen, now.UTC())
}

func (r *InvoiceRepository) ListBrokenPromises(ctx context.Context, now time.Time, limit, offset int) (model.Page[model.Invoice], error) {
	return r.Search(ctx, model.InvoiceFilter{BrokenPromise: true, Sort: "due_date", Limit: limit, Offset: offset}, now)
}

// UpdateColorStatus sets a new status and records the transition in
// invoice_status_changes within one transaction. A non-nil lock also updates
// the manual lock flag.
func (r *InvoiceRepository) UpdateColorStatus(ctx context.Context, id uuid.UUID, status, actor, reason string, lock *bool) (*model.Invoice, error) {
	var out *model.Invoice
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		e, err := r.lockInvoice(ctx, id)
		if err != nil {
			return err
		}

		old := derefString(e.ColorStatus)
		if old == status && (lock == nil || *lock == e.StatusLocked) {
			return ErrStatusUnchanged
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"color_status":      status,
			"status_changed_at": now,
			"status_changed_by": actor,
		}
		if lock != nil {
			updates["status_locked"] = *lock
		}
		if err := r.Write(ctx).Model(e).Updates(updates).Error; err != nil {
			return err
		}

		if old != status {
			change := &InvoiceStatusChangeEntity{
				InvoiceID: id,
				OldStatus: old,
				NewStatus: status,
				ChangedBy: actor,
				Reason:    reason,
			}
			if err := r.Write(ctx).Create(change).Error; err != nil {
				return err
			}
		}

		if err := r.Write(ctx).First(e, "id = ?", id).Error; err != nil {
			return err
		}
		out = toInvoiceModel(e)
		return nil
	})
	return out, err
}

// EscalateToRed flips an unlocked, non red invoice to red. The update is
// conditional so a concurrent manual change wins; false means nothing changed.
func (r *InvoiceRepository) EscalateToRed(ctx context.Context, id uuid.UUID, actor, reason string) (bool, error) {
	changed := false
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		e, err := r.lockInvoice(ctx, id)
		if err != nil {
			return err
		}

		tx := r.Write(ctx).Model(&InvoiceEntity{}).
			Where("id = ? AND status_locked = ? AND balance > 0", id, false).
			Where("color_status IS NULL OR color_status <> ?", model.ColorRed).
			Updates(map[string]any{
				"color_status":      model.ColorRed,
				"status_changed_at": time.Now().UTC(),
				"status_changed_by": actor,
			})
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected == 0 {
			return nil
		}
		changed = true

		return r.Write(ctx).Create(&InvoiceStatusChangeEntity{
			InvoiceID: id,
			OldStatus: derefString(e.ColorStatus),
			NewStatus: model.ColorRed,
			ChangedBy: actor,
			Reason:    reason,
		}).Error
	})
	return changed, err
}

// SetPromise stores or clears (nil date) the customer's promise to pay.
func (r *InvoiceRepository) SetPromise(ctx context.Context, id uuid.UUID, date *time.Time, actor string) (*model.Invoice, error) {
	var day *time.Time
	if date != nil {
		d := startOfDay(*date)
		day = &d
	}
	tx := r.Write(ctx).Model(&InvoiceEntity{}).Where("id = ?", id).
		Updates(map[string]any{"promise_date": day, "promise_set_by": actor, "updated_at": time.Now().UTC()})
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, ErrInvoiceNotFound
	}
	return r.getForWrite(ctx, id)
}

func (r *InvoiceRepository) StatusHistory(ctx context.Context, id uuid.UUID) ([]model.InvoiceStatusChange, error) {
	var entities []*InvoiceStatusChangeEntity
	err := r.Read(ctx).Where("invoice_id = ?", id).Order("created_at DESC").Find(&entities).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.InvoiceStatusChange, 0, len(entities))
	for _, e := range entities {
		out = append(out, toStatusChangeModel(e))
	}
	return out, nil
}

type autoRedRow struct {
	InvoiceEntity
	RedThresholdDays int `gorm:"column:red_threshold_days"`
}

// AutoRedCandidates returns open, unlocked, non red invoices already past due
// whose customer has a red threshold configured. Threshold comparison and the
// promise exemption are applied by the caller.
func (r *InvoiceRepository) AutoRedCandidates(ctx context.Context, now time.Time) ([]model.AutoRedCandidate, error) {
	var rows []autoRedRow
	err := r.Read(ctx).
		Table("invoices").
		Select("invoices.*, customers.red_threshold_days").
		Joins("JOIN customers ON customers.id = invoices.customer_id").
		Where("customers.red_threshold_days IS NOT NULL").
		Where("invoices.balance > 0").
		Where("invoices.status_locked = ?", false).
		Where("invoices.due_date < ?", startOfDay(now)).
		Where("invoices.color_status IS NULL OR invoices.color_status <> ?", model.ColorRed).
		Order("invoices.due_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]model.AutoRedCandidate, 0, len(rows))
	for i := range rows {
		out = append(out, model.AutoRedCandidate{
			Invoice:          *toInvoiceModel(&rows[i].InvoiceEntity),
			RedThresholdDays: rows[i].RedThresholdDays,
		})
	}
	return out, nil
}

// UnticketedOverdue lists open invoices due on or before dueBefore with at
// least minBalance outstanding that are not part of any open ticket.
func (r *InvoiceRepository) UnticketedOverdue(ctx context.Context, minBalance decimal.Decimal, dueBefore time.Time) ([]model.Invoice, error) {
	open := make([]string, 0, 4)
	for _, s := range model.OpenTicketStatuses() {
		open = append(open, string(s))
	}

	var entities []*InvoiceEntity
	err := r.Read(ctx).
		Where("balance > 0 AND balance >= ?", minBalance).
		Where("due_date <= ?", startOfDay(dueBefore)).
		Where(`NOT EXISTS (
			SELECT 1 FROM ticket_invoices ti
			JOIN collection_tickets t ON t.id = ti.ticket_id
			WHERE ti.invoice_id = invoices.id AND t.status IN ?)`, open).
		Order("customer_id, due_date").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toInvoiceModels(entities), nil
}

// BackfillCustomerNames copies the current customer name onto invoices whose
// denormalized copy is stale.
func (r *InvoiceRepository) BackfillCustomerNames(ctx context.Context) (int64, error) {
	tx := r.Write(ctx).Exec(`UPDATE invoices
		SET customer_name = (SELECT c.name FROM customers c WHERE c.id = invoices.customer_id)
		WHERE customer_id IS NOT NULL
		AND customer_name <> (SELECT c.name FROM customers c WHERE c.id = invoices.customer_id)`)
	return tx.RowsAffected, tx.Error
}

func (r *InvoiceRepository) lockInvoice(ctx context.Context, id uuid.UUID) (*InvoiceEntity, error) {
	q := r.Write(ctx)
	if r.IsPostgres() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var e InvoiceEntity
	if err := q.First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *InvoiceRepository) getForWrite(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var e InvoiceEntity
	if err := r.Write(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return toInvoiceModel(&e), nil
}

type ColorStatusRepository struct {
	*pg.DB
}

var ErrColorStatusNotFound = errors.New("color status option not found")

func NewColorStatusRepository(db *pg.DB) *ColorStatusRepository {
	return &ColorStatusRepository{db}
}

func (r *ColorStatusRepository) List(ctx context.Context) ([]model.ColorStatusOption, error) {
	var entities []*ColorStatusOptionEntity
	if err := r.Read(ctx).Order("sort_order, value").Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]model.ColorStatusOption, 0, len(entities))
	for _, e := range entities {
		out = append(out, toColorStatusModel(e))
	}
	return out, nil
}

func (r *ColorStatusRepository) Exists(ctx context.Context, value string) (bool, error) {
	var n int64
	if err := r.Read(ctx).Model(&ColorStatusOptionEntity{}).Where("value = ?", value).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ColorStatusRepository) Create(ctx context.Context, opt model.ColorStatusOption) (*model.ColorStatusOption, error) {
	e := &ColorStatusOptionEntity{Value: opt.Value, Label: opt.Label, SortOrder: opt.SortOrder}
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	out := toColorStatusModel(e)
	return &out, nil
}

func sameUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return startOfDay(*a).Equal(startOfDay(*b))
}
