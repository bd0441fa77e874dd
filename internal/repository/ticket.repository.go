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
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrTicketConflict means the ticket changed status concurrently.
	ErrTicketConflict = errors.New("ticket was modified concurrently")
)

type TicketRepository struct {
	*pg.DB
}

func NewTicketRepository(db *pg.DB) *TicketRepository {
	return &TicketRepository{db}
}

// Create inserts the ticket, links its invoices and logs the creation.
func (r *TicketRepository) Create(ctx context.Context, tc model.TicketCreate) (*model.Ticket, error) {
	var id uuid.UUID
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		priority := tc.Priority
		if priority == "" {
			priority = model.PriorityNormal
		}
		e := &TicketEntity{
			CustomerID:          tc.CustomerID,
			Title:               tc.Title,
			Status:              string(model.TicketOpen),
			Priority:            string(priority),
			AssignedCollectorID: tc.AssignedCollectorID,
			CreatedBy:           tc.CreatedBy,
		}
		if tc.AssignedCollectorID != nil {
			now := time.Now().UTC()
			e.AssignedAt = &now
			e.AssignedBy = tc.CreatedBy
		}
		if err := r.Write(ctx).Create(e).Error; err != nil {
			return err
		}
		id = e.ID

		if _, err := r.linkInvoices(ctx, e.ID, tc.InvoiceIDs); err != nil {
			return err
		}
		return r.AppendActivity(ctx, model.TicketActivity{
			TicketID: e.ID,
			Actor:    tc.CreatedBy,
			Action:   model.TicketActionCreated,
			Details:  tc.Title,
		})
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Get loads the ticket with its invoices.
func (r *TicketRepository) Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	var e TicketEntity
	if err := r.Write(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	t := toTicketModel(&e)

	var invoices []*InvoiceEntity
	err := r.Write(ctx).
		Joins("JOIN ticket_invoices ti ON ti.invoice_id = invoices.id").
		Where("ti.ticket_id = ?", id).
		Order("invoices.due_date, invoices.reference_number").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	t.Invoices = toInvoiceModels(invoices)
	return t, nil
}

func (r *TicketRepository) List(ctx context.Context, f model.TicketFilter) (model.Page[model.Ticket], error) {
	limit, offset := model.ClampPage(f.Limit, f.Offset)
	page := model.Page[model.Ticket]{Limit: limit, Offset: offset, Items: []model.Ticket{}}

	q := r.Read(ctx).Model(&TicketEntity{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.AssignedCollectorID != nil {
		q = q.Where("assigned_collector_id = ?", *f.AssignedCollectorID)
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if err := q.Count(&page.Total).Error; err != nil {
		return page, err
	}

	var entities []*TicketEntity
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return page, err
	}
	for _, e := range entities {
		page.Items = append(page.Items, *toTicketModel(e))
	}
	return page, nil
}

func (r *TicketRepository) Assign(ctx context.Context, id uuid.UUID, collectorID *uuid.UUID, by string) error {
	var assignedAt *time.Time
	if collectorID != nil {
		now := time.Now().UTC()
		assignedAt = &now
	}
	tx := r.Write(ctx).Model(&TicketEntity{}).Where("id = ?", id).Updates(map[string]any{
		"assigned_collector_id": collectorID,
		"assigned_at":           assignedAt,
		"assigned_by":           by,
	})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// UpdateStatus moves a ticket from one status to another. The update only
// applies while the ticket is still in from.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.TicketStatus) error {
	updates := map[string]any{"status": string(to)}
	if to == model.TicketClosed || to == model.TicketResolved || to == model.TicketMerged {
		updates["closed_at"] = time.Now().UTC()
	} else {
		updates["closed_at"] = nil
	}
	tx := r.Write(ctx).Model(&TicketEntity{}).Where("id = ? AND status = ?", id, string(from)).Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrTicketConflict
	}
	return nil
}

func (r *TicketRepository) SetPromise(ctx context.Context, id uuid.UUID, date *time.Time, amount *decimal.Decimal) error {
	var day *time.Time
	if date != nil {
		d := startOfDay(*date)
		day = &d
	}
	tx := r.Write(ctx).Model(&TicketEntity{}).Where("id = ?", id).Updates(map[string]any{
		"promise_date":   day,
		"promise_amount": amount,
	})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// AddInvoices links invoices to the ticket, skipping ones already linked. It
// returns how many links were created.
func (r *TicketRepository) AddInvoices(ctx context.Context, id uuid.UUID, invoiceIDs []uuid.UUID) (int, error) {
	return r.linkInvoices(ctx, id, invoiceIDs)
}

func (r *TicketRepository) linkInvoices(ctx context.Context, ticketID uuid.UUID, invoiceIDs []uuid.UUID) (int, error) {
	added := 0
	for _, invoiceID := range invoiceIDs {
		tx := r.Write(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticket_id"}, {Name: "invoice_id"}},
			DoNothing: true,
		}).Create(&TicketInvoiceEntity{TicketID: ticketID, InvoiceID: invoiceID})
		if tx.Error != nil {
			return added, tx.Error
		}
		added += int(tx.RowsAffected)
	}
	return added, nil
}

func (r *TicketRepository) InvoiceIDs(ctx context.Context, ticketID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.Write(ctx).Model(&TicketInvoiceEntity{}).Where("ticket_id = ?", ticketID).Pluck("invoice_id", &ids).Error
	return ids, err
}

// Merge moves every invoice of the source tickets onto target, marks the
// sources as merged and records one merge event per source.
func (r *TicketRepository) Merge(ctx context.Context, targetID uuid.UUID, sourceIDs []uuid.UUID, actor string) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, sourceID := range sourceIDs {
			var src TicketEntity
			if err := r.Write(ctx).First(&src, "id = ?", sourceID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrTicketNotFound
				}
				return err
			}
			if !model.TicketStatus(src.Status).IsOpen() {
				return ErrTicketConflict
			}

			invoiceIDs, err := r.InvoiceIDs(ctx, sourceID)
			if err != nil {
				return err
			}
			if _, err := r.linkInvoices(ctx, targetID, invoiceIDs); err != nil {
				return err
			}

			err = r.Write(ctx).Model(&TicketEntity{}).Where("id = ?", sourceID).Updates(map[string]any{
				"status":         string(model.TicketMerged),
				"merged_into_id": targetID,
				"closed_at":      time.Now().UTC(),
			}).Error
			if err != nil {
				return err
			}

			event := &TicketMergeEventEntity{
				TargetTicketID: targetID,
				SourceTicketID: sourceID,
				MergedBy:       actor,
				InvoiceCount:   len(invoiceIDs),
			}
			if err := r.Write(ctx).Create(event).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *TicketRepository) MergeEvents(ctx context.Context, targetID uuid.UUID) ([]model.TicketMergeEvent, error) {
	var entities []*TicketMergeEventEntity
	if err := r.Read(ctx).Where("target_ticket_id = ?", targetID).Order("created_at").Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]model.TicketMergeEvent, 0, len(entities))
	for _, e := range entities {
		out = append(out, toMergeEventModel(e))
	}
	return out, nil
}

func (r *TicketRepository) AppendActivity(ctx context.Context, a model.TicketActivity) error {
	return r.Write(ctx).Create(&TicketActivityEntity{
		TicketID: a.TicketID,
		Actor:    a.Actor,
		Action:   a.Action,
		Details:  a.Details,
	}).Error
}

func (r *TicketRepository) Activity(ctx context.Context, ticketID uuid.UUID) ([]model.TicketActivity, error) {
	var entities []*TicketActivityEntity
	if err := r.Read(ctx).Where("ticket_id = ?", ticketID).Order("created_at DESC").Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]model.TicketActivity, 0, len(entities))
	for _, e := range entities {
		out = append(out, toTicketActivityModel(e))
	}
	return out, nil
}

// BrokenPromiseCandidates returns promised tickets whose promise date has
// passed while at least one of their invoices still carries a balance.
func (r *TicketRepository) BrokenPromiseCandidates(ctx context.Context, now time.Time) ([]model.Ticket, error) {
	var entities []*TicketEntity
	err := r.Read(ctx).
		Where("status = ?", string(model.TicketPromised)).
		Where("promise_date < ?", startOfDay(now)).
		Where(`EXISTS (
			SELECT 1 FROM ticket_invoices ti
			JOIN invoices i ON i.id = ti.invoice_id
			WHERE ti.ticket_id = collection_tickets.id AND i.balance > 0)`).
		Order("promise_date").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.Ticket, 0, len(entities))
	for _, e := range entities {
		out = append(out, *toTicketModel(e))
	}
	return out, nil
}

type AutoTicketRuleRepository struct {
	*pg.DB
}

var ErrRuleNotFound = errors.New("auto ticket rule not found")

func NewAutoTicketRuleRepository(db *pg.DB) *AutoTicketRuleRepository {
	return &AutoTicketRuleRepository{db}
}

func (r *AutoTicketRuleRepository) List(ctx context.Context, onlyEnabled bool) ([]model.AutoTicketRule, error) {
	q := r.Read(ctx).Order("name")
	if onlyEnabled {
		q = q.Where("enabled = ?", true)
	}
	var entities []*AutoTicketRuleEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]model.AutoTicketRule, 0, len(entities))
	for _, e := range entities {
		out = append(out, toAutoTicketRuleModel(e))
	}
	return out, nil
}

func (r *AutoTicketRuleRepository) Create(ctx context.Context, rule model.AutoTicketRule) (*model.AutoTicketRule, error) {
	e := toAutoTicketRuleEntity(&rule)
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	out := toAutoTicketRuleModel(e)
	return &out, nil
}

func (r *AutoTicketRuleRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	tx := r.Write(ctx).Model(&AutoTicketRuleEntity{}).Where("id = ?", id).Update("enabled", enabled)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}
