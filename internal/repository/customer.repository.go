package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"gorm.io/gorm"
)

var ErrCustomerNotFound = errors.New("customer not found")

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{db}
}

// Upsert matches on acumatica_id. Only ERP owned columns are overwritten;
// red_threshold_days is maintained locally and left alone on update.
func (r *CustomerRepository) Upsert(ctx context.Context, c *model.Customer) (model.UpsertResult, error) {
	var res model.UpsertResult
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var existing CustomerEntity
		err := r.Write(ctx).Where("acumatica_id = ?", c.AcumaticaID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e := toCustomerEntity(c)
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
		if existing.Name != c.Name {
			changes["name"] = c.Name
		}
		if existing.Email != c.Email {
			changes["email"] = c.Email
		}
		if existing.Phone != c.Phone {
			changes["phone"] = c.Phone
		}
		if existing.IsActive != c.IsActive {
			changes["is_active"] = c.IsActive
		}
		res = model.UpsertResult{ID: existing.ID, Changes: changes}
		if len(changes) == 0 {
			return nil
		}
		res.Changed = true
		return r.Write(ctx).Model(&existing).Updates(changes).Error
	})
	return res, err
}

func (r *CustomerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var e CustomerEntity
	if err := r.Read(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&e), nil
}

func (r *CustomerRepository) GetByAcumaticaID(ctx context.Context, acumaticaID string) (*model.Customer, error) {
	var e CustomerEntity
	if err := r.Read(ctx).First(&e, "acumatica_id = ?", acumaticaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&e), nil
}

// SetRedThreshold sets or clears (nil) the days past due after which invoices
// of the customer escalate to red.
func (r *CustomerRepository) SetRedThreshold(ctx context.Context, id uuid.UUID, days *int) error {
	tx := r.Write(ctx).Model(&CustomerEntity{}).Where("id = ?", id).
		Updates(map[string]any{"red_threshold_days": days, "updated_at": time.Now().UTC()})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

var customerSummarySorts = map[string]string{
	"name":          "c.name",
	"open_balance":  "open_balance",
	"invoice_count": "invoice_count",
}

// Summaries aggregates the open invoices per customer with aging buckets
// relative to now.
func (r *CustomerRepository) Summaries(ctx context.Context, f model.CustomerSummaryFilter, now time.Time) (model.Page[model.CustomerSummary], error) {
	limit, offset := model.ClampPage(f.Limit, f.Offset)
	page := model.Page[model.CustomerSummary]{Limit: limit, Offset: offset, Items: []model.CustomerSummary{}}

	today := startOfDay(now)
	d30 := today.AddDate(0, 0, -30)
	d60 := today.AddDate(0, 0, -60)
	d90 := today.AddDate(0, 0, -90)

	base := func() *gorm.DB {
		q := r.Read(ctx).Table("customers AS c")
		if f.Query != "" {
			q = q.Where(likeClause(r.DB, "c.name"), likePattern(f.Query))
		}
		if f.OnlyWithBalance {
			q = q.Where("EXISTS (SELECT 1 FROM invoices oi WHERE oi.customer_id = c.id AND oi.balance > 0)")
		}
		return q
	}

	if err := base().Count(&page.Total).Error; err != nil {
		return page, err
	}

	order, ok := customerSummarySorts[f.Sort]
	if !ok {
		order = "c.name"
	}
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	var rows []customerSummaryRow
	err := base().
		Select(`c.id AS customer_id,
			c.name AS name,
			COALESCE(SUM(i.balance), 0) AS open_balance,
			COUNT(i.id) AS invoice_count,
			COALESCE(SUM(CASE WHEN i.color_status = 'red' THEN 1 ELSE 0 END), 0) AS red_count,
			COALESCE(SUM(CASE WHEN i.color_status = 'green' AND i.promise_date < ? THEN 1 ELSE 0 END), 0) AS broken_promise_count,
			COALESCE(SUM(CASE WHEN i.due_date IS NULL OR i.due_date >= ? THEN i.balance ELSE 0 END), 0) AS current_amount,
			COALESCE(SUM(CASE WHEN i.due_date < ? AND i.due_date >= ? THEN i.balance ELSE 0 END), 0) AS days_1_30,
			COALESCE(SUM(CASE WHEN i.due_date < ? AND i.due_date >= ? THEN i.balance ELSE 0 END), 0) AS days_31_60,
			COALESCE(SUM(CASE WHEN i.due_date < ? AND i.due_date >= ? THEN i.balance ELSE 0 END), 0) AS days_61_90,
			COALESCE(SUM(CASE WHEN i.due_date < ? THEN i.balance ELSE 0 END), 0) AS over_90`,
			now.UTC(), today, today, d30, d30, d60, d60, d90, d90).
		Joins("LEFT JOIN invoices AS i ON i.customer_id = c.id AND i.balance > 0").
		Group("c.id, c.name").
		Order(order).
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return page, err
	}

	for _, row := range rows {
		page.Items = append(page.Items, row.toModel())
	}
	return page, nil
}
