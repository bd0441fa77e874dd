package repository

import (
	"context"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
)

type ActivityRepository struct {
	*pg.DB
}

func NewActivityRepository(db *pg.DB) *ActivityRepository {
	return &ActivityRepository{db}
}

func (r *ActivityRepository) Append(ctx context.Context, l *model.UserActivityLog) error {
	return r.Write(ctx).Create(toActivityEntity(l)).Error
}

func (r *ActivityRepository) List(ctx context.Context, f model.ActivityFilter) (model.Page[model.UserActivityLog], error) {
	limit, offset := model.ClampPage(f.Limit, f.Offset)
	page := model.Page[model.UserActivityLog]{Limit: limit, Offset: offset, Items: []model.UserActivityLog{}}

	q := r.Read(ctx).Model(&UserActivityLogEntity{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at < ?", f.To.UTC())
	}
	if err := q.Count(&page.Total).Error; err != nil {
		return page, err
	}

	var entities []*UserActivityLogEntity
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return page, err
	}
	for _, e := range entities {
		page.Items = append(page.Items, toActivityModel(e))
	}
	return page, nil
}
