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

var ErrReminderNotFound = errors.New("reminder not found")

type ReminderRepository struct {
	*pg.DB
}

func NewReminderRepository(db *pg.DB) *ReminderRepository {
	return &ReminderRepository{db}
}

func (r *ReminderRepository) Create(ctx context.Context, m *model.Reminder) (*model.Reminder, error) {
	e := toReminderEntity(m)
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return toReminderModel(e), nil
}

func (r *ReminderRepository) Get(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	var e ReminderEntity
	if err := r.Read(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReminderNotFound
		}
		return nil, err
	}
	return toReminderModel(&e), nil
}

func (r *ReminderRepository) ListByUser(ctx context.Context, userID uuid.UUID, includeCompleted bool) ([]model.Reminder, error) {
	q := r.Read(ctx).Where("user_id = ?", userID)
	if !includeCompleted {
		q = q.Where("completed_at IS NULL")
	}
	var entities []*ReminderEntity
	if err := q.Order("remind_at").Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]model.Reminder, 0, len(entities))
	for _, e := range entities {
		out = append(out, *toReminderModel(e))
	}
	return out, nil
}

// Due lists open reminders whose time has come and that were not yet turned
// into a notification.
func (r *ReminderRepository) Due(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	var entities []*ReminderEntity
	err := r.Read(ctx).
		Where("remind_at <= ? AND completed_at IS NULL AND notified_at IS NULL", now.UTC()).
		Order("remind_at").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.Reminder, 0, len(entities))
	for _, e := range entities {
		out = append(out, *toReminderModel(e))
	}
	return out, nil
}

func (r *ReminderRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.Write(ctx).Model(&ReminderEntity{}).
		Where("id = ? AND notified_at IS NULL", id).
		Update("notified_at", at.UTC()).Error
}

func (r *ReminderRepository) Complete(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	tx := r.Write(ctx).Model(&ReminderEntity{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("completed_at", at.UTC())
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrReminderNotFound
	}
	return nil
}
