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

var (
	ErrEmailNotFound      = errors.New("scheduled email not found")
	ErrCredentialNotFound = errors.New("function credential not found")
)

type ScheduledEmailRepository struct {
	*pg.DB
}

func NewScheduledEmailRepository(db *pg.DB) *ScheduledEmailRepository {
	return &ScheduledEmailRepository{db}
}

// Enqueue inserts the email unless a row with the same dedup_key exists. The
// stored row is returned either way; created tells which case happened.
func (r *ScheduledEmailRepository) Enqueue(ctx context.Context, m *model.ScheduledEmail) (*model.ScheduledEmail, bool, error) {
	e := toScheduledEmailEntity(m)
	tx := r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(e)
	if tx.Error != nil {
		return nil, false, tx.Error
	}
	if tx.RowsAffected == 1 {
		return toScheduledEmailModel(e), true, nil
	}

	existing, err := r.GetByDedupKey(ctx, m.DedupKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *ScheduledEmailRepository) GetByDedupKey(ctx context.Context, key string) (*model.ScheduledEmail, error) {
	var e ScheduledEmailEntity
	if err := r.Write(ctx).First(&e, "dedup_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, err
	}
	return toScheduledEmailModel(&e), nil
}

func (r *ScheduledEmailRepository) Get(ctx context.Context, id uuid.UUID) (*model.ScheduledEmail, error) {
	var e ScheduledEmailEntity
	if err := r.Write(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, err
	}
	return toScheduledEmailModel(&e), nil
}

// ClaimDue moves up to limit due pending rows to sending and returns them.
// Each row is claimed with a conditional update so concurrent dispatchers never
// claim the same email twice.
func (r *ScheduledEmailRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledEmail, error) {
	var candidates []*ScheduledEmailEntity
	err := r.Write(ctx).
		Where("status = ? AND send_at <= ?", string(model.EmailPending), now.UTC()).
		Order("send_at").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]model.ScheduledEmail, 0, len(candidates))
	for _, e := range candidates {
		tx := r.Write(ctx).Model(&ScheduledEmailEntity{}).
			Where("id = ? AND status = ?", e.ID, string(model.EmailPending)).
			Updates(map[string]any{
				"status":   string(model.EmailSending),
				"attempts": gorm.Expr("attempts + 1"),
			})
		if tx.Error != nil {
			return claimed, tx.Error
		}
		if tx.RowsAffected == 0 {
			continue
		}
		e.Status = string(model.EmailSending)
		e.Attempts++
		claimed = append(claimed, *toScheduledEmailModel(e))
	}
	return claimed, nil
}

func (r *ScheduledEmailRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.Write(ctx).Model(&ScheduledEmailEntity{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(model.EmailSent),
		"sent_at":    at.UTC(),
		"last_error": "",
	}).Error
}

// MarkFailed records the error. With retry the row goes back to pending so the
// next dispatch picks it up again.
func (r *ScheduledEmailRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retry bool) error {
	status := model.EmailFailed
	if retry {
		status = model.EmailPending
	}
	return r.Write(ctx).Model(&ScheduledEmailEntity{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(status),
		"last_error": reason,
	}).Error
}

func (r *ScheduledEmailRepository) List(ctx context.Context, f model.EmailFilter) (model.Page[model.ScheduledEmail], error) {
	limit, offset := model.ClampPage(f.Limit, f.Offset)
	page := model.Page[model.ScheduledEmail]{Limit: limit, Offset: offset, Items: []model.ScheduledEmail{}}

	q := r.Read(ctx).Model(&ScheduledEmailEntity{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if err := q.Count(&page.Total).Error; err != nil {
		return page, err
	}

	var entities []*ScheduledEmailEntity
	if err := q.Order("send_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return page, err
	}
	for _, e := range entities {
		page.Items = append(page.Items, *toScheduledEmailModel(e))
	}
	return page, nil
}

type FunctionCredentialRepository struct {
	*pg.DB
}

func NewFunctionCredentialRepository(db *pg.DB) *FunctionCredentialRepository {
	return &FunctionCredentialRepository{db}
}

func (r *FunctionCredentialRepository) GetByName(ctx context.Context, name string) (*model.FunctionCredential, error) {
	var e FunctionCredentialEntity
	if err := r.Read(ctx).First(&e, "function_name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &model.FunctionCredential{ID: e.ID, FunctionName: e.FunctionName, Token: e.Token}, nil
}

// Save creates or rotates the token of a function.
func (r *FunctionCredentialRepository) Save(ctx context.Context, name, token string) error {
	return r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "function_name"}},
		DoUpdates: clause.Assignments(map[string]any{"token": token, "updated_at": time.Now().UTC()}),
	}).Create(&FunctionCredentialEntity{FunctionName: name, Token: token}).Error
}
