package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrProfileNotFound = errors.New("user profile not found")

type ProfileRepository struct {
	*pg.DB
}

func NewProfileRepository(db *pg.DB) *ProfileRepository {
	return &ProfileRepository{db}
}

func (r *ProfileRepository) Get(ctx context.Context, id uuid.UUID) (*model.UserProfile, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ProfileRepository) GetByAuthID(ctx context.Context, authUserID string) (*model.UserProfile, error) {
	return r.first(ctx, "auth_user_id = ?", authUserID)
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	return r.first(ctx, "lower(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *ProfileRepository) first(ctx context.Context, query string, args ...any) (*model.UserProfile, error) {
	q := r.Write(ctx)
	if r.IsPostgres() && pg.InTransaction(ctx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var e UserProfileEntity
	if err := q.Where(query, args...).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return toProfileModel(&e), nil
}

func (r *ProfileRepository) Create(ctx context.Context, p *model.UserProfile) (*model.UserProfile, error) {
	e := &UserProfileEntity{
		AuthUserID: p.AuthUserID,
		Email:      strings.ToLower(strings.TrimSpace(p.Email)),
		FullName:   p.FullName,
		Role:       string(p.Role),
		IsActive:   p.IsActive,
		ApprovedBy: p.ApprovedBy,
		ApprovedAt: p.ApprovedAt,
	}
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return toProfileModel(e), nil
}

func (r *ProfileRepository) LinkAuthID(ctx context.Context, id uuid.UUID, authUserID, fullName string) error {
	updates := map[string]any{"auth_user_id": authUserID}
	if fullName != "" {
		updates["full_name"] = fullName
	}
	return r.update(ctx, id, updates)
}

func (r *ProfileRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role, approvedBy *uuid.UUID) error {
	updates := map[string]any{"role": string(role)}
	if approvedBy != nil {
		updates["approved_by"] = *approvedBy
		updates["approved_at"] = time.Now().UTC()
	}
	return r.update(ctx, id, updates)
}

func (r *ProfileRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.update(ctx, id, map[string]any{"is_active": active})
}

func (r *ProfileRepository) update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	tx := r.Write(ctx).Model(&UserProfileEntity{}).Where("id = ?", id).Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// LockForSignup serializes profile provisioning until the surrounding
// transaction ends, so two concurrent first sign-ups cannot both see an empty
// table. It is a no-op outside Postgres or outside a transaction.
func (r *ProfileRepository) LockForSignup(ctx context.Context) error {
	if !r.IsPostgres() || !pg.InTransaction(ctx) {
		return nil
	}
	return r.Write(ctx).Exec("LOCK TABLE user_profiles IN SHARE ROW EXCLUSIVE MODE").Error
}

func (r *ProfileRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.Write(ctx).Model(&UserProfileEntity{}).Count(&n).Error
	return n, err
}

func (r *ProfileRepository) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.Write(ctx).Model(&UserProfileEntity{}).
		Where("role = ? AND is_active = ?", string(model.RoleAdmin), true).
		Count(&n).Error
	return n, err
}

func (r *ProfileRepository) List(ctx context.Context, role *model.Role) ([]model.UserProfile, error) {
	q := r.Read(ctx).Order("email")
	if role != nil {
		q = q.Where("role = ?", string(*role))
	}
	var entities []*UserProfileEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]model.UserProfile, 0, len(entities))
	for _, e := range entities {
		out = append(out, *toProfileModel(e))
	}
	return out, nil
}
