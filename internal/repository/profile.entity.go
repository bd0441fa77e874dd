package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
)

type UserProfileEntity struct {
	pg.Model
	AuthUserID *string    `gorm:"column:auth_user_id;uniqueIndex"`
	Email      string     `gorm:"column:email;not null;uniqueIndex"`
	FullName   string     `gorm:"column:full_name;not null"`
	Role       string     `gorm:"column:role;not null"`
	IsActive   bool       `gorm:"column:is_active;not null"`
	ApprovedBy *uuid.UUID `gorm:"column:approved_by;type:uuid"`
	ApprovedAt *time.Time `gorm:"column:approved_at"`
}

func (UserProfileEntity) TableName() string {
	return "user_profiles"
}

func toProfileModel(e *UserProfileEntity) *model.UserProfile {
	return &model.UserProfile{
		ID:         e.ID,
		AuthUserID: e.AuthUserID,
		Email:      e.Email,
		FullName:   e.FullName,
		Role:       model.Role(e.Role),
		IsActive:   e.IsActive,
		ApprovedBy: e.ApprovedBy,
		ApprovedAt: e.ApprovedAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}
