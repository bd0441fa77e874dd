package repository

import (
	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
)

type UserActivityLogEntity struct {
	pg.Model
	UserID     *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	Action     string     `gorm:"column:action;not null"`
	EntityType string     `gorm:"column:entity_type;not null"`
	EntityID   string     `gorm:"column:entity_id;not null"`
	Method     string     `gorm:"column:method;not null"`
	Path       string     `gorm:"column:path;not null"`
	StatusCode int        `gorm:"column:status_code;not null"`
	IPAddress  string     `gorm:"column:ip_address;not null"`
	Details    string     `gorm:"column:details;not null"`
}

func (UserActivityLogEntity) TableName() string {
	return "user_activity_logs"
}

func toActivityEntity(m *model.UserActivityLog) *UserActivityLogEntity {
	return &UserActivityLogEntity{
		UserID:     m.UserID,
		Action:     m.Action,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Method:     m.Method,
		Path:       m.Path,
		StatusCode: m.StatusCode,
		IPAddress:  m.IPAddress,
		Details:    m.Details,
	}
}

func toActivityModel(e *UserActivityLogEntity) model.UserActivityLog {
	return model.UserActivityLog{
		ID:         e.ID,
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Method:     e.Method,
		Path:       e.Path,
		StatusCode: e.StatusCode,
		IPAddress:  e.IPAddress,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt,
	}
}
