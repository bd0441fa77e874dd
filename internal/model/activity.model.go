package model

import (
	"time"

	"github.com/google/uuid"
)

type UserActivityLog struct {
	ID         uuid.UUID  `json:"id"`
	UserID     *uuid.UUID `json:"user_id"`
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Method     string     `json:"method"`
	Path       string     `json:"path"`
	StatusCode int        `json:"status_code"`
	IPAddress  string     `json:"ip_address"`
	Details    string     `json:"details"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ActivityFilter struct {
	UserID *uuid.UUID
	Action string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
