package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleCollector Role = "collector"
	RoleViewer    Role = "viewer"
	RolePending   Role = "pending"
)

var ErrInvalidRole = errors.New("invalid role")

var roleRank = map[Role]int{
	RolePending:   0,
	RoleViewer:    1,
	RoleCollector: 2,
	RoleManager:   3,
	RoleAdmin:     4,
}

// legacy values still found in old tokens and imports
var legacyRoles = map[string]Role{
	"agent": RoleCollector,
	"user":  RoleViewer,
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; ok {
		return r, nil
	}
	if mapped, ok := legacyRoles[s]; ok {
		return mapped, nil
	}
	return "", ErrInvalidRole
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants everything min grants.
func (r Role) AtLeast(min Role) bool {
	return r != RolePending && roleRank[r] >= roleRank[min]
}

type UserProfile struct {
	ID         uuid.UUID  `json:"id"`
	AuthUserID *string    `json:"auth_user_id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Role       Role       `json:"role"`
	IsActive   bool       `json:"is_active"`
	ApprovedBy *uuid.UUID `json:"approved_by"`
	ApprovedAt *time.Time `json:"approved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Actor is the audit name written for changes made by this user.
func (p UserProfile) Actor() string {
	return "user:" + p.ID.String()
}

// NewUser is what the identity provider tells us about a fresh signup.
type NewUser struct {
	AuthUserID string
	Email      string
	FullName   string
}
