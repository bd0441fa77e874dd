package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/nimasrn/ar-collections/pkg/logger"
)

type ProfileRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.UserProfile, error)
	GetByAuthID(ctx context.Context, authUserID string) (*model.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*model.UserProfile, error)
	Create(ctx context.Context, p *model.UserProfile) (*model.UserProfile, error)
	LinkAuthID(ctx context.Context, id uuid.UUID, authUserID, fullName string) error
	UpdateRole(ctx context.Context, id uuid.UUID, role model.Role, approvedBy *uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	LockForSignup(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	CountAdmins(ctx context.Context) (int64, error)
	List(ctx context.Context, role *model.Role) ([]model.UserProfile, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProfileService struct {
	profiles ProfileRepository
	activity ActivityRecorder
	now      func() time.Time
}

func NewProfileService(profiles ProfileRepository, activity ActivityRecorder) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		activity: recorderOrNoop(activity),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleNewUser provisions the profile of a user who signed up with the
// identity provider. Calling it again for the same auth id returns the
// existing profile. An invited profile with the same email is linked instead
// of creating a new one; the very first user becomes an approved admin and
// everyone else starts pending.
func (s *ProfileService) HandleNewUser(ctx context.Context, u model.NewUser) (*model.UserProfile, error) {
	u.AuthUserID = strings.TrimSpace(u.AuthUserID)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.AuthUserID == "" || u.Email == "" {
		return nil, fmt.Errorf("%w: auth user id and email are required", ErrInvalidRequest)
	}

	var profile *model.UserProfile
	err := s.profiles.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.profiles.GetByAuthID(ctx, u.AuthUserID)
		if err == nil {
			profile = existing
			return nil
		}
		if !errors.Is(err, repository.ErrProfileNotFound) {
			return err
		}

		invited, err := s.profiles.GetByEmail(ctx, u.Email)
		switch {
		case err == nil:
			if invited.AuthUserID != nil && *invited.AuthUserID != u.AuthUserID {
				return ErrEmailTaken
			}
			if err := s.profiles.LinkAuthID(ctx, invited.ID, u.AuthUserID, u.FullName); err != nil {
				return err
			}
			profile, err = s.profiles.Get(ctx, invited.ID)
			return err
		case !errors.Is(err, repository.ErrProfileNotFound):
			return err
		}

		if err := s.profiles.LockForSignup(ctx); err != nil {
			return err
		}
		count, err := s.profiles.Count(ctx)
		if err != nil {
			return err
		}
		authID := u.AuthUserID
		p := &model.UserProfile{
			AuthUserID: &authID,
			Email:      u.Email,
			FullName:   u.FullName,
			Role:       model.RolePending,
			IsActive:   true,
		}
		if count == 0 {
			now := s.now()
			p.Role = model.RoleAdmin
			p.ApprovedAt = &now
		}
		profile, err = s.profiles.Create(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("user profile ready", "profile_id", profile.ID, "role", profile.Role)
	return profile, nil
}

// Invite pre-creates a profile for an email so the user's first signup is
// linked to it with the given role.
func (s *ProfileService) Invite(ctx context.Context, actor *model.UserProfile, email, fullName string, role model.Role) (*model.UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidRequest)
	}
	if !role.Valid() {
		return nil, model.ErrInvalidRole
	}
	if _, err := s.profiles.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, err
	}

	p := &model.UserProfile{Email: email, FullName: strings.TrimSpace(fullName), Role: role, IsActive: true}
	if role != model.RolePending {
		now := s.now()
		approver := actor.ID
		p.ApprovedBy = &approver
		p.ApprovedAt = &now
	}
	created, err := s.profiles.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, userActivity(actor, "profile.invite", "profile", created.ID.String(), email+" as "+string(role)))
	return created, nil
}

// Approve grants a pending user a working role.
func (s *ProfileService) Approve(ctx context.Context, actor *model.UserProfile, id uuid.UUID, role model.Role) (*model.UserProfile, error) {
	if !role.Valid() || role == model.RolePending {
		return nil, model.ErrInvalidRole
	}
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Role != model.RolePending {
		return nil, ErrAlreadyApproved
	}

	approver := actor.ID
	if err := s.profiles.UpdateRole(ctx, id, role, &approver); err != nil {
		return nil, err
	}
	s.activity.Log(ctx, userActivity(actor, "profile.approve", "profile", id.String(), string(role)))
	return s.profiles.Get(ctx, id)
}

// ChangeRole moves a user to another role. The last active admin keeps theirs.
func (s *ProfileService) ChangeRole(ctx context.Context, actor *model.UserProfile, id uuid.UUID, role model.Role) (*model.UserProfile, error) {
	if !role.Valid() {
		return nil, model.ErrInvalidRole
	}

	var from model.Role
	err := s.profiles.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.profiles.Get(ctx, id)
		if err != nil {
			return err
		}
		from = p.Role
		if p.Role == model.RoleAdmin && role != model.RoleAdmin && p.IsActive {
			if err := s.guardLastAdmin(ctx); err != nil {
				return err
			}
		}
		var approvedBy *uuid.UUID
		if p.ApprovedBy == nil && role != model.RolePending {
			approver := actor.ID
			approvedBy = &approver
		}
		return s.profiles.UpdateRole(ctx, id, role, approvedBy)
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, userActivity(actor, "profile.role", "profile", id.String(), fmt.Sprintf("%s -> %s", from, role)))
	return s.profiles.Get(ctx, id)
}

func (s *ProfileService) SetActive(ctx context.Context, actor *model.UserProfile, id uuid.UUID, active bool) error {
	err := s.profiles.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.profiles.Get(ctx, id)
		if err != nil {
			return err
		}
		if !active && p.IsActive && p.Role == model.RoleAdmin {
			if err := s.guardLastAdmin(ctx); err != nil {
				return err
			}
		}
		return s.profiles.SetActive(ctx, id, active)
	})
	if err != nil {
		return err
	}
	s.activity.Log(ctx, userActivity(actor, "profile.active", "profile", id.String(), fmt.Sprintf("active=%t", active)))
	return nil
}

func (s *ProfileService) guardLastAdmin(ctx context.Context) error {
	admins, err := s.profiles.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}

func (s *ProfileService) Get(ctx context.Context, id uuid.UUID) (*model.UserProfile, error) {
	return s.profiles.Get(ctx, id)
}

func (s *ProfileService) GetByAuthID(ctx context.Context, authUserID string) (*model.UserProfile, error) {
	return s.profiles.GetByAuthID(ctx, authUserID)
}

func (s *ProfileService) List(ctx context.Context, role *model.Role) ([]model.UserProfile, error) {
	return s.profiles.List(ctx, role)
}
