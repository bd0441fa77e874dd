package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestProfileService() (*ProfileService, *MockProfileRepository) {
	profiles := new(MockProfileRepository)
	activity := new(MockActivityRecorder)
	activity.On("Log", mock.Anything, mock.Anything).Maybe()
	s := NewProfileService(profiles, activity)
	s.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }
	return s, profiles
}

func TestProfileService_HandleNewUser(t *testing.T) {
	ctx := context.Background()
	u := model.NewUser{AuthUserID: "auth-1", Email: " Jane@Example.com ", FullName: "Jane"}

	t.Run("first user becomes an approved admin", func(t *testing.T) {
		s, profiles := newTestProfileService()
		profiles.On("GetByAuthID", ctx, "auth-1").Return(nil, repository.ErrProfileNotFound)
		profiles.On("GetByEmail", ctx, "jane@example.com").Return(nil, repository.ErrProfileNotFound)
		profiles.On("LockForSignup", ctx).Return(nil)
		profiles.On("Count", ctx).Return(int64(0), nil)
		profiles.On("Create", ctx, mock.MatchedBy(func(p *model.UserProfile) bool {
			return p.Role == model.RoleAdmin && p.ApprovedAt != nil && *p.AuthUserID == "auth-1" && p.Email == "jane@example.com"
		})).Return(&model.UserProfile{ID: uuid.New(), Role: model.RoleAdmin}, nil)

		p, err := s.HandleNewUser(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, p.Role)
	})

	t.Run("later users start pending", func(t *testing.T) {
		s, profiles := newTestProfileService()
		profiles.On("GetByAuthID", ctx, "auth-1").Return(nil, repository.ErrProfileNotFound)
		profiles.On("GetByEmail", ctx, "jane@example.com").Return(nil, repository.ErrProfileNotFound)
		profiles.On("LockForSignup", ctx).Return(nil)
		profiles.On("Count", ctx).Return(int64(4), nil)
		profiles.On("Create", ctx, mock.MatchedBy(func(p *model.UserProfile) bool {
			return p.Role == model.RolePending && p.ApprovedAt == nil
		})).Return(&model.UserProfile{ID: uuid.New(), Role: model.RolePending}, nil)

		p, err := s.HandleNewUser(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, model.RolePending, p.Role)
	})

	t.Run("repeated call is idempotent", func(t *testing.T) {
		s, profiles := newTestProfileService()
		existing := &model.UserProfile{ID: uuid.New(), Role: model.RoleCollector}
		profiles.On("GetByAuthID", ctx, "auth-1").Return(existing, nil)

		p, err := s.HandleNewUser(ctx, u)
		require.NoError(t, err)
		assert.Same(t, existing, p)
		profiles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("invited profile is linked", func(t *testing.T) {
		s, profiles := newTestProfileService()
		invited := &model.UserProfile{ID: uuid.New(), Email: "jane@example.com", Role: model.RoleManager}
		profiles.On("GetByAuthID", ctx, "auth-1").Return(nil, repository.ErrProfileNotFound)
		profiles.On("GetByEmail", ctx, "jane@example.com").Return(invited, nil)
		profiles.On("LinkAuthID", ctx, invited.ID, "auth-1", "Jane").Return(nil)
		profiles.On("Get", ctx, invited.ID).Return(invited, nil)

		p, err := s.HandleNewUser(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, model.RoleManager, p.Role)
	})

	t.Run("count waits for the signup lock", func(t *testing.T) {
		s, profiles := newTestProfileService()
		profiles.On("GetByAuthID", ctx, "auth-1").Return(nil, repository.ErrProfileNotFound)
		profiles.On("GetByEmail", ctx, "jane@example.com").Return(nil, repository.ErrProfileNotFound)
		profiles.On("LockForSignup", ctx).Return(errors.New("lock timeout"))

		_, err := s.HandleNewUser(ctx, u)
		assert.ErrorContains(t, err, "lock timeout")
		profiles.AssertNotCalled(t, "Count", mock.Anything)
		profiles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("email bound to another account", func(t *testing.T) {
		s, profiles := newTestProfileService()
		other := "auth-2"
		profiles.On("GetByAuthID", ctx, "auth-1").Return(nil, repository.ErrProfileNotFound)
		profiles.On("GetByEmail", ctx, "jane@example.com").Return(&model.UserProfile{ID: uuid.New(), AuthUserID: &other}, nil)

		_, err := s.HandleNewUser(ctx, u)
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestProfileService_ChangeRoleGuardsLastAdmin(t *testing.T) {
	ctx := context.Background()
	s, profiles := newTestProfileService()
	actor := testActor(model.RoleAdmin)
	admin := &model.UserProfile{ID: actor.ID, Role: model.RoleAdmin, IsActive: true, ApprovedBy: &actor.ID}

	profiles.On("Get", ctx, admin.ID).Return(admin, nil)
	profiles.On("CountAdmins", ctx).Return(int64(1), nil).Once()

	_, err := s.ChangeRole(ctx, actor, admin.ID, model.RoleManager)
	assert.ErrorIs(t, err, ErrLastAdmin)

	profiles.On("CountAdmins", ctx).Return(int64(2), nil).Once()
	profiles.On("UpdateRole", ctx, admin.ID, model.RoleManager, (*uuid.UUID)(nil)).Return(nil)
	_, err = s.ChangeRole(ctx, actor, admin.ID, model.RoleManager)
	require.NoError(t, err)

	_, err = s.ChangeRole(ctx, actor, admin.ID, model.Role("owner"))
	assert.ErrorIs(t, err, model.ErrInvalidRole)
}

func TestProfileService_Approve(t *testing.T) {
	ctx := context.Background()
	s, profiles := newTestProfileService()
	actor := testActor(model.RoleAdmin)
	pending := &model.UserProfile{ID: uuid.New(), Role: model.RolePending}
	approved := &model.UserProfile{ID: uuid.New(), Role: model.RoleViewer}

	profiles.On("Get", ctx, pending.ID).Return(pending, nil).Once()
	profiles.On("UpdateRole", ctx, pending.ID, model.RoleCollector, &actor.ID).Return(nil)
	profiles.On("Get", ctx, pending.ID).Return(&model.UserProfile{ID: pending.ID, Role: model.RoleCollector}, nil).Once()
	profiles.On("Get", ctx, approved.ID).Return(approved, nil)

	p, err := s.Approve(ctx, actor, pending.ID, model.RoleCollector)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCollector, p.Role)

	_, err = s.Approve(ctx, actor, approved.ID, model.RoleCollector)
	assert.ErrorIs(t, err, ErrAlreadyApproved)

	_, err = s.Approve(ctx, actor, pending.ID, model.RolePending)
	assert.ErrorIs(t, err, model.ErrInvalidRole)
}

func TestProfileService_DeactivateLastAdmin(t *testing.T) {
	ctx := context.Background()
	s, profiles := newTestProfileService()
	admin := &model.UserProfile{ID: uuid.New(), Role: model.RoleAdmin, IsActive: true}
	profiles.On("Get", ctx, admin.ID).Return(admin, nil)
	profiles.On("CountAdmins", ctx).Return(int64(1), nil)

	err := s.SetActive(ctx, testActor(model.RoleAdmin), admin.ID, false)
	assert.ErrorIs(t, err, ErrLastAdmin)
	profiles.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything)
}
