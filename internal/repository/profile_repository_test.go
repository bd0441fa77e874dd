package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewProfileRepository(tdb.DB)
	ctx := context.Background()

	admin, err := repo.Create(ctx, &model.UserProfile{Email: " Boss@Example.com ", Role: model.RoleAdmin, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "boss@example.com", admin.Email)

	pending, err := repo.Create(ctx, &model.UserProfile{Email: "new@example.com", Role: model.RolePending, IsActive: true})
	require.NoError(t, err)

	t.Run("lookup by email ignores case", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "BOSS@example.COM")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got.ID)

		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrProfileNotFound)
	})

	t.Run("link auth id", func(t *testing.T) {
		require.NoError(t, repo.LinkAuthID(ctx, pending.ID, "auth-123", "New Person"))
		got, err := repo.GetByAuthID(ctx, "auth-123")
		require.NoError(t, err)
		assert.Equal(t, pending.ID, got.ID)
		assert.Equal(t, "New Person", got.FullName)
	})

	t.Run("approve", func(t *testing.T) {
		require.NoError(t, repo.UpdateRole(ctx, pending.ID, model.RoleCollector, &admin.ID))
		got, err := repo.Get(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RoleCollector, got.Role)
		require.NotNil(t, got.ApprovedBy)
		assert.Equal(t, admin.ID, *got.ApprovedBy)
		assert.NotNil(t, got.ApprovedAt)
	})

	t.Run("counts", func(t *testing.T) {
		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		admins, err := repo.CountAdmins(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), admins)

		require.NoError(t, repo.SetActive(ctx, admin.ID, false))
		admins, err = repo.CountAdmins(ctx)
		require.NoError(t, err)
		assert.Zero(t, admins)
	})

	t.Run("list by role", func(t *testing.T) {
		role := model.RoleCollector
		got, err := repo.List(ctx, &role)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "new@example.com", got[0].Email)
	})

	assert.ErrorIs(t, repo.SetActive(ctx, uuid.New(), true), ErrProfileNotFound)
}
