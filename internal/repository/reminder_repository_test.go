package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderRepository(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewReminderRepository(tdb.DB)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	user := uuid.New()

	due, err := repo.Create(ctx, &model.Reminder{UserID: user, Title: "call Acme", RemindAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.Reminder{UserID: user, Title: "call Globex", RemindAt: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.Reminder{UserID: uuid.New(), Title: "someone else", RemindAt: now.Add(-time.Minute)})
	require.NoError(t, err)

	got, err := repo.Due(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, due.ID, got[0].ID)

	require.NoError(t, repo.MarkNotified(ctx, due.ID, now))
	got, err = repo.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	t.Run("complete only by owner", func(t *testing.T) {
		err := repo.Complete(ctx, due.ID, uuid.New(), now)
		assert.ErrorIs(t, err, ErrReminderNotFound)

		require.NoError(t, repo.Complete(ctx, due.ID, user, now))
		open, err := repo.ListByUser(ctx, user, false)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "call Globex", open[0].Title)

		all, err := repo.ListByUser(ctx, user, true)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestMemoRepository(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewMemoRepository(tdb.DB)
	ctx := context.Background()

	c := tdb.customer(t, "Acme", nil)
	memo, err := repo.Create(ctx, &model.Memo{AuthorID: uuid.New(), CustomerID: &c.ID, Body: "left voicemail"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.Memo{AuthorID: uuid.New(), Body: "unrelated"})
	require.NoError(t, err)

	_, err = repo.AddAttachment(ctx, &model.MemoAttachment{
		MemoID:     memo.ID,
		StorageKey: "memos/" + memo.ID.String() + "/call.mp3",
		FileName:   "call.mp3",
		MimeType:   "audio/mpeg",
		SizeBytes:  2048,
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, memo.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "call.mp3", got.Attachments[0].FileName)

	page, err := repo.List(ctx, model.MemoFilter{CustomerID: &c.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Len(t, page.Items[0].Attachments, 1)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrMemoNotFound)
}

func TestActivityRepository(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewActivityRepository(tdb.DB)
	ctx := context.Background()
	user := uuid.New()

	require.NoError(t, repo.Append(ctx, &model.UserActivityLog{UserID: &user, Action: "invoice.color_status", Method: "PATCH", Path: "/api/invoices/x/status", StatusCode: 200}))
	require.NoError(t, repo.Append(ctx, &model.UserActivityLog{UserID: &user, Action: "ticket.create", Method: "POST", Path: "/api/tickets", StatusCode: 201}))
	require.NoError(t, repo.Append(ctx, &model.UserActivityLog{Action: "ticket.create", Method: "POST", Path: "/api/tickets", StatusCode: 201}))

	page, err := repo.List(ctx, model.ActivityFilter{UserID: &user})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = repo.List(ctx, model.ActivityFilter{Action: "ticket.create"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}
