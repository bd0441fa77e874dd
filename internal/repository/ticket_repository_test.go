package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRepository_CreateAndGet(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewTicketRepository(tdb.DB)
	ctx := context.Background()

	c := tdb.customer(t, "Acme", nil)
	inv1 := tdb.invoice(t, "000001", c, 100, day("2024-01-01"), "")
	inv2 := tdb.invoice(t, "000002", c, 200, day("2024-02-01"), "")
	collector := uuid.New()

	ticket, err := repo.Create(ctx, model.TicketCreate{
		CustomerID:          &c.ID,
		Title:               "Acme overdue",
		AssignedCollectorID: &collector,
		InvoiceIDs:          []uuid.UUID{inv1.ID, inv2.ID, inv1.ID},
		CreatedBy:           "user:1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TicketOpen, ticket.Status)
	assert.Equal(t, model.PriorityNormal, ticket.Priority)
	assert.NotNil(t, ticket.AssignedAt)
	require.Len(t, ticket.Invoices, 2)
	assert.Equal(t, "000001", ticket.Invoices[0].ReferenceNumber)

	activity, err := repo.Activity(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, model.TicketActionCreated, activity[0].Action)

	added, err := repo.AddInvoices(ctx, ticket.ID, []uuid.UUID{inv2.ID})
	require.NoError(t, err)
	assert.Zero(t, added)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestTicketRepository_UpdateStatus(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewTicketRepository(tdb.DB)
	ctx := context.Background()

	ticket, err := repo.Create(ctx, model.TicketCreate{Title: "t"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, ticket.ID, model.TicketOpen, model.TicketResolved))
	got, err := repo.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketResolved, got.Status)
	assert.NotNil(t, got.ClosedAt)

	// stale from status loses
	err = repo.UpdateStatus(ctx, ticket.ID, model.TicketOpen, model.TicketInProgress)
	assert.ErrorIs(t, err, ErrTicketConflict)

	require.NoError(t, repo.UpdateStatus(ctx, ticket.ID, model.TicketResolved, model.TicketOpen))
	got, err = repo.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ClosedAt)
}

func TestTicketRepository_Merge(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewTicketRepository(tdb.DB)
	ctx := context.Background()

	inv1 := tdb.invoice(t, "000001", nil, 100, day("2024-01-01"), "")
	inv2 := tdb.invoice(t, "000002", nil, 100, day("2024-01-01"), "")
	inv3 := tdb.invoice(t, "000003", nil, 100, day("2024-01-01"), "")

	target, err := repo.Create(ctx, model.TicketCreate{Title: "target", InvoiceIDs: []uuid.UUID{inv1.ID}})
	require.NoError(t, err)
	source, err := repo.Create(ctx, model.TicketCreate{Title: "source", InvoiceIDs: []uuid.UUID{inv1.ID, inv2.ID, inv3.ID}})
	require.NoError(t, err)

	require.NoError(t, repo.Merge(ctx, target.ID, []uuid.UUID{source.ID}, "user:1"))

	got, err := repo.Get(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, got.Invoices, 3)

	src, err := repo.Get(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketMerged, src.Status)
	require.NotNil(t, src.MergedIntoID)
	assert.Equal(t, target.ID, *src.MergedIntoID)

	events, err := repo.MergeEvents(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].InvoiceCount)
	assert.Equal(t, "user:1", events[0].MergedBy)

	t.Run("merged ticket cannot merge again", func(t *testing.T) {
		err := repo.Merge(ctx, target.ID, []uuid.UUID{source.ID}, "user:1")
		assert.ErrorIs(t, err, ErrTicketConflict)
	})

	t.Run("failed merge rolls back", func(t *testing.T) {
		other, err := repo.Create(ctx, model.TicketCreate{Title: "other"})
		require.NoError(t, err)
		err = repo.Merge(ctx, target.ID, []uuid.UUID{other.ID, uuid.New()}, "user:1")
		assert.ErrorIs(t, err, ErrTicketNotFound)

		got, err := repo.Get(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TicketOpen, got.Status)
	})
}

func TestTicketRepository_BrokenPromiseCandidates(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewTicketRepository(tdb.DB)
	ctx := context.Background()

	open := tdb.invoice(t, "000001", nil, 100, day("2024-01-01"), "")
	paid := tdb.invoice(t, "000002", nil, 0, day("2024-01-01"), "")

	promised := func(title string, invoiceID uuid.UUID, promise string) *model.Ticket {
		tk, err := repo.Create(ctx, model.TicketCreate{Title: title, InvoiceIDs: []uuid.UUID{invoiceID}})
		require.NoError(t, err)
		require.NoError(t, repo.SetPromise(ctx, tk.ID, ptr(day(promise)), ptr(decimal.NewFromInt(100))))
		require.NoError(t, repo.UpdateStatus(ctx, tk.ID, model.TicketOpen, model.TicketPromised))
		return tk
	}

	broken := promised("broken", open.ID, "2024-02-01")
	promised("future", open.ID, "2024-04-01")
	promised("paid", paid.ID, "2024-02-01")

	got, err := repo.BrokenPromiseCandidates(ctx, day("2024-03-01"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, broken.ID, got[0].ID)
}

func TestAutoTicketRuleRepository(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewAutoTicketRuleRepository(tdb.DB)
	ctx := context.Background()

	rule, err := repo.Create(ctx, model.AutoTicketRule{
		Name:           "large overdue",
		Enabled:        true,
		MinBalance:     decimal.NewFromInt(1000),
		MinDaysOverdue: 30,
		Priority:       model.PriorityHigh,
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, model.AutoTicketRule{Name: "disabled", Priority: model.PriorityLow})
	require.NoError(t, err)

	enabled, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "large overdue", enabled[0].Name)

	require.NoError(t, repo.SetEnabled(ctx, rule.ID, false))
	enabled, err = repo.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	assert.ErrorIs(t, repo.SetEnabled(ctx, uuid.New(), true), ErrRuleNotFound)
}
