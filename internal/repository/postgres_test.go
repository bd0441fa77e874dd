package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockPostgres opens gorm on the postgres dialector over sqlmock so the
// Postgres only SQL paths (ILIKE, row locks) can be asserted.
func newMockPostgres(t *testing.T) (*pg.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return pg.New(db, db), mock
}

func TestInvoiceRepository_Search_Postgres(t *testing.T) {
	db, mock := newMockPostgres(t)
	repo := NewInvoiceRepository(db)
	require.True(t, db.IsPostgres())

	mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices" WHERE .*reference_number ILIKE \$1 ESCAPE .* OR customer_name ILIKE \$2 ESCAPE .* OR description ILIKE \$3 ESCAPE`).
		WithArgs("%50\\%%", "%50\\%%", "%50\\%%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE .*ILIKE.* ORDER BY due_date ASC,reference_number ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference_number", "balance"}).
			AddRow(uuid.NewString(), "000050", "12.50"))

	page, err := repo.Search(context.Background(), model.InvoiceFilter{Query: "50%"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "000050", page.Items[0].ReferenceNumber)
	assert.Equal(t, "12.5", page.Items[0].Balance.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_EscalateToRed_Postgres(t *testing.T) {
	db, mock := newMockPostgres(t)
	repo := NewInvoiceRepository(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference_number", "balance", "color_status", "status_locked"}).
			AddRow(id.String(), "000001", "10", "yellow", true))
	mock.ExpectExec(`UPDATE "invoices" SET .* WHERE .*status_locked = \$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	changed, err := repo.EscalateToRed(context.Background(), id, model.AutoRedActor, "overdue")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepository_CleanupOlderThan_Postgres(t *testing.T) {
	db, mock := newMockPostgres(t)
	repo := NewSyncRepository(db)
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stmt := regexp.QuoteMeta(`DELETE FROM user_activity_logs WHERE id IN (SELECT id FROM user_activity_logs WHERE created_at < $1 ORDER BY created_at LIMIT $2)`)
	for i := 0; i < 5; i++ {
		mock.ExpectExec(stmt).WithArgs(cutoff, 1000).WillReturnResult(sqlmock.NewResult(0, 1000))
	}

	res, err := repo.CleanupOlderThan(context.Background(), "user_activity_logs", cutoff, 1000, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Deleted)
	assert.Equal(t, 5, res.Batches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_LockForSignup_Postgres(t *testing.T) {
	db, mock := newMockPostgres(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	// outside a transaction the lock would be released immediately
	require.NoError(t, repo.LockForSignup(ctx))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("LOCK TABLE user_profiles IN SHARE ROW EXCLUSIVE MODE")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "user_profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	err := repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := repo.LockForSignup(ctx); err != nil {
			return err
		}
		n, err := repo.Count(ctx)
		assert.Zero(t, n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
