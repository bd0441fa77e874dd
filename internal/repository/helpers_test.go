package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: pg.NowUTC,
	})
	require.NoError(t, err)

	// every new connection would get its own empty in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(AllEntities()...))
	require.NoError(t, SeedColorStatuses(db))

	return &testDB{
		DB:    pg.New(db, db),
		rawDB: db,
	}
}

func ptr[T any](v T) *T {
	return &v
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func (tdb *testDB) customer(t *testing.T, name string, threshold *int) *CustomerEntity {
	t.Helper()
	e := &CustomerEntity{
		AcumaticaID:      "C-" + uuid.NewString()[:8],
		Name:             name,
		RedThresholdDays: threshold,
		IsActive:         true,
	}
	require.NoError(t, tdb.rawDB.Create(e).Error)
	return e
}

func (tdb *testDB) invoice(t *testing.T, ref string, c *CustomerEntity, balance int64, due time.Time, color string) *InvoiceEntity {
	t.Helper()
	e := &InvoiceEntity{
		ReferenceNumber: ref,
		Amount:          decimal.NewFromInt(balance),
		Balance:         decimal.NewFromInt(balance),
		DueDate:         &due,
		ColorStatus:     nullableString(color),
	}
	if c != nil {
		e.CustomerID = &c.ID
		e.CustomerName = c.Name
	}
	require.NoError(t, tdb.rawDB.Create(e).Error)
	return e
}
