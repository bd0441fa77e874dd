package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func Customer(t *testing.T, db *gorm.DB, name string, redThresholdDays *int) *repository.CustomerEntity {
	t.Helper()
	e := &repository.CustomerEntity{
		AcumaticaID:      "C-" + uuid.NewString()[:8],
		Name:             name,
		Email:            "ap@" + uuid.NewString()[:6] + ".test",
		RedThresholdDays: redThresholdDays,
		IsActive:         true,
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

// Invoice stores an open invoice whose balance equals its amount.
func Invoice(t *testing.T, db *gorm.DB, c *repository.CustomerEntity, ref string, balance int64, due time.Time, color string) *repository.InvoiceEntity {
	t.Helper()
	e := &repository.InvoiceEntity{
		ReferenceNumber: ref,
		Amount:          decimal.NewFromInt(balance),
		Balance:         decimal.NewFromInt(balance),
		DueDate:         &due,
		CustomerID:      &c.ID,
		CustomerName:    c.Name,
	}
	if color != "" {
		e.ColorStatus = &color
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

func FunctionCredential(t *testing.T, db *gorm.DB, function, token string) {
	t.Helper()
	require.NoError(t, db.Create(&repository.FunctionCredentialEntity{
		FunctionName: function,
		Token:        token,
	}).Error)
}

func Ptr[T any](v T) *T {
	return &v
}
