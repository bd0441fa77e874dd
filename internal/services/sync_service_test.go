package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	gateway "github.com/nimasrn/ar-collections/internal/gateways"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/nimasrn/ar-collections/pkg/redis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func decodeERP[T any](t *testing.T, raw string) []T {
	t.Helper()
	var out []T
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

type syncMocks struct {
	erp       *fakeERP
	runs      *MockSyncRunRepository
	customers *MockCustomerRepository
	invoices  *MockInvoiceRepository
	payments  *MockPaymentRepository
}

func newTestSyncService(t *testing.T) (*SyncService, *syncMocks) {
	m := &syncMocks{
		erp:       &fakeERP{},
		runs:      new(MockSyncRunRepository),
		customers: new(MockCustomerRepository),
		invoices:  new(MockInvoiceRepository),
		payments:  new(MockPaymentRepository),
	}
	s := NewSyncService(m.erp, m.runs, m.customers, m.invoices, m.payments, nil, SyncConfig{InitialSince: 24 * time.Hour})
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, m
}

func TestSyncService_Run(t *testing.T) {
	ctx := context.Background()
	s, m := newTestSyncService(t)

	m.erp.customers = decodeERP[gateway.ERPCustomer](t, `[
		{"CustomerID":{"value":"C001"},"CustomerName":{"value":"Acme"},"Status":{"value":"Active"}}
	]`)
	m.erp.invoices = decodeERP[gateway.ERPInvoice](t, `[
		{"ReferenceNbr":{"value":"INV-1234"},"CustomerID":{"value":"C001"},"Amount":{"value":100},"Balance":{"value":40}},
		{"ReferenceNbr":{"value":"1234567"},"CustomerID":{"value":"C001"}},
		{"ReferenceNbr":{"value":"000077"},"CustomerID":{"value":"C404"},"Amount":{"value":5},"Balance":{"value":5}}
	]`)
	m.erp.payments = decodeERP[gateway.ERPPayment](t, `[
		{"Type":{"value":"Payment"},"ReferenceNbr":{"value":"P1"},"CustomerID":{"value":"C001"},"PaymentAmount":{"value":60},
		 "ApplicationHistory":[{"AdjustedRefNbr":{"value":"001234"},"AmountPaid":{"value":60}},{"AdjustedRefNbr":{"value":"999999"},"AmountPaid":{"value":1}}]}
	]`)

	last := time.Date(2024, 3, 15, 11, 45, 0, 0, time.UTC)
	customerID, paymentID, invoiceID := uuid.New(), uuid.New(), uuid.New()

	m.runs.On("LastSuccessfulRun", ctx).Return(&model.SyncRun{StartedAt: last}, nil)
	m.runs.On("StartRun", ctx, mock.AnythingOfType("*model.SyncRun")).Return(nil)
	m.customers.On("Upsert", ctx, mock.MatchedBy(func(c *model.Customer) bool { return c.AcumaticaID == "C001" })).
		Return(model.UpsertResult{ID: customerID, Created: true, Changed: true}, nil)
	m.customers.On("GetByAcumaticaID", ctx, "C404").Return(nil, repository.ErrCustomerNotFound)
	m.invoices.On("Upsert", ctx, mock.MatchedBy(func(inv *model.Invoice) bool {
		return inv.ReferenceNumber == "001234" && *inv.CustomerID == customerID && inv.Balance.Equal(decimal.NewFromInt(40))
	})).Return(model.UpsertResult{ID: invoiceID, Changed: true, Changes: map[string]any{"balance": "40"}}, nil)
	m.invoices.On("Upsert", ctx, mock.MatchedBy(func(inv *model.Invoice) bool {
		return inv.ReferenceNumber == "000077" && inv.CustomerID == nil
	})).Return(model.UpsertResult{ID: uuid.New()}, nil)
	m.payments.On("Upsert", ctx, mock.MatchedBy(func(p *model.Payment) bool {
		return p.AcumaticaID == "Payment:P1" && *p.CustomerID == customerID
	})).Return(model.UpsertResult{ID: paymentID, Created: true, Changed: true}, nil)
	m.invoices.On("GetByReference", ctx, "001234").Return(&model.Invoice{ID: invoiceID, ReferenceNumber: "001234"}, nil)
	m.invoices.On("GetByReference", ctx, "999999").Return(nil, repository.ErrInvoiceNotFound)
	m.payments.On("UpsertApplication", ctx, mock.MatchedBy(func(a model.PaymentApplication) bool {
		return a.PaymentID == paymentID && a.InvoiceID == invoiceID && a.AmountApplied.Equal(decimal.NewFromInt(60))
	})).Return(nil)
	m.invoices.On("BackfillCustomerNames", ctx).Return(int64(2), nil)

	var changes []model.SyncChangeLog
	m.runs.On("AppendChanges", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		changes = args.Get(1).([]model.SyncChangeLog)
	}).Return(nil)
	var finished *model.SyncRun
	m.runs.On("FinishRun", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		finished = args.Get(1).(*model.SyncRun)
	}).Return(nil)

	run, err := s.Run(ctx)
	require.NoError(t, err)

	for _, since := range m.erp.since {
		assert.Equal(t, last, since)
	}
	assert.Len(t, run.ID, 26)
	assert.Equal(t, model.SyncSucceeded, finished.Status)
	assert.Equal(t, 1, finished.CustomersCount)
	assert.Equal(t, 2, finished.InvoicesCount)
	assert.Equal(t, 1, finished.PaymentsCount)

	// customer insert, invoice update, payment insert, application
	require.Len(t, changes, 4)
	assert.Equal(t, model.SyncEntityCustomer, changes[0].EntityType)
	assert.Equal(t, model.SyncInsert, changes[0].Action)
	assert.Equal(t, "001234", changes[1].EntityKey)
	assert.Equal(t, model.SyncUpdate, changes[1].Action)
	assert.JSONEq(t, `{"balance":"40"}`, changes[1].Changes)
	assert.Equal(t, "Payment:P1", changes[2].EntityKey)
	assert.Equal(t, "Payment:P1/001234", changes[3].EntityKey)
	assert.Equal(t, 4, finished.ChangesCount)
	m.payments.AssertExpectations(t)
}

func TestSyncService_FirstRunAndFailure(t *testing.T) {
	ctx := context.Background()
	s, m := newTestSyncService(t)
	m.erp.err = errors.New("erp unavailable")

	m.runs.On("LastSuccessfulRun", ctx).Return(nil, repository.ErrNoSuccessfulRun)
	m.runs.On("StartRun", ctx, mock.Anything).Return(nil)
	m.runs.On("AppendChanges", mock.Anything, mock.Anything).Return(nil)
	var finished *model.SyncRun
	m.runs.On("FinishRun", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		finished = args.Get(1).(*model.SyncRun)
	}).Return(nil)

	run, err := s.Run(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "erp unavailable")
	require.NotNil(t, run)
	assert.Equal(t, model.SyncFailed, finished.Status)
	assert.Contains(t, finished.Error, "customers: erp unavailable")
	require.Len(t, m.erp.since, 1)
	assert.Equal(t, s.now().Add(-24*time.Hour), m.erp.since[0])
}

type lockerStub struct {
	err error
}

func (l lockerStub) TryLock(context.Context, string, time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

func TestSyncService_RunWhileLocked(t *testing.T) {
	s, _ := newTestSyncService(t)
	s.locker = lockerStub{err: redis.ErrLockNotObtained}

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
}
