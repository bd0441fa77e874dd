package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	gateway "github.com/nimasrn/ar-collections/internal/gateways"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

func ret[T any](args mock.Arguments, i int) T {
	var zero T
	if v := args.Get(i); v != nil {
		return v.(T)
	}
	return zero
}

type MockActivityRecorder struct {
	mock.Mock
}

func (m *MockActivityRecorder) Log(ctx context.Context, entry model.UserActivityLog) {
	m.Called(ctx, entry)
}

type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) Append(ctx context.Context, l *model.UserActivityLog) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockActivityRepository) List(ctx context.Context, f model.ActivityFilter) (model.Page[model.UserActivityLog], error) {
	args := m.Called(ctx, f)
	return ret[model.Page[model.UserActivityLog]](args, 0), args.Error(1)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	args := m.Called(ctx, id)
	return ret[*model.Invoice](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) GetByReference(ctx context.Context, raw string) (*model.Invoice, error) {
	args := m.Called(ctx, raw)
	return ret[*model.Invoice](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Invoice, error) {
	args := m.Called(ctx, ids)
	return ret[[]model.Invoice](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) Search(ctx context.Context, f model.InvoiceFilter, now time.Time) (model.Page[model.Invoice], error) {
	args := m.Called(ctx, f, now)
	return ret[model.Page[model.Invoice]](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) ListBrokenPromises(ctx context.Context, now time.Time, limit, offset int) (model.Page[model.Invoice], error) {
	args := m.Called(ctx, now, limit, offset)
	return ret[model.Page[model.Invoice]](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) UpdateColorStatus(ctx context.Context, id uuid.UUID, status, actor, reason string, lock *bool) (*model.Invoice, error) {
	args := m.Called(ctx, id, status, actor, reason, lock)
	return ret[*model.Invoice](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) SetPromise(ctx context.Context, id uuid.UUID, date *time.Time, actor string) (*model.Invoice, error) {
	args := m.Called(ctx, id, date, actor)
	return ret[*model.Invoice](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) StatusHistory(ctx context.Context, id uuid.UUID) ([]model.InvoiceStatusChange, error) {
	args := m.Called(ctx, id)
	return ret[[]model.InvoiceStatusChange](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) AutoRedCandidates(ctx context.Context, now time.Time) ([]model.AutoRedCandidate, error) {
	args := m.Called(ctx, now)
	return ret[[]model.AutoRedCandidate](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) EscalateToRed(ctx context.Context, id uuid.UUID, actor, reason string) (bool, error) {
	args := m.Called(ctx, id, actor, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) UnticketedOverdue(ctx context.Context, minBalance decimal.Decimal, dueBefore time.Time) ([]model.Invoice, error) {
	args := m.Called(ctx, minBalance, dueBefore)
	return ret[[]model.Invoice](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) Upsert(ctx context.Context, inv *model.Invoice) (model.UpsertResult, error) {
	args := m.Called(ctx, inv)
	return ret[model.UpsertResult](args, 0), args.Error(1)
}

func (m *MockInvoiceRepository) BackfillCustomerNames(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return ret[int64](args, 0), args.Error(1)
}

type MockColorStatusRepository struct {
	mock.Mock
}

func (m *MockColorStatusRepository) List(ctx context.Context) ([]model.ColorStatusOption, error) {
	args := m.Called(ctx)
	return ret[[]model.ColorStatusOption](args, 0), args.Error(1)
}

func (m *MockColorStatusRepository) Exists(ctx context.Context, value string) (bool, error) {
	args := m.Called(ctx, value)
	return args.Bool(0), args.Error(1)
}

func (m *MockColorStatusRepository) Create(ctx context.Context, opt model.ColorStatusOption) (*model.ColorStatusOption, error) {
	args := m.Called(ctx, opt)
	return ret[*model.ColorStatusOption](args, 0), args.Error(1)
}

type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) Create(ctx context.Context, tc model.TicketCreate) (*model.Ticket, error) {
	args := m.Called(ctx, tc)
	return ret[*model.Ticket](args, 0), args.Error(1)
}

func (m *MockTicketRepository) Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	args := m.Called(ctx, id)
	return ret[*model.Ticket](args, 0), args.Error(1)
}

func (m *MockTicketRepository) List(ctx context.Context, f model.TicketFilter) (model.Page[model.Ticket], error) {
	args := m.Called(ctx, f)
	return ret[model.Page[model.Ticket]](args, 0), args.Error(1)
}

func (m *MockTicketRepository) Assign(ctx context.Context, id uuid.UUID, collectorID *uuid.UUID, by string) error {
	return m.Called(ctx, id, collectorID, by).Error(0)
}

func (m *MockTicketRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.TicketStatus) error {
	return m.Called(ctx, id, from, to).Error(0)
}

func (m *MockTicketRepository) SetPromise(ctx context.Context, id uuid.UUID, date *time.Time, amount *decimal.Decimal) error {
	return m.Called(ctx, id, date, amount).Error(0)
}

func (m *MockTicketRepository) AddInvoices(ctx context.Context, id uuid.UUID, invoiceIDs []uuid.UUID) (int, error) {
	args := m.Called(ctx, id, invoiceIDs)
	return args.Int(0), args.Error(1)
}

func (m *MockTicketRepository) Merge(ctx context.Context, targetID uuid.UUID, sourceIDs []uuid.UUID, actor string) error {
	return m.Called(ctx, targetID, sourceIDs, actor).Error(0)
}

func (m *MockTicketRepository) MergeEvents(ctx context.Context, targetID uuid.UUID) ([]model.TicketMergeEvent, error) {
	args := m.Called(ctx, targetID)
	return ret[[]model.TicketMergeEvent](args, 0), args.Error(1)
}

func (m *MockTicketRepository) AppendActivity(ctx context.Context, a model.TicketActivity) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockTicketRepository) Activity(ctx context.Context, ticketID uuid.UUID) ([]model.TicketActivity, error) {
	args := m.Called(ctx, ticketID)
	return ret[[]model.TicketActivity](args, 0), args.Error(1)
}

func (m *MockTicketRepository) BrokenPromiseCandidates(ctx context.Context, now time.Time) ([]model.Ticket, error) {
	args := m.Called(ctx, now)
	return ret[[]model.Ticket](args, 0), args.Error(1)
}

// WithinTransaction runs fn inline, there is no database behind the mock.
func (m *MockTicketRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type MockAutoTicketRuleRepository struct {
	mock.Mock
}

func (m *MockAutoTicketRuleRepository) List(ctx context.Context, onlyEnabled bool) ([]model.AutoTicketRule, error) {
	args := m.Called(ctx, onlyEnabled)
	return ret[[]model.AutoTicketRule](args, 0), args.Error(1)
}

func (m *MockAutoTicketRuleRepository) Create(ctx context.Context, rule model.AutoTicketRule) (*model.AutoTicketRule, error) {
	args := m.Called(ctx, rule)
	return ret[*model.AutoTicketRule](args, 0), args.Error(1)
}

func (m *MockAutoTicketRuleRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return m.Called(ctx, id, enabled).Error(0)
}

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) Get(ctx context.Context, id uuid.UUID) (*model.UserProfile, error) {
	args := m.Called(ctx, id)
	return ret[*model.UserProfile](args, 0), args.Error(1)
}

func (m *MockProfileRepository) GetByAuthID(ctx context.Context, authUserID string) (*model.UserProfile, error) {
	args := m.Called(ctx, authUserID)
	return ret[*model.UserProfile](args, 0), args.Error(1)
}

func (m *MockProfileRepository) GetByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	args := m.Called(ctx, email)
	return ret[*model.UserProfile](args, 0), args.Error(1)
}

func (m *MockProfileRepository) Create(ctx context.Context, p *model.UserProfile) (*model.UserProfile, error) {
	args := m.Called(ctx, p)
	return ret[*model.UserProfile](args, 0), args.Error(1)
}

func (m *MockProfileRepository) LinkAuthID(ctx context.Context, id uuid.UUID, authUserID, fullName string) error {
	return m.Called(ctx, id, authUserID, fullName).Error(0)
}

func (m *MockProfileRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role, approvedBy *uuid.UUID) error {
	return m.Called(ctx, id, role, approvedBy).Error(0)
}

func (m *MockProfileRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *MockProfileRepository) LockForSignup(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockProfileRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return ret[int64](args, 0), args.Error(1)
}

func (m *MockProfileRepository) CountAdmins(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return ret[int64](args, 0), args.Error(1)
}

func (m *MockProfileRepository) List(ctx context.Context, role *model.Role) ([]model.UserProfile, error) {
	args := m.Called(ctx, role)
	return ret[[]model.UserProfile](args, 0), args.Error(1)
}

func (m *MockProfileRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type MockScheduledEmailRepository struct {
	mock.Mock
}

func (m *MockScheduledEmailRepository) Enqueue(ctx context.Context, e *model.ScheduledEmail) (*model.ScheduledEmail, bool, error) {
	args := m.Called(ctx, e)
	return ret[*model.ScheduledEmail](args, 0), args.Bool(1), args.Error(2)
}

func (m *MockScheduledEmailRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledEmail, error) {
	args := m.Called(ctx, now, limit)
	return ret[[]model.ScheduledEmail](args, 0), args.Error(1)
}

func (m *MockScheduledEmailRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retry bool) error {
	return m.Called(ctx, id, reason, retry).Error(0)
}

func (m *MockScheduledEmailRepository) List(ctx context.Context, f model.EmailFilter) (model.Page[model.ScheduledEmail], error) {
	args := m.Called(ctx, f)
	return ret[model.Page[model.ScheduledEmail]](args, 0), args.Error(1)
}

type MockReminderRepository struct {
	mock.Mock
}

func (m *MockReminderRepository) Create(ctx context.Context, r *model.Reminder) (*model.Reminder, error) {
	args := m.Called(ctx, r)
	return ret[*model.Reminder](args, 0), args.Error(1)
}

func (m *MockReminderRepository) ListByUser(ctx context.Context, userID uuid.UUID, includeCompleted bool) ([]model.Reminder, error) {
	args := m.Called(ctx, userID, includeCompleted)
	return ret[[]model.Reminder](args, 0), args.Error(1)
}

func (m *MockReminderRepository) Complete(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, userID, at).Error(0)
}

func (m *MockReminderRepository) Due(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	args := m.Called(ctx, now, limit)
	return ret[[]model.Reminder](args, 0), args.Error(1)
}

func (m *MockReminderRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

type MockLogPruner struct {
	mock.Mock
}

func (m *MockLogPruner) CleanupOlderThan(ctx context.Context, table string, cutoff time.Time, batchSize, maxBatches int) (model.CleanupResult, error) {
	args := m.Called(ctx, table, cutoff, batchSize, maxBatches)
	return ret[model.CleanupResult](args, 0), args.Error(1)
}

type MockMemoRepository struct {
	mock.Mock
}

func (m *MockMemoRepository) Create(ctx context.Context, memo *model.Memo) (*model.Memo, error) {
	args := m.Called(ctx, memo)
	return ret[*model.Memo](args, 0), args.Error(1)
}

func (m *MockMemoRepository) Get(ctx context.Context, id uuid.UUID) (*model.Memo, error) {
	args := m.Called(ctx, id)
	return ret[*model.Memo](args, 0), args.Error(1)
}

func (m *MockMemoRepository) AddAttachment(ctx context.Context, a *model.MemoAttachment) (*model.MemoAttachment, error) {
	args := m.Called(ctx, a)
	return ret[*model.MemoAttachment](args, 0), args.Error(1)
}

func (m *MockMemoRepository) List(ctx context.Context, f model.MemoFilter) (model.Page[model.Memo], error) {
	args := m.Called(ctx, f)
	return ret[model.Page[model.Memo]](args, 0), args.Error(1)
}

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	return m.Called(ctx, key, contentType, body).Error(0)
}

func (m *MockObjectStore) DeleteObject(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockObjectStore) DownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type MockSyncRunRepository struct {
	mock.Mock
}

func (m *MockSyncRunRepository) StartRun(ctx context.Context, run *model.SyncRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockSyncRunRepository) FinishRun(ctx context.Context, run *model.SyncRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockSyncRunRepository) LastSuccessfulRun(ctx context.Context) (*model.SyncRun, error) {
	args := m.Called(ctx)
	return ret[*model.SyncRun](args, 0), args.Error(1)
}

func (m *MockSyncRunRepository) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	args := m.Called(ctx, limit)
	return ret[[]model.SyncRun](args, 0), args.Error(1)
}

func (m *MockSyncRunRepository) AppendChanges(ctx context.Context, logs []model.SyncChangeLog) error {
	return m.Called(ctx, logs).Error(0)
}

func (m *MockSyncRunRepository) ChangesForRun(ctx context.Context, runID string) ([]model.SyncChangeLog, error) {
	args := m.Called(ctx, runID)
	return ret[[]model.SyncChangeLog](args, 0), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Upsert(ctx context.Context, c *model.Customer) (model.UpsertResult, error) {
	args := m.Called(ctx, c)
	return ret[model.UpsertResult](args, 0), args.Error(1)
}

func (m *MockCustomerRepository) GetByAcumaticaID(ctx context.Context, acumaticaID string) (*model.Customer, error) {
	args := m.Called(ctx, acumaticaID)
	return ret[*model.Customer](args, 0), args.Error(1)
}

func (m *MockCustomerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	args := m.Called(ctx, id)
	return ret[*model.Customer](args, 0), args.Error(1)
}

func (m *MockCustomerRepository) SetRedThreshold(ctx context.Context, id uuid.UUID, days *int) error {
	return m.Called(ctx, id, days).Error(0)
}

func (m *MockCustomerRepository) Summaries(ctx context.Context, f model.CustomerSummaryFilter, now time.Time) (model.Page[model.CustomerSummary], error) {
	args := m.Called(ctx, f, now)
	return ret[model.Page[model.CustomerSummary]](args, 0), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Upsert(ctx context.Context, p *model.Payment) (model.UpsertResult, error) {
	args := m.Called(ctx, p)
	return ret[model.UpsertResult](args, 0), args.Error(1)
}

func (m *MockPaymentRepository) UpsertApplication(ctx context.Context, app model.PaymentApplication) error {
	return m.Called(ctx, app).Error(0)
}

// fakeERP serves canned records and remembers the since it was asked for.
type fakeERP struct {
	customers []gateway.ERPCustomer
	invoices  []gateway.ERPInvoice
	payments  []gateway.ERPPayment
	err       error
	since     []time.Time
}

func (f *fakeERP) Customers(_ context.Context, since time.Time) ([]gateway.ERPCustomer, error) {
	f.since = append(f.since, since)
	return f.customers, f.err
}

func (f *fakeERP) Invoices(_ context.Context, since time.Time) ([]gateway.ERPInvoice, error) {
	f.since = append(f.since, since)
	return f.invoices, nil
}

func (f *fakeERP) Payments(_ context.Context, since time.Time) ([]gateway.ERPPayment, error) {
	f.since = append(f.since, since)
	return f.payments, nil
}

func testActor(role model.Role) *model.UserProfile {
	return &model.UserProfile{ID: uuid.New(), Email: "user@example.com", Role: role, IsActive: true}
}
