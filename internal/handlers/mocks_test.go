package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

const testSecret = "handler-test-secret"

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
		ctx.Request.Header.SetContentType("application/json")
	}
	return ctx
}

// serve routes one request through a fresh router built by register.
func serve(register func(g *xhttp.Group), ctx *xhttp.RequestCtx, token string) *xhttp.RequestCtx {
	r := xhttp.CreateDefaultRouter()
	register(r.Group("/api/v1"))
	if token != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
	}
	r.Handler(ctx)
	return ctx
}

func decode(t *testing.T, ctx *xhttp.RequestCtx) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out))
	return out
}

func signToken(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		Email: sub + "@acme.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	claims.UserMetadata.FullName = "User " + sub
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

// profilesStub keeps profiles by auth subject; unknown subjects sign up as pending.
type profilesStub struct {
	mu     sync.Mutex
	bySub  map[string]*model.UserProfile
	signup []model.NewUser
}

func newProfilesStub() *profilesStub {
	return &profilesStub{bySub: make(map[string]*model.UserProfile)}
}

func (p *profilesStub) add(sub string, role model.Role, active bool) *model.UserProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := sub
	prof := &model.UserProfile{ID: uuid.New(), AuthUserID: &s, Email: sub + "@acme.test", Role: role, IsActive: active}
	p.bySub[sub] = prof
	return prof
}

func (p *profilesStub) GetByAuthID(_ context.Context, sub string) (*model.UserProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, ok := p.bySub[sub]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return prof, nil
}

func (p *profilesStub) HandleNewUser(_ context.Context, u model.NewUser) (*model.UserProfile, error) {
	p.mu.Lock()
	p.signup = append(p.signup, u)
	p.mu.Unlock()
	prof := p.add(u.AuthUserID, model.RolePending, true)
	prof.FullName = u.FullName
	return prof, nil
}

func newTestAuth(t *testing.T) (*Authenticator, *profilesStub) {
	t.Helper()
	profiles := newProfilesStub()
	a, err := NewAuthenticator(testSecret, "", profiles)
	require.NoError(t, err)
	return a, profiles
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) Search(ctx context.Context, f model.InvoiceFilter) (model.Page[model.Invoice], error) {
	args := m.Called(ctx, f)
	return args.Get(0).(model.Page[model.Invoice]), args.Error(1)
}

func (m *MockInvoiceService) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetByReference(ctx context.Context, ref string) (*model.Invoice, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *MockInvoiceService) BrokenPromises(ctx context.Context, limit, offset int) (model.Page[model.Invoice], error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).(model.Page[model.Invoice]), args.Error(1)
}

func (m *MockInvoiceService) StatusHistory(ctx context.Context, id uuid.UUID) ([]model.InvoiceStatusChange, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.InvoiceStatusChange), args.Error(1)
}

func (m *MockInvoiceService) ChangeColorStatus(ctx context.Context, actor *model.UserProfile, id uuid.UUID, change services.ColorStatusChange) (*model.Invoice, error) {
	args := m.Called(ctx, actor, id, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *MockInvoiceService) SetPromise(ctx context.Context, actor *model.UserProfile, id uuid.UUID, date *time.Time) (*model.Invoice, error) {
	args := m.Called(ctx, actor, id, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ColorStatuses(ctx context.Context) ([]model.ColorStatusOption, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.ColorStatusOption), args.Error(1)
}

func (m *MockInvoiceService) CreateColorStatus(ctx context.Context, actor *model.UserProfile, opt model.ColorStatusOption) (*model.ColorStatusOption, error) {
	args := m.Called(ctx, actor, opt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ColorStatusOption), args.Error(1)
}

type MockTicketService struct {
	mock.Mock
}

func (m *MockTicketService) ticket(args mock.Arguments) (*model.Ticket, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ticket), args.Error(1)
}

func (m *MockTicketService) Create(ctx context.Context, actor *model.UserProfile, in services.CreateTicketInput) (*model.Ticket, error) {
	return m.ticket(m.Called(ctx, actor, in))
}

func (m *MockTicketService) Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	return m.ticket(m.Called(ctx, id))
}

func (m *MockTicketService) List(ctx context.Context, f model.TicketFilter) (model.Page[model.Ticket], error) {
	args := m.Called(ctx, f)
	return args.Get(0).(model.Page[model.Ticket]), args.Error(1)
}

func (m *MockTicketService) Activity(ctx context.Context, id uuid.UUID) ([]model.TicketActivity, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]model.TicketActivity), args.Error(1)
}

func (m *MockTicketService) MergeEvents(ctx context.Context, id uuid.UUID) ([]model.TicketMergeEvent, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]model.TicketMergeEvent), args.Error(1)
}

func (m *MockTicketService) Assign(ctx context.Context, actor *model.UserProfile, id uuid.UUID, collectorID *uuid.UUID) error {
	return m.Called(ctx, actor, id, collectorID).Error(0)
}

func (m *MockTicketService) ChangeStatus(ctx context.Context, actor *model.UserProfile, id uuid.UUID, to model.TicketStatus) (*model.Ticket, error) {
	return m.ticket(m.Called(ctx, actor, id, to))
}

func (m *MockTicketService) SetPromise(ctx context.Context, actor *model.UserProfile, id uuid.UUID, date time.Time, amount *decimal.Decimal) (*model.Ticket, error) {
	return m.ticket(m.Called(ctx, actor, id, date, amount))
}

func (m *MockTicketService) AddNote(ctx context.Context, actor *model.UserProfile, id uuid.UUID, note string) error {
	return m.Called(ctx, actor, id, note).Error(0)
}

func (m *MockTicketService) AddInvoices(ctx context.Context, actor *model.UserProfile, id uuid.UUID, ids []uuid.UUID) (int, error) {
	args := m.Called(ctx, actor, id, ids)
	return args.Int(0), args.Error(1)
}

func (m *MockTicketService) Merge(ctx context.Context, actor *model.UserProfile, target uuid.UUID, sources []uuid.UUID) (*model.Ticket, error) {
	return m.ticket(m.Called(ctx, actor, target, sources))
}

type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) Schedule(ctx context.Context, in services.ScheduleEmailInput) (*model.ScheduledEmail, bool, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*model.ScheduledEmail), args.Bool(1), args.Error(2)
}

func (m *MockEmailService) List(ctx context.Context, f model.EmailFilter) (model.Page[model.ScheduledEmail], error) {
	args := m.Called(ctx, f)
	return args.Get(0).(model.Page[model.ScheduledEmail]), args.Error(1)
}

type MockMemoService struct {
	mock.Mock
}

func (m *MockMemoService) Create(ctx context.Context, actor *model.UserProfile, in services.CreateMemoInput) (*model.Memo, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Memo), args.Error(1)
}

func (m *MockMemoService) Attach(ctx context.Context, actor *model.UserProfile, memoID uuid.UUID, fileName string, data []byte) (*model.MemoAttachment, error) {
	args := m.Called(ctx, actor, memoID, fileName, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MemoAttachment), args.Error(1)
}

func (m *MockMemoService) Get(ctx context.Context, id uuid.UUID) (*model.Memo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Memo), args.Error(1)
}

func (m *MockMemoService) List(ctx context.Context, f model.MemoFilter) (model.Page[model.Memo], error) {
	args := m.Called(ctx, f)
	return args.Get(0).(model.Page[model.Memo]), args.Error(1)
}

type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) Run(ctx context.Context) (*model.SyncRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncRun), args.Error(1)
}

func (m *MockSyncService) Runs(ctx context.Context, limit int) ([]model.SyncRun, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]model.SyncRun), args.Error(1)
}

func (m *MockSyncService) Changes(ctx context.Context, runID string) ([]model.SyncChangeLog, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).([]model.SyncChangeLog), args.Error(1)
}

type jobsStub struct {
	ran []string
	err error
}

func (j *jobsStub) RunOnce(_ context.Context, name string) error {
	j.ran = append(j.ran, name)
	return j.err
}

func (j *jobsStub) Jobs() []string { return []string{"auto-red", "erp-sync"} }
