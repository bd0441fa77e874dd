package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
)

type InvoiceRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	GetByReference(ctx context.Context, raw string) (*model.Invoice, error)
	Search(ctx context.Context, f model.InvoiceFilter, now time.Time) (model.Page[model.Invoice], error)
	ListBrokenPromises(ctx context.Context, now time.Time, limit, offset int) (model.Page[model.Invoice], error)
	UpdateColorStatus(ctx context.Context, id uuid.UUID, status, actor, reason string, lock *bool) (*model.Invoice, error)
	SetPromise(ctx context.Context, id uuid.UUID, date *time.Time, actor string) (*model.Invoice, error)
	StatusHistory(ctx context.Context, id uuid.UUID) ([]model.InvoiceStatusChange, error)
}

type ColorStatusRepository interface {
	List(ctx context.Context) ([]model.ColorStatusOption, error)
	Exists(ctx context.Context, value string) (bool, error)
	Create(ctx context.Context, opt model.ColorStatusOption) (*model.ColorStatusOption, error)
}

type ColorStatusChange struct {
	Status string
	Reason string
	// nil keeps the current lock
	Lock *bool
}

var colorValuePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,31}$`)

type InvoiceService struct {
	invoices InvoiceRepository
	statuses ColorStatusRepository
	activity ActivityRecorder
	now      func() time.Time
}

func NewInvoiceService(invoices InvoiceRepository, statuses ColorStatusRepository, activity ActivityRecorder) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		statuses: statuses,
		activity: recorderOrNoop(activity),
		now:      time.Now,
	}
}

func (s *InvoiceService) Search(ctx context.Context, f model.InvoiceFilter) (model.Page[model.Invoice], error) {
	f.Query = strings.TrimSpace(f.Query)
	return s.invoices.Search(ctx, f, s.now())
}

func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return s.invoices.Get(ctx, id)
}

func (s *InvoiceService) GetByReference(ctx context.Context, reference string) (*model.Invoice, error) {
	return s.invoices.GetByReference(ctx, reference)
}

func (s *InvoiceService) BrokenPromises(ctx context.Context, limit, offset int) (model.Page[model.Invoice], error) {
	return s.invoices.ListBrokenPromises(ctx, s.now(), limit, offset)
}

func (s *InvoiceService) StatusHistory(ctx context.Context, id uuid.UUID) ([]model.InvoiceStatusChange, error) {
	return s.invoices.StatusHistory(ctx, id)
}

// ChangeColorStatus applies a manual status change. The value must be one of
// the configured options.
func (s *InvoiceService) ChangeColorStatus(ctx context.Context, actor *model.UserProfile, id uuid.UUID, change ColorStatusChange) (*model.Invoice, error) {
	status := strings.ToLower(strings.TrimSpace(change.Status))
	ok, err := s.statuses.Exists(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("check color status: %w", err)
	}
	if !ok {
		return nil, ErrInvalidColorStatus
	}

	inv, err := s.invoices.UpdateColorStatus(ctx, id, status, actor.Actor(), strings.TrimSpace(change.Reason), change.Lock)
	if err != nil {
		return nil, err
	}

	details := "status=" + status
	if change.Lock != nil {
		details += fmt.Sprintf(" locked=%t", *change.Lock)
	}
	s.activity.Log(ctx, userActivity(actor, "invoice.color_status", "invoice", id.String(), details))
	return inv, nil
}

// SetPromise records a promise to pay; a nil date clears it.
func (s *InvoiceService) SetPromise(ctx context.Context, actor *model.UserProfile, id uuid.UUID, date *time.Time) (*model.Invoice, error) {
	inv, err := s.invoices.SetPromise(ctx, id, date, actor.Actor())
	if err != nil {
		return nil, err
	}

	details := "cleared"
	if date != nil {
		details = date.UTC().Format("2006-01-02")
	}
	s.activity.Log(ctx, userActivity(actor, "invoice.promise", "invoice", id.String(), details))
	return inv, nil
}

func (s *InvoiceService) ColorStatuses(ctx context.Context) ([]model.ColorStatusOption, error) {
	return s.statuses.List(ctx)
}

// CreateColorStatus adds a custom option next to the system ones.
func (s *InvoiceService) CreateColorStatus(ctx context.Context, actor *model.UserProfile, opt model.ColorStatusOption) (*model.ColorStatusOption, error) {
	opt.Value = strings.ToLower(strings.TrimSpace(opt.Value))
	opt.Label = strings.TrimSpace(opt.Label)
	if !colorValuePattern.MatchString(opt.Value) || opt.Label == "" {
		return nil, fmt.Errorf("%w: color status needs a lowercase value and a label", ErrInvalidRequest)
	}
	opt.IsSystem = false

	created, err := s.statuses.Create(ctx, opt)
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, userActivity(actor, "color_status.create", "color_status", created.Value, created.Label))
	return created, nil
}
