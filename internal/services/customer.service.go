package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
)

type CustomerRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	SetRedThreshold(ctx context.Context, id uuid.UUID, days *int) error
	Summaries(ctx context.Context, f model.CustomerSummaryFilter, now time.Time) (model.Page[model.CustomerSummary], error)
}

type CustomerService struct {
	customers CustomerRepository
	activity  ActivityRecorder
	now       func() time.Time
}

func NewCustomerService(customers CustomerRepository, activity ActivityRecorder) *CustomerService {
	return &CustomerService{
		customers: customers,
		activity:  recorderOrNoop(activity),
		now:       time.Now,
	}
}

func (s *CustomerService) Summaries(ctx context.Context, f model.CustomerSummaryFilter) (model.Page[model.CustomerSummary], error) {
	f.Query = strings.TrimSpace(f.Query)
	return s.customers.Summaries(ctx, f, s.now())
}

func (s *CustomerService) Get(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	return s.customers.Get(ctx, id)
}

// SetRedThreshold sets the days past due after which the customer's invoices
// go red automatically. nil turns automatic escalation off.
func (s *CustomerService) SetRedThreshold(ctx context.Context, actor *model.UserProfile, id uuid.UUID, days *int) error {
	if days != nil && *days < 0 {
		return fmt.Errorf("%w: threshold must not be negative", ErrInvalidRequest)
	}
	if err := s.customers.SetRedThreshold(ctx, id, days); err != nil {
		return err
	}
	details := "disabled"
	if days != nil {
		details = fmt.Sprintf("%d days", *days)
	}
	s.activity.Log(ctx, userActivity(actor, "customer.red_threshold", "customer", id.String(), details))
	return nil
}
