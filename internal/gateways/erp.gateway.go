package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

const erpEntityPath = "/entity/Default/22.200.001"

// field is the {"value": ...} wrapper the ERP puts around every column.
type field[T any] struct {
	Value T `json:"value"`
}

type ERPCustomer struct {
	CustomerID           field[string]     `json:"CustomerID"`
	CustomerName         field[string]     `json:"CustomerName"`
	Email                field[string]     `json:"Email"`
	Phone                field[string]     `json:"Phone1"`
	Status               field[string]     `json:"Status"`
	LastModifiedDateTime field[*time.Time] `json:"LastModifiedDateTime"`
}

func (c ERPCustomer) ToModel() model.Customer {
	return model.Customer{
		AcumaticaID: strings.TrimSpace(c.CustomerID.Value),
		Name:        strings.TrimSpace(c.CustomerName.Value),
		Email:       strings.TrimSpace(c.Email.Value),
		Phone:       strings.TrimSpace(c.Phone.Value),
		IsActive:    c.Status.Value == "" || strings.EqualFold(c.Status.Value, "Active"),
	}
}

type ERPInvoice struct {
	Type                 field[string]          `json:"Type"`
	ReferenceNbr         field[string]          `json:"ReferenceNbr"`
	CustomerID           field[string]          `json:"CustomerID"`
	Description          field[string]          `json:"Description"`
	Amount               field[decimal.Decimal] `json:"Amount"`
	Balance              field[decimal.Decimal] `json:"Balance"`
	Date                 field[*time.Time]      `json:"Date"`
	DueDate              field[*time.Time]      `json:"DueDate"`
	Status               field[string]          `json:"Status"`
	LastModifiedDateTime field[*time.Time]      `json:"LastModifiedDateTime"`
}

// ToModel leaves CustomerID unset; the caller resolves it from CustomerID.
func (i ERPInvoice) ToModel() model.Invoice {
	return model.Invoice{
		ReferenceNumber: strings.TrimSpace(i.ReferenceNbr.Value),
		Description:     strings.TrimSpace(i.Description.Value),
		Amount:          i.Amount.Value,
		Balance:         i.Balance.Value,
		InvoiceDate:     i.Date.Value,
		DueDate:         i.DueDate.Value,
	}
}

type ERPApplication struct {
	AdjustedRefNbr field[string]          `json:"AdjustedRefNbr"`
	AmountPaid     field[decimal.Decimal] `json:"AmountPaid"`
	Date           field[*time.Time]      `json:"Date"`
}

type ERPPayment struct {
	Type                 field[string]          `json:"Type"`
	ReferenceNbr         field[string]          `json:"ReferenceNbr"`
	CustomerID           field[string]          `json:"CustomerID"`
	PaymentAmount        field[decimal.Decimal] `json:"PaymentAmount"`
	ApplicationDate      field[*time.Time]      `json:"ApplicationDate"`
	PaymentMethod        field[string]          `json:"PaymentMethod"`
	ApplicationHistory   []ERPApplication       `json:"ApplicationHistory"`
	LastModifiedDateTime field[*time.Time]      `json:"LastModifiedDateTime"`
}

// ExternalID keys payments by document type and number since numbering
// restarts per type.
func (p ERPPayment) ExternalID() string {
	if p.Type.Value == "" {
		return strings.TrimSpace(p.ReferenceNbr.Value)
	}
	return p.Type.Value + ":" + strings.TrimSpace(p.ReferenceNbr.Value)
}

func (p ERPPayment) ToModel() model.Payment {
	return model.Payment{
		AcumaticaID:     p.ExternalID(),
		ReferenceNumber: strings.TrimSpace(p.ReferenceNbr.Value),
		Amount:          p.PaymentAmount.Value,
		PaymentDate:     p.ApplicationDate.Value,
		PaymentMethod:   p.PaymentMethod.Value,
	}
}

type ERPConfig struct {
	BaseURL  string
	Username string
	Password string
	// bearer token, preferred over basic auth when set
	Token    string
	Timeout  time.Duration
	PageSize int
	MaxConns int
	Breaker  BreakerConfig
}

// ERPClient pulls changed records from the ERP REST API page by page.
type ERPClient struct {
	config ERPConfig
	target *target
}

func NewERPClient(config *ERPConfig) (*ERPClient, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("erp base url is required")
	}
	cfg := *config
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}

	c := &ERPClient{config: cfg}
	c.target = newTarget("erp", strings.TrimRight(cfg.BaseURL, "/"), newHTTPClient(cfg.Timeout, cfg.MaxConns), cfg.Timeout, cfg.Breaker)

	logger.Info("ERP client initialized", "url", cfg.BaseURL, "page_size", cfg.PageSize, "timeout", cfg.Timeout)
	return c, nil
}

func (c *ERPClient) Customers(ctx context.Context, since time.Time) ([]ERPCustomer, error) {
	return fetchAll[ERPCustomer](ctx, c, "Customer", since, "")
}

func (c *ERPClient) Invoices(ctx context.Context, since time.Time) ([]ERPInvoice, error) {
	return fetchAll[ERPInvoice](ctx, c, "Invoice", since, "")
}

func (c *ERPClient) Payments(ctx context.Context, since time.Time) ([]ERPPayment, error) {
	return fetchAll[ERPPayment](ctx, c, "Payment", since, "ApplicationHistory")
}

func (c *ERPClient) Stats() TargetStats {
	return c.target.stats()
}

func fetchAll[T any](ctx context.Context, c *ERPClient, entity string, since time.Time, expand string) ([]T, error) {
	var out []T
	for skip := 0; ; skip += c.config.PageSize {
		body, err := c.target.do(ctx, request{
			method: fasthttp.MethodGet,
			path:   c.entityPath(entity, since, expand, skip),
			auth:   c.authorize,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", entity, err)
		}

		var page []T
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s page: %w", entity, err)
		}
		out = append(out, page...)

		if len(page) < c.config.PageSize {
			break
		}
	}

	logger.Debug("ERP records fetched", "entity", entity, "count", len(out), "since", since)
	return out, nil
}

func (c *ERPClient) entityPath(entity string, since time.Time, expand string, skip int) string {
	q := url.Values{}
	if !since.IsZero() {
		q.Set("$filter", fmt.Sprintf("LastModifiedDateTime gt datetimeoffset'%s'", since.UTC().Format(time.RFC3339)))
	}
	if expand != "" {
		q.Set("$expand", expand)
	}
	q.Set("$top", strconv.Itoa(c.config.PageSize))
	q.Set("$skip", strconv.Itoa(skip))
	return erpEntityPath + "/" + entity + "?" + q.Encode()
}

func (c *ERPClient) authorize(req *fasthttp.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
		return
	}
	if c.config.Username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(c.config.Username + ":" + c.config.Password))
		req.Header.Set("Authorization", "Basic "+creds)
	}
}
