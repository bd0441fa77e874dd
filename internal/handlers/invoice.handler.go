package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
	"github.com/shopspring/decimal"
)

type InvoiceService interface {
	Search(ctx context.Context, f model.InvoiceFilter) (model.Page[model.Invoice], error)
	Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	GetByReference(ctx context.Context, reference string) (*model.Invoice, error)
	BrokenPromises(ctx context.Context, limit, offset int) (model.Page[model.Invoice], error)
	StatusHistory(ctx context.Context, id uuid.UUID) ([]model.InvoiceStatusChange, error)
	ChangeColorStatus(ctx context.Context, actor *model.UserProfile, id uuid.UUID, change services.ColorStatusChange) (*model.Invoice, error)
	SetPromise(ctx context.Context, actor *model.UserProfile, id uuid.UUID, date *time.Time) (*model.Invoice, error)
	ColorStatuses(ctx context.Context) ([]model.ColorStatusOption, error)
	CreateColorStatus(ctx context.Context, actor *model.UserProfile, opt model.ColorStatusOption) (*model.ColorStatusOption, error)
}

type InvoiceHandler struct {
	svc InvoiceService
}

func NewInvoiceHandler(svc InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{svc: svc}
}

func RegisterInvoiceRoutes(g *xhttp.Group, a *Authenticator, h *InvoiceHandler) {
	g.GET("/invoices", a.Require(model.RoleViewer, h.Search))
	g.GET("/invoices/broken-promises", a.Require(model.RoleViewer, h.BrokenPromises))
	g.GET("/invoices/by-reference/{reference}", a.Require(model.RoleViewer, h.GetByReference))
	g.GET("/invoices/{id}", a.Require(model.RoleViewer, h.Get))
	g.GET("/invoices/{id}/status-history", a.Require(model.RoleViewer, h.StatusHistory))
	g.PUT("/invoices/{id}/color-status", a.Require(model.RoleCollector, h.ChangeColorStatus))
	g.PUT("/invoices/{id}/promise", a.Require(model.RoleCollector, h.SetPromise))
	g.GET("/color-statuses", a.Require(model.RoleViewer, h.ColorStatuses))
	g.POST("/color-statuses", a.Require(model.RoleAdmin, h.CreateColorStatus))
}

type colorStatusRequest struct {
	Status string `json:"status" validate:"required,max=32"`
	Reason string `json:"reason" validate:"max=500"`
	Lock   *bool  `json:"lock"`
}

type invoicePromiseRequest struct {
	// empty clears the promise
	PromiseDate string `json:"promise_date" validate:"omitempty,datetime=2006-01-02"`
}

type createColorStatusRequest struct {
	Value     string `json:"value" validate:"required,max=32"`
	Label     string `json:"label" validate:"required,max=64"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

func (h *InvoiceHandler) Search(ctx *xhttp.RequestCtx) {
	var (
		f   model.InvoiceFilter
		err error
	)
	f.Query = xhttp.Query(ctx, "q")
	f.ColorStatuses = queryList(ctx, "color_status")
	if f.CustomerID, err = queryUUID(ctx, "customer_id"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	if f.MinBalance, err = queryDecimal(ctx, "min_balance"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "invalid min_balance")
		return
	}
	if f.MaxBalance, err = queryDecimal(ctx, "max_balance"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "invalid max_balance")
		return
	}
	if f.DueFrom, err = xhttp.QueryTime(ctx, "due_from"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "invalid due_from")
		return
	}
	if f.DueTo, err = xhttp.QueryTime(ctx, "due_to"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "invalid due_to")
		return
	}
	f.OnlyOpen = xhttp.Query(ctx, "open") == "true"
	f.BrokenPromise = xhttp.Query(ctx, "broken_promise") == "true"
	f.Sort = xhttp.Query(ctx, "sort")
	f.Desc = strings.EqualFold(xhttp.Query(ctx, "order"), "desc")
	f.Limit, f.Offset = pagination(ctx)

	page, err := h.svc.Search(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, page)
}

func (h *InvoiceHandler) BrokenPromises(ctx *xhttp.RequestCtx) {
	limit, offset := pagination(ctx)
	page, err := h.svc.BrokenPromises(ctx, limit, offset)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, page)
}

func (h *InvoiceHandler) Get(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	inv, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, inv)
}

// GetByReference accepts any spelling of the reference ("INV-1234", "1234").
func (h *InvoiceHandler) GetByReference(ctx *xhttp.RequestCtx) {
	ref, err := model.NormalizeReferenceNumber(xhttp.Param(ctx, "reference"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	inv, err := h.svc.GetByReference(ctx, ref)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, inv)
}

func (h *InvoiceHandler) StatusHistory(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	items, err := h.svc.StatusHistory(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]any{"items": items})
}

func (h *InvoiceHandler) ChangeColorStatus(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req colorStatusRequest
	if !bind(ctx, &req) {
		return
	}
	inv, err := h.svc.ChangeColorStatus(ctx, actorFrom(ctx), id, services.ColorStatusChange{
		Status: req.Status,
		Reason: req.Reason,
		Lock:   req.Lock,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, inv)
}

func (h *InvoiceHandler) SetPromise(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req invoicePromiseRequest
	if !bind(ctx, &req) {
		return
	}
	var date *time.Time
	if req.PromiseDate != "" {
		d, _ := time.Parse("2006-01-02", req.PromiseDate)
		date = &d
	}
	inv, err := h.svc.SetPromise(ctx, actorFrom(ctx), id, date)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, inv)
}

func (h *InvoiceHandler) ColorStatuses(ctx *xhttp.RequestCtx) {
	items, err := h.svc.ColorStatuses(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]any{"items": items})
}

func (h *InvoiceHandler) CreateColorStatus(ctx *xhttp.RequestCtx) {
	var req createColorStatusRequest
	if !bind(ctx, &req) {
		return
	}
	opt, err := h.svc.CreateColorStatus(ctx, actorFrom(ctx), model.ColorStatusOption{
		Value:     req.Value,
		Label:     req.Label,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, opt)
}

func queryDecimal(ctx *xhttp.RequestCtx, key string) (*decimal.Decimal, error) {
	v := xhttp.Query(ctx, key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
