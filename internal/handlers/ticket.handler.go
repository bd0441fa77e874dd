package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
	"github.com/shopspring/decimal"
)

type TicketService interface {
	Create(ctx context.Context, actor *model.UserProfile, in services.CreateTicketInput) (*model.Ticket, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	List(ctx context.Context, f model.TicketFilter) (model.Page[model.Ticket], error)
	Activity(ctx context.Context, id uuid.UUID) ([]model.TicketActivity, error)
	MergeEvents(ctx context.Context, id uuid.UUID) ([]model.TicketMergeEvent, error)
	Assign(ctx context.Context, actor *model.UserProfile, id uuid.UUID, collectorID *uuid.UUID) error
	ChangeStatus(ctx context.Context, actor *model.UserProfile, id uuid.UUID, to model.TicketStatus) (*model.Ticket, error)
	SetPromise(ctx context.Context, actor *model.UserProfile, id uuid.UUID, date time.Time, amount *decimal.Decimal) (*model.Ticket, error)
	AddNote(ctx context.Context, actor *model.UserProfile, id uuid.UUID, note string) error
	AddInvoices(ctx context.Context, actor *model.UserProfile, id uuid.UUID, invoiceIDs []uuid.UUID) (int, error)
	Merge(ctx context.Context, actor *model.UserProfile, targetID uuid.UUID, sourceIDs []uuid.UUID) (*model.Ticket, error)
}

type TicketHandler struct {
	svc TicketService
}

func NewTicketHandler(svc TicketService) *TicketHandler {
	return &TicketHandler{svc: svc}
}

func RegisterTicketRoutes(g *xhttp.Group, a *Authenticator, h *TicketHandler) {
	g.GET("/tickets", a.Require(model.RoleViewer, h.List))
	g.POST("/tickets", a.Require(model.RoleCollector, h.Create))
	g.GET("/tickets/{id}", a.Require(model.RoleViewer, h.Get))
	g.GET("/tickets/{id}/activity", a.Require(model.RoleViewer, h.Activity))
	g.GET("/tickets/{id}/merges", a.Require(model.RoleViewer, h.MergeEvents))
	g.PUT("/tickets/{id}/assignee", a.Require(model.RoleManager, h.Assign))
	g.PUT("/tickets/{id}/status", a.Require(model.RoleCollector, h.ChangeStatus))
	g.PUT("/tickets/{id}/promise", a.Require(model.RoleCollector, h.SetPromise))
	g.POST("/tickets/{id}/notes", a.Require(model.RoleCollector, h.AddNote))
	g.POST("/tickets/{id}/invoices", a.Require(model.RoleCollector, h.AddInvoices))
	g.POST("/tickets/{id}/merge", a.Require(model.RoleManager, h.Merge))
}

type createTicketRequest struct {
	CustomerID          *uuid.UUID  `json:"customer_id"`
	Title               string      `json:"title" validate:"required,max=200"`
	Priority            string      `json:"priority" validate:"omitempty,oneof=low normal high"`
	AssignedCollectorID *uuid.UUID  `json:"assigned_collector_id"`
	InvoiceIDs          []uuid.UUID `json:"invoice_ids" validate:"max=500"`
}

type assignRequest struct {
	// null unassigns
	CollectorID *uuid.UUID `json:"collector_id"`
}

type ticketStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress promised promise_broken resolved closed"`
}

type ticketPromiseRequest struct {
	PromiseDate string           `json:"promise_date" validate:"required,datetime=2006-01-02"`
	Amount      *decimal.Decimal `json:"amount"`
}

type noteRequest struct {
	Note string `json:"note" validate:"required,max=4000"`
}

type invoiceIDsRequest struct {
	InvoiceIDs []uuid.UUID `json:"invoice_ids" validate:"required,min=1,max=500"`
}

type mergeRequest struct {
	SourceIDs []uuid.UUID `json:"source_ids" validate:"required,min=1,max=50"`
}

func (h *TicketHandler) List(ctx *xhttp.RequestCtx) {
	var (
		f   model.TicketFilter
		err error
	)
	for _, s := range queryList(ctx, "status") {
		f.Statuses = append(f.Statuses, model.TicketStatus(s))
	}
	if xhttp.Query(ctx, "open") == "true" {
		f.Statuses = model.OpenTicketStatuses()
	}
	if f.AssignedCollectorID, err = queryUUID(ctx, "assigned_to"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	if xhttp.Query(ctx, "mine") == "true" {
		id := actorFrom(ctx).ID
		f.AssignedCollectorID = &id
	}
	if f.CustomerID, err = queryUUID(ctx, "customer_id"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	f.Limit, f.Offset = pagination(ctx)

	page, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, page)
}

func (h *TicketHandler) Create(ctx *xhttp.RequestCtx) {
	var req createTicketRequest
	if !bind(ctx, &req) {
		return
	}
	t, err := h.svc.Create(ctx, actorFrom(ctx), services.CreateTicketInput{
		CustomerID:          req.CustomerID,
		Title:               req.Title,
		Priority:            model.TicketPriority(req.Priority),
		AssignedCollectorID: req.AssignedCollectorID,
		InvoiceIDs:          req.InvoiceIDs,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, t)
}

func (h *TicketHandler) Get(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	t, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, t)
}

func (h *TicketHandler) Activity(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	items, err := h.svc.Activity(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]any{"items": items})
}

func (h *TicketHandler) MergeEvents(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	items, err := h.svc.MergeEvents(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]any{"items": items})
}

func (h *TicketHandler) Assign(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req assignRequest
	if !bind(ctx, &req) {
		return
	}
	if err := h.svc.Assign(ctx, actorFrom(ctx), id, req.CollectorID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}

func (h *TicketHandler) ChangeStatus(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req ticketStatusRequest
	if !bind(ctx, &req) {
		return
	}
	t, err := h.svc.ChangeStatus(ctx, actorFrom(ctx), id, model.TicketStatus(req.Status))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, t)
}

func (h *TicketHandler) SetPromise(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req ticketPromiseRequest
	if !bind(ctx, &req) {
		return
	}
	date, _ := time.Parse("2006-01-02", req.PromiseDate)
	t, err := h.svc.SetPromise(ctx, actorFrom(ctx), id, date, req.Amount)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, t)
}

func (h *TicketHandler) AddNote(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req noteRequest
	if !bind(ctx, &req) {
		return
	}
	if err := h.svc.AddNote(ctx, actorFrom(ctx), id, req.Note); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}

func (h *TicketHandler) AddInvoices(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req invoiceIDsRequest
	if !bind(ctx, &req) {
		return
	}
	added, err := h.svc.AddInvoices(ctx, actorFrom(ctx), id, req.InvoiceIDs)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]int{"added": added})
}

func (h *TicketHandler) Merge(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req mergeRequest
	if !bind(ctx, &req) {
		return
	}
	t, err := h.svc.Merge(ctx, actorFrom(ctx), id, req.SourceIDs)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, t)
}
