package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
)

type ReminderService interface {
	Create(ctx context.Context, actor *model.UserProfile, in services.CreateReminderInput) (*model.Reminder, error)
	ListMine(ctx context.Context, actor *model.UserProfile, includeCompleted bool) ([]model.Reminder, error)
	Complete(ctx context.Context, actor *model.UserProfile, id uuid.UUID) error
}

type ReminderHandler struct {
	svc ReminderService
}

func NewReminderHandler(svc ReminderService) *ReminderHandler {
	return &ReminderHandler{svc: svc}
}

func RegisterReminderRoutes(g *xhttp.Group, a *Authenticator, h *ReminderHandler) {
	g.GET("/reminders", a.Require(model.RoleCollector, h.ListMine))
	g.POST("/reminders", a.Require(model.RoleCollector, h.Create))
	g.POST("/reminders/{id}/complete", a.Require(model.RoleCollector, h.Complete))
}

type createReminderRequest struct {
	CustomerID *uuid.UUID `json:"customer_id"`
	InvoiceID  *uuid.UUID `json:"invoice_id"`
	TicketID   *uuid.UUID `json:"ticket_id"`
	Title      string     `json:"title" validate:"required,max=200"`
	Notes      string     `json:"notes" validate:"max=4000"`
	RemindAt   time.Time  `json:"remind_at" validate:"required"`
}

func (h *ReminderHandler) ListMine(ctx *xhttp.RequestCtx) {
	items, err := h.svc.ListMine(ctx, actorFrom(ctx), xhttp.Query(ctx, "include_completed") == "true")
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]any{"items": items})
}

func (h *ReminderHandler) Create(ctx *xhttp.RequestCtx) {
	var req createReminderRequest
	if !bind(ctx, &req) {
		return
	}
	r, err := h.svc.Create(ctx, actorFrom(ctx), services.CreateReminderInput{
		CustomerID: req.CustomerID,
		InvoiceID:  req.InvoiceID,
		TicketID:   req.TicketID,
		Title:      req.Title,
		Notes:      req.Notes,
		RemindAt:   req.RemindAt,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, r)
}

func (h *ReminderHandler) Complete(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	if err := h.svc.Complete(ctx, actorFrom(ctx), id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}
