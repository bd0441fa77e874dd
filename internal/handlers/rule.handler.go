package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
	"github.com/shopspring/decimal"
)

type RuleService interface {
	Rules(ctx context.Context) ([]model.AutoTicketRule, error)
	CreateRule(ctx context.Context, rule model.AutoTicketRule) (*model.AutoTicketRule, error)
	SetRuleEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

type RuleHandler struct {
	svc RuleService
}

func NewRuleHandler(svc RuleService) *RuleHandler {
	return &RuleHandler{svc: svc}
}

func RegisterRuleRoutes(g *xhttp.Group, a *Authenticator, h *RuleHandler) {
	g.GET("/auto-ticket-rules", a.Require(model.RoleManager, h.List))
	g.POST("/auto-ticket-rules", a.Require(model.RoleManager, h.Create))
	g.PUT("/auto-ticket-rules/{id}/enabled", a.Require(model.RoleManager, h.SetEnabled))
}

type createRuleRequest struct {
	Name           string          `json:"name" validate:"required,max=100"`
	Enabled        *bool           `json:"enabled"`
	MinBalance     decimal.Decimal `json:"min_balance"`
	MinDaysOverdue int             `json:"min_days_overdue" validate:"gte=0"`
	AssignTo       *uuid.UUID      `json:"assign_to"`
	Priority       string          `json:"priority" validate:"omitempty,oneof=low normal high"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (h *RuleHandler) List(ctx *xhttp.RequestCtx) {
	rules, err := h.svc.Rules(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]any{"items": rules})
}

func (h *RuleHandler) Create(ctx *xhttp.RequestCtx) {
	var req createRuleRequest
	if !bind(ctx, &req) {
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule, err := h.svc.CreateRule(ctx, model.AutoTicketRule{
		Name:           req.Name,
		Enabled:        enabled,
		MinBalance:     req.MinBalance,
		MinDaysOverdue: req.MinDaysOverdue,
		AssignTo:       req.AssignTo,
		Priority:       model.TicketPriority(req.Priority),
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, rule)
}

func (h *RuleHandler) SetEnabled(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req enabledRequest
	if !bind(ctx, &req) {
		return
	}
	if err := h.svc.SetRuleEnabled(ctx, id, *req.Enabled); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}
