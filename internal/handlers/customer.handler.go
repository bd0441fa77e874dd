package handlers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
)

type CustomerService interface {
	Summaries(ctx context.Context, f model.CustomerSummaryFilter) (model.Page[model.CustomerSummary], error)
	Get(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	SetRedThreshold(ctx context.Context, actor *model.UserProfile, id uuid.UUID, days *int) error
}

type CustomerHandler struct {
	svc CustomerService
}

func NewCustomerHandler(svc CustomerService) *CustomerHandler {
	return &CustomerHandler{svc: svc}
}

func RegisterCustomerRoutes(g *xhttp.Group, a *Authenticator, h *CustomerHandler) {
	g.GET("/customers", a.Require(model.RoleViewer, h.Summaries))
	g.GET("/customers/{id}", a.Require(model.RoleViewer, h.Get))
	g.PUT("/customers/{id}/red-threshold", a.Require(model.RoleManager, h.SetRedThreshold))
}

type redThresholdRequest struct {
	// null disables automatic escalation
	Days *int `json:"days" validate:"omitempty,gte=0,max=3650"`
}

func (h *CustomerHandler) Summaries(ctx *xhttp.RequestCtx) {
	f := model.CustomerSummaryFilter{
		Query:           xhttp.Query(ctx, "q"),
		OnlyWithBalance: xhttp.Query(ctx, "with_balance") == "true",
		Sort:            xhttp.Query(ctx, "sort"),
		Desc:            strings.EqualFold(xhttp.Query(ctx, "order"), "desc"),
	}
	f.Limit, f.Offset = pagination(ctx)

	page, err := h.svc.Summaries(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, page)
}

func (h *CustomerHandler) Get(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	c, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, c)
}

func (h *CustomerHandler) SetRedThreshold(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req redThresholdRequest
	if !bind(ctx, &req) {
		return
	}
	if err := h.svc.SetRedThreshold(ctx, actorFrom(ctx), id, req.Days); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}
