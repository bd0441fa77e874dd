package handlers

import (
	"context"
	"time"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
)

type EmailService interface {
	Schedule(ctx context.Context, in services.ScheduleEmailInput) (*model.ScheduledEmail, bool, error)
	List(ctx context.Context, f model.EmailFilter) (model.Page[model.ScheduledEmail], error)
}

type EmailHandler struct {
	svc EmailService
}

func NewEmailHandler(svc EmailService) *EmailHandler {
	return &EmailHandler{svc: svc}
}

func RegisterEmailRoutes(g *xhttp.Group, a *Authenticator, h *EmailHandler) {
	g.GET("/emails", a.Require(model.RoleManager, h.List))
	g.POST("/emails", a.Require(model.RoleManager, h.Schedule))
}

type scheduleEmailRequest struct {
	Kind        string     `json:"kind" validate:"required,max=64"`
	Recipient   string     `json:"recipient" validate:"required,email"`
	Subject     string     `json:"subject" validate:"required,max=300"`
	Body        string     `json:"body" validate:"required"`
	ReferenceID string     `json:"reference_id" validate:"max=128"`
	SendAt      *time.Time `json:"send_at"`
}

func (h *EmailHandler) List(ctx *xhttp.RequestCtx) {
	f := model.EmailFilter{Kind: xhttp.Query(ctx, "kind")}
	for _, s := range queryList(ctx, "status") {
		f.Statuses = append(f.Statuses, model.EmailStatus(s))
	}
	f.Limit, f.Offset = pagination(ctx)

	page, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, page)
}

// Schedule answers 201 for a new email and 200 when an identical one was
// already queued for the same day.
func (h *EmailHandler) Schedule(ctx *xhttp.RequestCtx) {
	var req scheduleEmailRequest
	if !bind(ctx, &req) {
		return
	}
	in := services.ScheduleEmailInput{
		Kind:        req.Kind,
		Recipient:   req.Recipient,
		Subject:     req.Subject,
		Body:        req.Body,
		ReferenceID: req.ReferenceID,
	}
	if req.SendAt != nil {
		in.SendAt = *req.SendAt
	}
	m, created, err := h.svc.Schedule(ctx, in)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	status := xhttp.StatusOK
	if created {
		status = xhttp.StatusCreated
	}
	xhttp.WriteJSON(ctx, status, m)
}
