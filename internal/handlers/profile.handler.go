package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
)

type ProfileService interface {
	Invite(ctx context.Context, actor *model.UserProfile, email, fullName string, role model.Role) (*model.UserProfile, error)
	Approve(ctx context.Context, actor *model.UserProfile, id uuid.UUID, role model.Role) (*model.UserProfile, error)
	ChangeRole(ctx context.Context, actor *model.UserProfile, id uuid.UUID, role model.Role) (*model.UserProfile, error)
	SetActive(ctx context.Context, actor *model.UserProfile, id uuid.UUID, active bool) error
	Get(ctx context.Context, id uuid.UUID) (*model.UserProfile, error)
	List(ctx context.Context, role *model.Role) ([]model.UserProfile, error)
}

type ProfileHandler struct {
	svc ProfileService
}

func NewProfileHandler(svc ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func RegisterProfileRoutes(g *xhttp.Group, a *Authenticator, h *ProfileHandler) {
	g.GET("/me", a.Authenticated(h.Me))
	g.GET("/users", a.Require(model.RoleManager, h.List))
	g.GET("/users/{id}", a.Require(model.RoleManager, h.Get))
	g.POST("/users/invite", a.Require(model.RoleAdmin, h.Invite))
	g.POST("/users/{id}/approve", a.Require(model.RoleAdmin, h.Approve))
	g.PUT("/users/{id}/role", a.Require(model.RoleAdmin, h.ChangeRole))
	g.PUT("/users/{id}/active", a.Require(model.RoleAdmin, h.SetActive))
}

type inviteRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=200"`
	Role     string `json:"role" validate:"required,oneof=admin manager collector viewer"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin manager collector viewer"`
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *ProfileHandler) Me(ctx *xhttp.RequestCtx) {
	xhttp.WriteJSON(ctx, xhttp.StatusOK, actorFrom(ctx))
}

func (h *ProfileHandler) List(ctx *xhttp.RequestCtx) {
	var role *model.Role
	if v := xhttp.Query(ctx, "role"); v != "" {
		r, err := model.ParseRole(v)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		role = &r
	}
	items, err := h.svc.List(ctx, role)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]any{"items": items})
}

func (h *ProfileHandler) Get(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	p, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, p)
}

func (h *ProfileHandler) Invite(ctx *xhttp.RequestCtx) {
	var req inviteRequest
	if !bind(ctx, &req) {
		return
	}
	p, err := h.svc.Invite(ctx, actorFrom(ctx), req.Email, req.FullName, model.Role(req.Role))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, p)
}

func (h *ProfileHandler) Approve(ctx *xhttp.RequestCtx) {
	h.withRole(ctx, h.svc.Approve)
}

func (h *ProfileHandler) ChangeRole(ctx *xhttp.RequestCtx) {
	h.withRole(ctx, h.svc.ChangeRole)
}

func (h *ProfileHandler) withRole(ctx *xhttp.RequestCtx, fn func(context.Context, *model.UserProfile, uuid.UUID, model.Role) (*model.UserProfile, error)) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req roleRequest
	if !bind(ctx, &req) {
		return
	}
	p, err := fn(ctx, actorFrom(ctx), id, model.Role(req.Role))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, p)
}

func (h *ProfileHandler) SetActive(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req activeRequest
	if !bind(ctx, &req) {
		return
	}
	if err := h.svc.SetActive(ctx, actorFrom(ctx), id, *req.Active); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}
