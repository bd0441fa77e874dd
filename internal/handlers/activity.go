package handlers

import (
	"context"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
	"github.com/valyala/fasthttp"
)

// RequestActivity stamps audit entries written during a request with the
// request's method, route and client address.
type RequestActivity struct {
	inner services.ActivityRecorder
}

func NewRequestActivity(inner services.ActivityRecorder) *RequestActivity {
	return &RequestActivity{inner: inner}
}

func (r *RequestActivity) Log(ctx context.Context, entry model.UserActivityLog) {
	if rc, ok := ctx.(*fasthttp.RequestCtx); ok {
		entry.Method = string(rc.Method())
		entry.Path = xhttp.MatchedRoute(rc)
		entry.IPAddress = rc.RemoteIP().String()
	}
	r.inner.Log(ctx, entry)
}

type ActivityService interface {
	List(ctx context.Context, f model.ActivityFilter) (model.Page[model.UserActivityLog], error)
}

type ActivityHandler struct {
	svc ActivityService
}

func NewActivityHandler(svc ActivityService) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

func RegisterActivityRoutes(g *xhttp.Group, a *Authenticator, h *ActivityHandler) {
	g.GET("/activity", a.Require(model.RoleAdmin, h.List))
}

func (h *ActivityHandler) List(ctx *xhttp.RequestCtx) {
	var (
		f   model.ActivityFilter
		err error
	)
	if f.UserID, err = queryUUID(ctx, "user_id"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	if f.From, err = xhttp.QueryTime(ctx, "from"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "invalid from")
		return
	}
	if f.To, err = xhttp.QueryTime(ctx, "to"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "invalid to")
		return
	}
	f.Action = xhttp.Query(ctx, "action")
	f.Limit, f.Offset = pagination(ctx)

	page, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, page)
}
