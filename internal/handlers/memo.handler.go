package handlers

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
)

type MemoService interface {
	Create(ctx context.Context, actor *model.UserProfile, in services.CreateMemoInput) (*model.Memo, error)
	Attach(ctx context.Context, actor *model.UserProfile, memoID uuid.UUID, fileName string, data []byte) (*model.MemoAttachment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Memo, error)
	List(ctx context.Context, f model.MemoFilter) (model.Page[model.Memo], error)
}

type MemoHandler struct {
	svc MemoService
}

func NewMemoHandler(svc MemoService) *MemoHandler {
	return &MemoHandler{svc: svc}
}

func RegisterMemoRoutes(g *xhttp.Group, a *Authenticator, h *MemoHandler) {
	g.GET("/memos", a.Require(model.RoleViewer, h.List))
	g.POST("/memos", a.Require(model.RoleCollector, h.Create))
	g.GET("/memos/{id}", a.Require(model.RoleViewer, h.Get))
	g.POST("/memos/{id}/attachments", a.Require(model.RoleCollector, h.Attach))
}

type createMemoRequest struct {
	CustomerID *uuid.UUID `json:"customer_id"`
	InvoiceID  *uuid.UUID `json:"invoice_id"`
	TicketID   *uuid.UUID `json:"ticket_id"`
	Body       string     `json:"body" validate:"required,max=10000"`
}

func (h *MemoHandler) List(ctx *xhttp.RequestCtx) {
	var (
		f   model.MemoFilter
		err error
	)
	if f.CustomerID, err = queryUUID(ctx, "customer_id"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	if f.InvoiceID, err = queryUUID(ctx, "invoice_id"); err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	if f.TicketID, err = queryUUID(ctx, "ticket_id"); err != nil {
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

func (h *MemoHandler) Create(ctx *xhttp.RequestCtx) {
	var req createMemoRequest
	if !bind(ctx, &req) {
		return
	}
	m, err := h.svc.Create(ctx, actorFrom(ctx), services.CreateMemoInput{
		CustomerID: req.CustomerID,
		InvoiceID:  req.InvoiceID,
		TicketID:   req.TicketID,
		Body:       req.Body,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, m)
}

func (h *MemoHandler) Get(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	m, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, m)
}

// Attach takes a multipart upload in the "file" field.
func (h *MemoHandler) Attach(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		xhttp.WriteError(ctx, xhttp.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	if fh.Size > model.MaxAttachmentSize {
		writeServiceError(ctx, services.ErrAttachmentTooLarge)
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, model.MaxAttachmentSize+1))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	att, err := h.svc.Attach(ctx, actorFrom(ctx), id, fh.Filename, data)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusCreated, att)
}
