package handlers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func ticketSetup(t *testing.T, role model.Role) (*MockTicketService, *model.UserProfile, func(g *xhttp.Group), string) {
	a, profiles := newTestAuth(t)
	actor := profiles.add("user", role, true)
	svc := new(MockTicketService)
	h := NewTicketHandler(svc)
	return svc, actor, func(g *xhttp.Group) { RegisterTicketRoutes(g, a, h) }, signToken(t, "user", time.Hour)
}

func TestTicketHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc, actor, routes, token := ticketSetup(t, model.RoleCollector)
		cust, inv := uuid.New(), uuid.New()
		svc.On("Create", mock.Anything, actor, services.CreateTicketInput{
			CustomerID: &cust,
			Title:      "Chase Acme",
			Priority:   model.PriorityHigh,
			InvoiceIDs: []uuid.UUID{inv},
		}).Return(&model.Ticket{ID: uuid.New(), Title: "Chase Acme", Status: model.TicketOpen}, nil)

		body := []byte(`{"customer_id":"` + cust.String() + `","title":"Chase Acme","priority":"high","invoice_ids":["` + inv.String() + `"]}`)
		ctx := serve(routes, setupTestContext("POST", "/api/v1/tickets", body), token)

		assert.Equal(t, xhttp.StatusCreated, ctx.Response.StatusCode())
		assert.Equal(t, "open", decode(t, ctx)["status"])
		svc.AssertExpectations(t)
	})

	t.Run("invalid priority", func(t *testing.T) {
		svc, _, routes, token := ticketSetup(t, model.RoleCollector)
		ctx := serve(routes, setupTestContext("POST", "/api/v1/tickets", []byte(`{"title":"x","priority":"urgent"}`)), token)

		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		svc, _, routes, token := ticketSetup(t, model.RoleCollector)
		svc.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, services.ErrUnknownInvoice)

		ctx := serve(routes, setupTestContext("POST", "/api/v1/tickets", []byte(`{"title":"x","invoice_ids":["`+uuid.NewString()+`"]}`)), token)
		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
	})
}

func TestTicketHandler_List(t *testing.T) {
	t.Run("mine uses the caller", func(t *testing.T) {
		svc, actor, routes, token := ticketSetup(t, model.RoleCollector)
		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.TicketFilter) bool {
			return f.AssignedCollectorID != nil && *f.AssignedCollectorID == actor.ID &&
				assert.ObjectsAreEqual(model.OpenTicketStatuses(), f.Statuses)
		})).Return(model.Page[model.Ticket]{}, nil)

		ctx := serve(routes, setupTestContext("GET", "/api/v1/tickets?mine=true&open=true", nil), token)
		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("status list", func(t *testing.T) {
		svc, _, routes, token := ticketSetup(t, model.RoleViewer)
		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.TicketFilter) bool {
			return assert.ObjectsAreEqual([]model.TicketStatus{model.TicketPromised, model.TicketPromiseBroken}, f.Statuses)
		})).Return(model.Page[model.Ticket]{}, nil)

		ctx := serve(routes, setupTestContext("GET", "/api/v1/tickets?status=promised,promise_broken", nil), token)
		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestTicketHandler_ChangeStatus(t *testing.T) {
	t.Run("illegal transition is a conflict", func(t *testing.T) {
		svc, _, routes, token := ticketSetup(t, model.RoleCollector)
		id := uuid.New()
		svc.On("ChangeStatus", mock.Anything, mock.Anything, id, model.TicketOpen).Return(nil, model.ErrInvalidTicketTransition)

		ctx := serve(routes, setupTestContext("PUT", "/api/v1/tickets/"+id.String()+"/status", []byte(`{"status":"open"}`)), token)
		assert.Equal(t, xhttp.StatusConflict, ctx.Response.StatusCode())
	})

	t.Run("merged cannot be set by hand", func(t *testing.T) {
		_, _, routes, token := ticketSetup(t, model.RoleCollector)
		ctx := serve(routes, setupTestContext("PUT", "/api/v1/tickets/"+uuid.NewString()+"/status", []byte(`{"status":"merged"}`)), token)
		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("missing ticket", func(t *testing.T) {
		svc, _, routes, token := ticketSetup(t, model.RoleCollector)
		svc.On("ChangeStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, repository.ErrTicketNotFound)

		ctx := serve(routes, setupTestContext("PUT", "/api/v1/tickets/"+uuid.NewString()+"/status", []byte(`{"status":"resolved"}`)), token)
		assert.Equal(t, xhttp.StatusNotFound, ctx.Response.StatusCode())
	})
}

func TestTicketHandler_SetPromise(t *testing.T) {
	svc, _, routes, token := ticketSetup(t, model.RoleCollector)
	id := uuid.New()
	svc.On("SetPromise", mock.Anything, mock.Anything, id, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		mock.MatchedBy(func(a *decimal.Decimal) bool { return a != nil && a.Equal(decimal.NewFromInt(250)) })).
		Return(&model.Ticket{ID: id, Status: model.TicketPromised}, nil)

	ctx := serve(routes, setupTestContext("PUT", "/api/v1/tickets/"+id.String()+"/promise", []byte(`{"promise_date":"2024-04-01","amount":"250.00"}`)), token)

	assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
}

func TestTicketHandler_Assign(t *testing.T) {
	t.Run("collector cannot assign", func(t *testing.T) {
		_, _, routes, token := ticketSetup(t, model.RoleCollector)
		ctx := serve(routes, setupTestContext("PUT", "/api/v1/tickets/"+uuid.NewString()+"/assignee", []byte(`{"collector_id":null}`)), token)
		assert.Equal(t, xhttp.StatusForbidden, ctx.Response.StatusCode())
	})

	t.Run("manager unassigns", func(t *testing.T) {
		svc, _, routes, token := ticketSetup(t, model.RoleManager)
		id := uuid.New()
		svc.On("Assign", mock.Anything, mock.Anything, id, (*uuid.UUID)(nil)).Return(nil)

		ctx := serve(routes, setupTestContext("PUT", "/api/v1/tickets/"+id.String()+"/assignee", []byte(`{"collector_id":null}`)), token)
		assert.Equal(t, xhttp.StatusNoContent, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestTicketHandler_Merge(t *testing.T) {
	t.Run("closed source", func(t *testing.T) {
		svc, _, routes, token := ticketSetup(t, model.RoleManager)
		target, src := uuid.New(), uuid.New()
		svc.On("Merge", mock.Anything, mock.Anything, target, []uuid.UUID{src}).Return(nil, services.ErrTicketClosed)

		ctx := serve(routes, setupTestContext("POST", "/api/v1/tickets/"+target.String()+"/merge", []byte(`{"source_ids":["`+src.String()+`"]}`)), token)
		assert.Equal(t, xhttp.StatusConflict, ctx.Response.StatusCode())
	})

	t.Run("needs sources", func(t *testing.T) {
		_, _, routes, token := ticketSetup(t, model.RoleManager)
		ctx := serve(routes, setupTestContext("POST", "/api/v1/tickets/"+uuid.NewString()+"/merge", []byte(`{"source_ids":[]}`)), token)
		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
	})
}

func TestTicketHandler_AddInvoices(t *testing.T) {
	svc, _, routes, token := ticketSetup(t, model.RoleCollector)
	id, inv := uuid.New(), uuid.New()
	svc.On("AddInvoices", mock.Anything, mock.Anything, id, []uuid.UUID{inv}).Return(1, nil)

	ctx := serve(routes, setupTestContext("POST", "/api/v1/tickets/"+id.String()+"/invoices", []byte(`{"invoice_ids":["`+inv.String()+`"]}`)), token)

	assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, float64(1), decode(t, ctx)["added"])
}
