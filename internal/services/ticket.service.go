package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/shopspring/decimal"
)

type TicketRepository interface {
	Create(ctx context.Context, tc model.TicketCreate) (*model.Ticket, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	List(ctx context.Context, f model.TicketFilter) (model.Page[model.Ticket], error)
	Assign(ctx context.Context, id uuid.UUID, collectorID *uuid.UUID, by string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.TicketStatus) error
	SetPromise(ctx context.Context, id uuid.UUID, date *time.Time, amount *decimal.Decimal) error
	AddInvoices(ctx context.Context, id uuid.UUID, invoiceIDs []uuid.UUID) (int, error)
	Merge(ctx context.Context, targetID uuid.UUID, sourceIDs []uuid.UUID, actor string) error
	MergeEvents(ctx context.Context, targetID uuid.UUID) ([]model.TicketMergeEvent, error)
	AppendActivity(ctx context.Context, a model.TicketActivity) error
	Activity(ctx context.Context, ticketID uuid.UUID) ([]model.TicketActivity, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type InvoiceLookup interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Invoice, error)
}

type ProfileLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*model.UserProfile, error)
}

type CreateTicketInput struct {
	CustomerID          *uuid.UUID
	Title               string
	Priority            model.TicketPriority
	AssignedCollectorID *uuid.UUID
	InvoiceIDs          []uuid.UUID
}

type TicketService struct {
	tickets  TicketRepository
	invoices InvoiceLookup
	profiles ProfileLookup
	activity ActivityRecorder
}

func NewTicketService(tickets TicketRepository, invoices InvoiceLookup, profiles ProfileLookup, activity ActivityRecorder) *TicketService {
	return &TicketService{
		tickets:  tickets,
		invoices: invoices,
		profiles: profiles,
		activity: recorderOrNoop(activity),
	}
}

func (s *TicketService) Create(ctx context.Context, actor *model.UserProfile, in CreateTicketInput) (*model.Ticket, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if in.Priority == "" {
		in.Priority = model.PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidRequest, in.Priority)
	}

	invoiceIDs := dedupIDs(in.InvoiceIDs)
	if err := s.checkInvoices(ctx, invoiceIDs); err != nil {
		return nil, err
	}
	if in.AssignedCollectorID != nil {
		if err := s.checkCollector(ctx, *in.AssignedCollectorID); err != nil {
			return nil, err
		}
	}

	ticket, err := s.tickets.Create(ctx, model.TicketCreate{
		CustomerID:          in.CustomerID,
		Title:               in.Title,
		Priority:            in.Priority,
		AssignedCollectorID: in.AssignedCollectorID,
		InvoiceIDs:          invoiceIDs,
		CreatedBy:           actor.Actor(),
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, userActivity(actor, "ticket.create", "ticket", ticket.ID.String(), ticket.Title))
	return ticket, nil
}

func (s *TicketService) Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	return s.tickets.Get(ctx, id)
}

func (s *TicketService) List(ctx context.Context, f model.TicketFilter) (model.Page[model.Ticket], error) {
	return s.tickets.List(ctx, f)
}

func (s *TicketService) Activity(ctx context.Context, id uuid.UUID) ([]model.TicketActivity, error) {
	return s.tickets.Activity(ctx, id)
}

func (s *TicketService) MergeEvents(ctx context.Context, id uuid.UUID) ([]model.TicketMergeEvent, error) {
	return s.tickets.MergeEvents(ctx, id)
}

// Assign sets or clears (nil collector) the ticket's collector.
func (s *TicketService) Assign(ctx context.Context, actor *model.UserProfile, id uuid.UUID, collectorID *uuid.UUID) error {
	details := "unassigned"
	if collectorID != nil {
		if err := s.checkCollector(ctx, *collectorID); err != nil {
			return err
		}
		details = "assigned to " + collectorID.String()
	}

	err := s.tickets.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.tickets.Assign(ctx, id, collectorID, actor.Actor()); err != nil {
			return err
		}
		return s.appendActivity(ctx, id, actor, model.TicketActionAssigned, details)
	})
	if err != nil {
		return err
	}
	s.activity.Log(ctx, userActivity(actor, "ticket.assign", "ticket", id.String(), details))
	return nil
}

func (s *TicketService) ChangeStatus(ctx context.Context, actor *model.UserProfile, id uuid.UUID, to model.TicketStatus) (*model.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := ticket.Status
	if !from.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTicketTransition, from, to)
	}

	details := fmt.Sprintf("%s -> %s", from, to)
	err = s.tickets.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.tickets.UpdateStatus(ctx, id, from, to); err != nil {
			return err
		}
		return s.appendActivity(ctx, id, actor, model.TicketActionStatusChanged, details)
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, userActivity(actor, "ticket.status", "ticket", id.String(), details))
	return s.tickets.Get(ctx, id)
}

// SetPromise records the customer's promise on the ticket. Open tickets that
// allow it move to promised.
func (s *TicketService) SetPromise(ctx context.Context, actor *model.UserProfile, id uuid.UUID, date time.Time, amount *decimal.Decimal) (*model.Ticket, error) {
	if amount != nil && !amount.IsPositive() {
		return nil, fmt.Errorf("%w: promise amount must be positive", ErrInvalidRequest)
	}
	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.IsOpen() {
		return nil, ErrTicketClosed
	}

	details := "promise " + date.UTC().Format("2006-01-02")
	if amount != nil {
		details += " for " + amount.StringFixed(2)
	}
	err = s.tickets.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.tickets.SetPromise(ctx, id, &date, amount); err != nil {
			return err
		}
		if ticket.Status != model.TicketPromised && ticket.Status.CanTransition(model.TicketPromised) {
			if err := s.tickets.UpdateStatus(ctx, id, ticket.Status, model.TicketPromised); err != nil {
				return err
			}
		}
		return s.appendActivity(ctx, id, actor, model.TicketActionPromiseSet, details)
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, userActivity(actor, "ticket.promise", "ticket", id.String(), details))
	return s.tickets.Get(ctx, id)
}

func (s *TicketService) AddNote(ctx context.Context, actor *model.UserProfile, id uuid.UUID, note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return fmt.Errorf("%w: note is empty", ErrInvalidRequest)
	}
	if _, err := s.tickets.Get(ctx, id); err != nil {
		return err
	}
	return s.appendActivity(ctx, id, actor, model.TicketActionNote, note)
}

// AddInvoices links more invoices to an open ticket and returns how many were
// new.
func (s *TicketService) AddInvoices(ctx context.Context, actor *model.UserProfile, id uuid.UUID, invoiceIDs []uuid.UUID) (int, error) {
	invoiceIDs = dedupIDs(invoiceIDs)
	if len(invoiceIDs) == 0 {
		return 0, fmt.Errorf("%w: no invoices given", ErrInvalidRequest)
	}
	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ticket.Status.IsOpen() {
		return 0, ErrTicketClosed
	}
	if err := s.checkInvoices(ctx, invoiceIDs); err != nil {
		return 0, err
	}

	var added int
	err = s.tickets.WithinTransaction(ctx, func(ctx context.Context) error {
		n, err := s.tickets.AddInvoices(ctx, id, invoiceIDs)
		if err != nil {
			return err
		}
		added = n
		return s.appendActivity(ctx, id, actor, model.TicketActionInvoicesAdded, fmt.Sprintf("%d invoices added", n))
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// Merge folds the source tickets into target. Sources end up merged and their
// invoices move to target.
func (s *TicketService) Merge(ctx context.Context, actor *model.UserProfile, targetID uuid.UUID, sourceIDs []uuid.UUID) (*model.Ticket, error) {
	sources := make([]uuid.UUID, 0, len(sourceIDs))
	for _, id := range dedupIDs(sourceIDs) {
		if id != targetID {
			sources = append(sources, id)
		}
	}
	if len(sources) == 0 {
		return nil, ErrInvalidMerge
	}

	target, err := s.tickets.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !target.Status.IsOpen() {
		return nil, ErrTicketClosed
	}

	err = s.tickets.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.tickets.Merge(ctx, targetID, sources, actor.Actor()); err != nil {
			return err
		}
		for _, src := range sources {
			if err := s.appendActivity(ctx, src, actor, model.TicketActionMerged, "merged into "+targetID.String()); err != nil {
				return err
			}
		}
		return s.appendActivity(ctx, targetID, actor, model.TicketActionMerged, fmt.Sprintf("%d tickets merged in", len(sources)))
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, userActivity(actor, "ticket.merge", "ticket", targetID.String(), fmt.Sprintf("sources=%d", len(sources))))
	return s.tickets.Get(ctx, targetID)
}

func (s *TicketService) appendActivity(ctx context.Context, id uuid.UUID, actor *model.UserProfile, action, details string) error {
	return s.tickets.AppendActivity(ctx, model.TicketActivity{
		TicketID: id,
		Actor:    actor.Actor(),
		Action:   action,
		Details:  details,
	})
}

func (s *TicketService) checkInvoices(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.invoices.ListByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load invoices: %w", err)
	}
	if len(found) != len(ids) {
		return ErrUnknownInvoice
	}
	return nil
}

func (s *TicketService) checkCollector(ctx context.Context, id uuid.UUID) error {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return ErrInvalidCollector
	}
	if !p.IsActive || !p.Role.AtLeast(model.RoleCollector) {
		return ErrInvalidCollector
	}
	return nil
}

func dedupIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
