package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	AutoTicketActor     = "system:auto-ticket"
	BrokenPromisesActor = "system:broken-promises"
)

type AutoRedRepository interface {
	AutoRedCandidates(ctx context.Context, now time.Time) ([]model.AutoRedCandidate, error)
	EscalateToRed(ctx context.Context, id uuid.UUID, actor, reason string) (bool, error)
	UnticketedOverdue(ctx context.Context, minBalance decimal.Decimal, dueBefore time.Time) ([]model.Invoice, error)
}

type RuleTicketRepository interface {
	Create(ctx context.Context, tc model.TicketCreate) (*model.Ticket, error)
	BrokenPromiseCandidates(ctx context.Context, now time.Time) ([]model.Ticket, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.TicketStatus) error
	AppendActivity(ctx context.Context, a model.TicketActivity) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type AutoTicketRuleRepository interface {
	List(ctx context.Context, onlyEnabled bool) ([]model.AutoTicketRule, error)
	Create(ctx context.Context, rule model.AutoTicketRule) (*model.AutoTicketRule, error)
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// RuleResult counts what one rule run touched.
type RuleResult struct {
	Examined int
	Affected int
	Failed   int
}

// CollectionRules holds the periodic rules that move invoices and tickets
// without a user: auto red escalation, auto ticket creation and broken
// promise flagging.
type CollectionRules struct {
	invoices AutoRedRepository
	tickets  RuleTicketRepository
	rules    AutoTicketRuleRepository
}

func NewCollectionRules(invoices AutoRedRepository, tickets RuleTicketRepository, rules AutoTicketRuleRepository) *CollectionRules {
	return &CollectionRules{
		invoices: invoices,
		tickets:  tickets,
		rules:    rules,
	}
}

// AutoUpdateInvoiceRedStatus escalates overdue invoices past their customer's
// threshold to red. Per invoice errors are logged and skipped.
func (c *CollectionRules) AutoUpdateInvoiceRedStatus(ctx context.Context, now time.Time) (RuleResult, error) {
	var res RuleResult
	candidates, err := c.invoices.AutoRedCandidates(ctx, now)
	if err != nil {
		return res, fmt.Errorf("load auto red candidates: %w", err)
	}

	for _, cand := range candidates {
		inv := cand.Invoice
		res.Examined++
		if !autoRedEligible(inv, cand.RedThresholdDays, now) {
			continue
		}

		reason := fmt.Sprintf("%d days past due exceeds customer threshold of %d", inv.DaysPastDue(now), cand.RedThresholdDays)
		changed, err := c.invoices.EscalateToRed(ctx, inv.ID, model.AutoRedActor, reason)
		if err != nil {
			res.Failed++
			logger.Error("auto red escalation failed", "invoice_id", inv.ID, "reference", inv.ReferenceNumber, "error", err)
			continue
		}
		if changed {
			res.Affected++
		}
	}

	logger.Info("auto red status run finished", "examined", res.Examined, "escalated", res.Affected, "failed", res.Failed)
	return res, nil
}

func autoRedEligible(inv model.Invoice, thresholdDays int, now time.Time) bool {
	if !inv.Balance.IsPositive() || inv.StatusLocked || inv.ColorStatus == model.ColorRed {
		return false
	}
	// a green invoice with a promise still in the future is left alone
	if inv.ColorStatus == model.ColorGreen && inv.PromiseDate != nil && !inv.PromiseDate.Before(now) {
		return false
	}
	return inv.DaysPastDue(now) > thresholdDays
}

// ApplyAutoTicketRules opens one ticket per customer for overdue invoices that
// match an enabled rule and are not on an open ticket yet.
func (c *CollectionRules) ApplyAutoTicketRules(ctx context.Context, now time.Time) (RuleResult, error) {
	var res RuleResult
	rules, err := c.rules.List(ctx, true)
	if err != nil {
		return res, fmt.Errorf("load auto ticket rules: %w", err)
	}

	for _, rule := range rules {
		dueBefore := now.AddDate(0, 0, -rule.MinDaysOverdue)
		invoices, err := c.invoices.UnticketedOverdue(ctx, rule.MinBalance, dueBefore)
		if err != nil {
			res.Failed++
			logger.Error("auto ticket rule query failed", "rule", rule.Name, "error", err)
			continue
		}
		res.Examined += len(invoices)

		for _, group := range groupByCustomer(invoices) {
			tc := model.TicketCreate{
				CustomerID:          group.customerID,
				Title:               autoTicketTitle(rule, group.invoices),
				Priority:            rule.Priority,
				AssignedCollectorID: rule.AssignTo,
				InvoiceIDs:          group.invoiceIDs(),
				CreatedBy:           AutoTicketActor,
			}
			ticket, err := c.tickets.Create(ctx, tc)
			if err != nil {
				res.Failed++
				logger.Error("auto ticket creation failed", "rule", rule.Name, "customer_id", group.customerID, "error", err)
				continue
			}
			res.Affected++
			logger.Debug("auto ticket created", "rule", rule.Name, "ticket_id", ticket.ID, "invoices", len(group.invoices))
		}
	}

	logger.Info("auto ticket rules run finished", "rules", len(rules), "invoices", res.Examined, "tickets", res.Affected, "failed", res.Failed)
	return res, nil
}

type customerGroup struct {
	customerID *uuid.UUID
	invoices   []model.Invoice
}

func (g customerGroup) invoiceIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(g.invoices))
	for _, inv := range g.invoices {
		ids = append(ids, inv.ID)
	}
	return ids
}

// groupByCustomer keeps the input order of first appearance. Invoices without
// a customer cannot be grouped and are dropped.
func groupByCustomer(invoices []model.Invoice) []customerGroup {
	index := make(map[uuid.UUID]int)
	var groups []customerGroup
	for _, inv := range invoices {
		if inv.CustomerID == nil {
			continue
		}
		i, ok := index[*inv.CustomerID]
		if !ok {
			id := *inv.CustomerID
			i = len(groups)
			index[id] = i
			groups = append(groups, customerGroup{customerID: &id})
		}
		groups[i].invoices = append(groups[i].invoices, inv)
	}
	return groups
}

func autoTicketTitle(rule model.AutoTicketRule, invoices []model.Invoice) string {
	name := invoices[0].CustomerName
	if name == "" {
		name = "customer"
	}
	refs := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		refs = append(refs, inv.ReferenceNumber)
	}
	return fmt.Sprintf("[%s] %s: %s", rule.Name, name, strings.Join(refs, ", "))
}

// FlagBrokenPromises moves promised tickets whose promise date passed to
// promise_broken. Tickets changed concurrently are skipped.
func (c *CollectionRules) FlagBrokenPromises(ctx context.Context, now time.Time) (RuleResult, error) {
	var res RuleResult
	tickets, err := c.tickets.BrokenPromiseCandidates(ctx, now)
	if err != nil {
		return res, fmt.Errorf("load broken promise candidates: %w", err)
	}

	for _, t := range tickets {
		res.Examined++
		err := c.tickets.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := c.tickets.UpdateStatus(ctx, t.ID, model.TicketPromised, model.TicketPromiseBroken); err != nil {
				return err
			}
			details := "promise date passed"
			if t.PromiseDate != nil {
				details = "promise date " + t.PromiseDate.UTC().Format("2006-01-02") + " passed"
			}
			return c.tickets.AppendActivity(ctx, model.TicketActivity{
				TicketID: t.ID,
				Actor:    BrokenPromisesActor,
				Action:   model.TicketActionPromiseBroken,
				Details:  details,
			})
		})
		switch {
		case err == nil:
			res.Affected++
		case errors.Is(err, repository.ErrTicketConflict):
			logger.Debug("ticket changed before broken promise flag", "ticket_id", t.ID)
		default:
			res.Failed++
			logger.Error("flag broken promise failed", "ticket_id", t.ID, "error", err)
		}
	}

	logger.Info("broken promise run finished", "examined", res.Examined, "flagged", res.Affected, "failed", res.Failed)
	return res, nil
}

func (c *CollectionRules) Rules(ctx context.Context) ([]model.AutoTicketRule, error) {
	return c.rules.List(ctx, false)
}

func (c *CollectionRules) CreateRule(ctx context.Context, rule model.AutoTicketRule) (*model.AutoTicketRule, error) {
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.Priority == "" {
		rule.Priority = model.PriorityNormal
	}
	if rule.Name == "" || rule.MinDaysOverdue < 0 || rule.MinBalance.IsNegative() || !rule.Priority.Valid() {
		return nil, fmt.Errorf("%w: rule needs a name, a valid priority and non-negative limits", ErrInvalidRequest)
	}
	return c.rules.Create(ctx, rule)
}

func (c *CollectionRules) SetRuleEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return c.rules.SetEnabled(ctx, id, enabled)
}
