package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gateway "github.com/nimasrn/ar-collections/internal/gateways"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/repository"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/prom"
	"github.com/nimasrn/ar-collections/pkg/redis"
	"github.com/oklog/ulid/v2"
)

var ErrSyncInProgress = errors.New("an ERP sync is already running")

const (
	syncLockKey = "sync:erp"
	syncLockTTL = 30 * time.Minute
)

type ERPSource interface {
	Customers(ctx context.Context, since time.Time) ([]gateway.ERPCustomer, error)
	Invoices(ctx context.Context, since time.Time) ([]gateway.ERPInvoice, error)
	Payments(ctx context.Context, since time.Time) ([]gateway.ERPPayment, error)
}

type SyncRunRepository interface {
	StartRun(ctx context.Context, run *model.SyncRun) error
	FinishRun(ctx context.Context, run *model.SyncRun) error
	LastSuccessfulRun(ctx context.Context) (*model.SyncRun, error)
	ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error)
	AppendChanges(ctx context.Context, logs []model.SyncChangeLog) error
	ChangesForRun(ctx context.Context, runID string) ([]model.SyncChangeLog, error)
}

type CustomerSyncRepository interface {
	Upsert(ctx context.Context, c *model.Customer) (model.UpsertResult, error)
	GetByAcumaticaID(ctx context.Context, acumaticaID string) (*model.Customer, error)
}

type InvoiceSyncRepository interface {
	Upsert(ctx context.Context, inv *model.Invoice) (model.UpsertResult, error)
	GetByReference(ctx context.Context, raw string) (*model.Invoice, error)
	BackfillCustomerNames(ctx context.Context) (int64, error)
}

type PaymentSyncRepository interface {
	Upsert(ctx context.Context, p *model.Payment) (model.UpsertResult, error)
	UpsertApplication(ctx context.Context, app model.PaymentApplication) error
}

// Locker is satisfied by the redis adapter.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

type SyncConfig struct {
	// lookback of the very first run
	InitialSince time.Duration
}

// SyncService pulls ERP records changed since the last successful run and
// upserts them, logging one change row per insert or update.
type SyncService struct {
	erp       ERPSource
	runs      SyncRunRepository
	customers CustomerSyncRepository
	invoices  InvoiceSyncRepository
	payments  PaymentSyncRepository
	locker    Locker
	config    SyncConfig
	now       func() time.Time
}

func NewSyncService(erp ERPSource, runs SyncRunRepository, customers CustomerSyncRepository, invoices InvoiceSyncRepository, payments PaymentSyncRepository, locker Locker, config SyncConfig) *SyncService {
	if config.InitialSince <= 0 {
		config.InitialSince = 365 * 24 * time.Hour
	}
	return &SyncService{
		erp:       erp,
		runs:      runs,
		customers: customers,
		invoices:  invoices,
		payments:  payments,
		locker:    locker,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// syncRun carries the per run state: the change rows collected so far and the
// ERP customer id -> local id cache.
type syncRun struct {
	run       *model.SyncRun
	changes   []model.SyncChangeLog
	customers map[string]uuid.UUID
}

func (r *syncRun) record(entity, key string, res model.UpsertResult, snapshot any) {
	if !res.Changed {
		return
	}
	action := model.SyncUpdate
	payload := any(res.Changes)
	if res.Created {
		action = model.SyncInsert
		payload = snapshot
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	r.changes = append(r.changes, model.SyncChangeLog{
		SyncRunID:  r.run.ID,
		EntityType: entity,
		EntityKey:  key,
		Action:     action,
		Changes:    string(data),
	})
}

// Run executes one sync. The run row always ends up finished, with the error
// recorded on it when the sync fails.
func (s *SyncService) Run(ctx context.Context) (*model.SyncRun, error) {
	if s.locker != nil {
		release, err := s.locker.TryLock(ctx, syncLockKey, syncLockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockNotObtained) {
				return nil, ErrSyncInProgress
			}
			return nil, fmt.Errorf("sync lock: %w", err)
		}
		defer release()
	}

	since, err := s.since(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()
	state := &syncRun{
		run: &model.SyncRun{
			ID:        ulid.Make().String(),
			Since:     &since,
			StartedAt: start,
		},
		customers: make(map[string]uuid.UUID),
	}
	if err := s.runs.StartRun(ctx, state.run); err != nil {
		return nil, fmt.Errorf("start sync run: %w", err)
	}
	logger.Info("ERP sync started", "run_id", state.run.ID, "since", since)

	syncErr := s.pull(ctx, state, since)

	// change rows are written even for a failed run so partial progress is visible
	if err := s.runs.AppendChanges(context.WithoutCancel(ctx), state.changes); err != nil {
		logger.Error("failed to write sync change logs", "run_id", state.run.ID, "error", err)
		syncErr = errors.Join(syncErr, err)
	}
	recordChangeMetrics(state.changes)

	finished := s.now()
	state.run.FinishedAt = &finished
	state.run.ChangesCount = len(state.changes)
	state.run.Status = model.SyncSucceeded
	result := "success"
	if syncErr != nil {
		state.run.Status = model.SyncFailed
		state.run.Error = syncErr.Error()
		result = "failed"
	}
	if err := s.runs.FinishRun(context.WithoutCancel(ctx), state.run); err != nil {
		logger.Error("failed to finish sync run", "run_id", state.run.ID, "error", err)
	}
	prom.ObserveSyncRun(result, finished.Sub(start).Seconds())

	if syncErr != nil {
		logger.Error("ERP sync failed", "run_id", state.run.ID, "error", syncErr)
		return state.run, syncErr
	}
	logger.Info("ERP sync finished", "run_id", state.run.ID,
		"customers", state.run.CustomersCount, "invoices", state.run.InvoicesCount,
		"payments", state.run.PaymentsCount, "changes", state.run.ChangesCount)
	return state.run, nil
}

func (s *SyncService) Runs(ctx context.Context, limit int) ([]model.SyncRun, error) {
	return s.runs.ListRuns(ctx, limit)
}

func (s *SyncService) Changes(ctx context.Context, runID string) ([]model.SyncChangeLog, error) {
	return s.runs.ChangesForRun(ctx, runID)
}

// since starts at the beginning of the last successful run, so records
// modified while it ran are picked up again.
func (s *SyncService) since(ctx context.Context) (time.Time, error) {
	last, err := s.runs.LastSuccessfulRun(ctx)
	if errors.Is(err, repository.ErrNoSuccessfulRun) {
		return s.now().Add(-s.config.InitialSince), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load last sync run: %w", err)
	}
	return last.StartedAt, nil
}

func (s *SyncService) pull(ctx context.Context, state *syncRun, since time.Time) error {
	if err := s.syncCustomers(ctx, state, since); err != nil {
		return fmt.Errorf("customers: %w", err)
	}
	if err := s.syncInvoices(ctx, state, since); err != nil {
		return fmt.Errorf("invoices: %w", err)
	}
	if err := s.syncPayments(ctx, state, since); err != nil {
		return fmt.Errorf("payments: %w", err)
	}
	n, err := s.invoices.BackfillCustomerNames(ctx)
	if err != nil {
		return fmt.Errorf("backfill customer names: %w", err)
	}
	if n > 0 {
		logger.Info("backfilled invoice customer names", "run_id", state.run.ID, "invoices", n)
	}
	return nil
}

func (s *SyncService) syncCustomers(ctx context.Context, state *syncRun, since time.Time) error {
	records, err := s.erp.Customers(ctx, since)
	if err != nil {
		return err
	}
	for _, rec := range records {
		c := rec.ToModel()
		if c.AcumaticaID == "" {
			logger.Warn("skipping ERP customer without id", "run_id", state.run.ID)
			continue
		}
		res, err := s.customers.Upsert(ctx, &c)
		if err != nil {
			return fmt.Errorf("upsert customer %s: %w", c.AcumaticaID, err)
		}
		state.customers[c.AcumaticaID] = res.ID
		state.record(model.SyncEntityCustomer, c.AcumaticaID, res, c)
		state.run.CustomersCount++
	}
	return nil
}

// customerID resolves an ERP customer id, first from this run then from the
// database. Unknown customers resolve to nil.
func (s *SyncService) customerID(ctx context.Context, state *syncRun, acumaticaID string) (*uuid.UUID, error) {
	acumaticaID = strings.TrimSpace(acumaticaID)
	if acumaticaID == "" {
		return nil, nil
	}
	if id, ok := state.customers[acumaticaID]; ok {
		return &id, nil
	}
	c, err := s.customers.GetByAcumaticaID(ctx, acumaticaID)
	if errors.Is(err, repository.ErrCustomerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	state.customers[acumaticaID] = c.ID
	return &c.ID, nil
}

func (s *SyncService) syncInvoices(ctx context.Context, state *syncRun, since time.Time) error {
	records, err := s.erp.Invoices(ctx, since)
	if err != nil {
		return err
	}
	for _, rec := range records {
		inv := rec.ToModel()
		ref, err := model.NormalizeReferenceNumber(inv.ReferenceNumber)
		if err != nil {
			logger.Warn("skipping ERP invoice with invalid reference", "run_id", state.run.ID, "reference", inv.ReferenceNumber)
			continue
		}
		inv.ReferenceNumber = ref

		customerID, err := s.customerID(ctx, state, rec.CustomerID.Value)
		if err != nil {
			return fmt.Errorf("resolve customer of invoice %s: %w", ref, err)
		}
		inv.CustomerID = customerID
		synced := state.run.StartedAt
		inv.LastSyncedAt = &synced

		res, err := s.invoices.Upsert(ctx, &inv)
		if err != nil {
			return fmt.Errorf("upsert invoice %s: %w", ref, err)
		}
		state.record(model.SyncEntityInvoice, ref, res, inv)
		state.run.InvoicesCount++
	}
	return nil
}

func (s *SyncService) syncPayments(ctx context.Context, state *syncRun, since time.Time) error {
	records, err := s.erp.Payments(ctx, since)
	if err != nil {
		return err
	}
	for _, rec := range records {
		p := rec.ToModel()
		if p.AcumaticaID == "" {
			continue
		}
		customerID, err := s.customerID(ctx, state, rec.CustomerID.Value)
		if err != nil {
			return fmt.Errorf("resolve customer of payment %s: %w", p.AcumaticaID, err)
		}
		p.CustomerID = customerID

		res, err := s.payments.Upsert(ctx, &p)
		if err != nil {
			return fmt.Errorf("upsert payment %s: %w", p.AcumaticaID, err)
		}
		state.record(model.SyncEntityPayment, p.AcumaticaID, res, p)
		state.run.PaymentsCount++

		if err := s.syncApplications(ctx, state, res.ID, p.AcumaticaID, rec.ApplicationHistory); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) syncApplications(ctx context.Context, state *syncRun, paymentID uuid.UUID, paymentKey string, apps []gateway.ERPApplication) error {
	for _, app := range apps {
		inv, err := s.invoices.GetByReference(ctx, app.AdjustedRefNbr.Value)
		if errors.Is(err, repository.ErrInvoiceNotFound) || errors.Is(err, model.ErrInvalidReferenceNumber) {
			logger.Debug("payment applied to unknown invoice", "payment", paymentKey, "reference", app.AdjustedRefNbr.Value)
			continue
		}
		if err != nil {
			return fmt.Errorf("resolve invoice of payment %s: %w", paymentKey, err)
		}

		err = s.payments.UpsertApplication(ctx, model.PaymentApplication{
			PaymentID:     paymentID,
			InvoiceID:     inv.ID,
			AmountApplied: app.AmountPaid.Value,
			AppliedAt:     app.Date.Value,
		})
		if err != nil {
			return fmt.Errorf("upsert application %s -> %s: %w", paymentKey, inv.ReferenceNumber, err)
		}
		// the upsert cannot tell insert from update, so applications are logged as updates
		state.record(model.SyncEntityApplication, paymentKey+"/"+inv.ReferenceNumber, model.UpsertResult{
			Changed: true,
			Changes: map[string]any{"amount_applied": app.AmountPaid.Value, "applied_at": app.Date.Value},
		}, nil)
	}
	return nil
}

func recordChangeMetrics(changes []model.SyncChangeLog) {
	counts := make(map[[2]string]int)
	for _, c := range changes {
		counts[[2]string{c.EntityType, string(c.Action)}]++
	}
	for k, n := range counts {
		prom.AddSyncChanges(k[0], k[1], n)
	}
}
