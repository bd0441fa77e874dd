package model

import (
	"time"

	"github.com/google/uuid"
)

type SyncStatus string

const (
	SyncRunning   SyncStatus = "running"
	SyncSucceeded SyncStatus = "succeeded"
	SyncFailed    SyncStatus = "failed"
)

const (
	SyncEntityCustomer    = "customer"
	SyncEntityInvoice     = "invoice"
	SyncEntityPayment     = "payment"
	SyncEntityApplication = "payment_application"
)

type SyncAction string

const (
	SyncInsert SyncAction = "insert"
	SyncUpdate SyncAction = "update"
)

type SyncRun struct {
	ID             string     `json:"id"`
	Status         SyncStatus `json:"status"`
	Since          *time.Time `json:"since"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	CustomersCount int        `json:"customers_count"`
	InvoicesCount  int        `json:"invoices_count"`
	PaymentsCount  int        `json:"payments_count"`
	ChangesCount   int        `json:"changes_count"`
	Error          string     `json:"error"`
}

type SyncChangeLog struct {
	ID         uuid.UUID  `json:"id"`
	SyncRunID  string     `json:"sync_run_id"`
	EntityType string     `json:"entity_type"`
	EntityKey  string     `json:"entity_key"`
	Action     SyncAction `json:"action"`
	Changes    string     `json:"changes"`
	CreatedAt  time.Time  `json:"created_at"`
}

// UpsertResult tells the sync which change log action to record.
type UpsertResult struct {
	ID      uuid.UUID
	Created bool
	Changed bool
	// column -> new value, filled for updates
	Changes map[string]any
}

// CleanupResult summarizes one batched prune of a log table.
type CleanupResult struct {
	Table   string `json:"table"`
	Deleted int64  `json:"deleted"`
	Batches int    `json:"batches"`
}
