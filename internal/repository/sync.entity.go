package repository

import (
	"time"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
)

type SyncRunEntity struct {
	ID             string     `gorm:"column:id;primaryKey"`
	Status         string     `gorm:"column:status;not null"`
	Since          *time.Time `gorm:"column:since"`
	StartedAt      time.Time  `gorm:"column:started_at;not null"`
	FinishedAt     *time.Time `gorm:"column:finished_at"`
	CustomersCount int        `gorm:"column:customers_count;not null"`
	InvoicesCount  int        `gorm:"column:invoices_count;not null"`
	PaymentsCount  int        `gorm:"column:payments_count;not null"`
	ChangesCount   int        `gorm:"column:changes_count;not null"`
	Error          string     `gorm:"column:error;not null"`
}

func (SyncRunEntity) TableName() string {
	return "sync_runs"
}

type SyncChangeLogEntity struct {
	pg.Model
	SyncRunID  *string `gorm:"column:sync_run_id;index"`
	EntityType string  `gorm:"column:entity_type;not null"`
	EntityKey  string  `gorm:"column:entity_key;not null"`
	Action     string  `gorm:"column:action;not null"`
	Changes    string  `gorm:"column:changes;not null"`
}

func (SyncChangeLogEntity) TableName() string {
	return "sync_change_logs"
}

func toSyncRunEntity(m *model.SyncRun) *SyncRunEntity {
	return &SyncRunEntity{
		ID:             m.ID,
		Status:         string(m.Status),
		Since:          m.Since,
		StartedAt:      m.StartedAt.UTC(),
		FinishedAt:     m.FinishedAt,
		CustomersCount: m.CustomersCount,
		InvoicesCount:  m.InvoicesCount,
		PaymentsCount:  m.PaymentsCount,
		ChangesCount:   m.ChangesCount,
		Error:          m.Error,
	}
}

func toSyncRunModel(e *SyncRunEntity) *model.SyncRun {
	return &model.SyncRun{
		ID:             e.ID,
		Status:         model.SyncStatus(e.Status),
		Since:          e.Since,
		StartedAt:      e.StartedAt,
		FinishedAt:     e.FinishedAt,
		CustomersCount: e.CustomersCount,
		InvoicesCount:  e.InvoicesCount,
		PaymentsCount:  e.PaymentsCount,
		ChangesCount:   e.ChangesCount,
		Error:          e.Error,
	}
}

func toSyncChangeLogModel(e *SyncChangeLogEntity) model.SyncChangeLog {
	return model.SyncChangeLog{
		ID:         e.ID,
		SyncRunID:  derefString(e.SyncRunID),
		EntityType: e.EntityType,
		EntityKey:  e.EntityKey,
		Action:     model.SyncAction(e.Action),
		Changes:    e.Changes,
		CreatedAt:  e.CreatedAt,
	}
}
