package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrSyncRunNotFound = errors.New("sync run not found")
	ErrNoSuccessfulRun = errors.New("no successful sync run")
	errUnknownLogTable = errors.New("table is not a prunable log table")
)

// tables CleanupOlderThan may delete from
var prunableLogTables = map[string]struct{}{
	"sync_change_logs":    {},
	"user_activity_logs":  {},
	"ticket_activity_log": {},
}

type SyncRepository struct {
	*pg.DB
}

func NewSyncRepository(db *pg.DB) *SyncRepository {
	return &SyncRepository{db}
}

func (r *SyncRepository) StartRun(ctx context.Context, run *model.SyncRun) error {
	run.Status = model.SyncRunning
	return r.Write(ctx).Create(toSyncRunEntity(run)).Error
}

func (r *SyncRepository) FinishRun(ctx context.Context, run *model.SyncRun) error {
	tx := r.Write(ctx).Model(&SyncRunEntity{}).Where("id = ?", run.ID).Updates(map[string]any{
		"status":          string(run.Status),
		"finished_at":     run.FinishedAt,
		"customers_count": run.CustomersCount,
		"invoices_count":  run.InvoicesCount,
		"payments_count":  run.PaymentsCount,
		"changes_count":   run.ChangesCount,
		"error":           run.Error,
	})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrSyncRunNotFound
	}
	return nil
}

func (r *SyncRepository) LastSuccessfulRun(ctx context.Context) (*model.SyncRun, error) {
	var e SyncRunEntity
	err := r.Read(ctx).Where("status = ?", string(model.SyncSucceeded)).Order("started_at DESC").First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSuccessfulRun
		}
		return nil, err
	}
	return toSyncRunModel(&e), nil
}

func (r *SyncRepository) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	limit, _ = model.ClampPage(limit, 0)
	var entities []*SyncRunEntity
	if err := r.Read(ctx).Order("started_at DESC").Limit(limit).Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]model.SyncRun, 0, len(entities))
	for _, e := range entities {
		out = append(out, *toSyncRunModel(e))
	}
	return out, nil
}

func (r *SyncRepository) AppendChanges(ctx context.Context, logs []model.SyncChangeLog) error {
	if len(logs) == 0 {
		return nil
	}
	entities := make([]*SyncChangeLogEntity, 0, len(logs))
	for _, l := range logs {
		entities = append(entities, &SyncChangeLogEntity{
			SyncRunID:  nullableString(l.SyncRunID),
			EntityType: l.EntityType,
			EntityKey:  l.EntityKey,
			Action:     string(l.Action),
			Changes:    l.Changes,
		})
	}
	return r.Write(ctx).CreateInBatches(entities, 500).Error
}

func (r *SyncRepository) ChangesForRun(ctx context.Context, runID string) ([]model.SyncChangeLog, error) {
	var entities []*SyncChangeLogEntity
	if err := r.Read(ctx).Where("sync_run_id = ?", runID).Order("created_at").Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]model.SyncChangeLog, 0, len(entities))
	for _, e := range entities {
		out = append(out, toSyncChangeLogModel(e))
	}
	return out, nil
}

// CleanupOlderThan deletes rows of a log table created before cutoff, at most
// batchSize rows per statement and at most maxBatches statements. It stops
// early once a batch comes back short.
func (r *SyncRepository) CleanupOlderThan(ctx context.Context, table string, cutoff time.Time, batchSize, maxBatches int) (model.CleanupResult, error) {
	res := model.CleanupResult{Table: table}
	if _, ok := prunableLogTables[table]; !ok {
		return res, fmt.Errorf("%w: %s", errUnknownLogTable, table)
	}

	stmt := fmt.Sprintf(
		"DELETE FROM %s WHERE id IN (SELECT id FROM %s WHERE created_at < ? ORDER BY created_at LIMIT ?)",
		table, table,
	)
	for res.Batches < maxBatches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		tx := r.Write(ctx).Exec(stmt, cutoff.UTC(), batchSize)
		if tx.Error != nil {
			return res, tx.Error
		}
		res.Batches++
		res.Deleted += tx.RowsAffected
		if tx.RowsAffected < int64(batchSize) {
			break
		}
	}
	return res, nil
}
