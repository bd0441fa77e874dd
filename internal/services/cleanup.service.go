package services

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/logger"
)

// log tables pruned by CleanupOldSyncLogs
var cleanupTables = []string{"sync_change_logs", "user_activity_logs", "ticket_activity_log"}

type LogPruner interface {
	CleanupOlderThan(ctx context.Context, table string, cutoff time.Time, batchSize, maxBatches int) (model.CleanupResult, error)
}

type CleanupConfig struct {
	Retention  time.Duration
	BatchSize  int
	MaxBatches int
}

const (
	// MinCleanupRetention is the youngest a log row can be and still be pruned.
	MinCleanupRetention = 30 * 24 * time.Hour
	// MaxCleanupBatches bounds the deletes one table gets per run.
	MaxCleanupBatches = 5
)

func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Retention:  MinCleanupRetention,
		BatchSize:  1000,
		MaxBatches: MaxCleanupBatches,
	}
}

type CleanupService struct {
	pruner LogPruner
	config CleanupConfig
	now    func() time.Time
}

func NewCleanupService(pruner LogPruner, config CleanupConfig) *CleanupService {
	def := DefaultCleanupConfig()
	if config.Retention < MinCleanupRetention {
		if config.Retention > 0 {
			logger.Warn("cleanup retention below minimum, clamping", "configured", config.Retention, "min", MinCleanupRetention)
		}
		config.Retention = MinCleanupRetention
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxBatches > MaxCleanupBatches {
		logger.Warn("cleanup batch count above maximum, clamping", "configured", config.MaxBatches, "max", MaxCleanupBatches)
		config.MaxBatches = MaxCleanupBatches
	}
	if config.MaxBatches <= 0 {
		config.MaxBatches = def.MaxBatches
	}
	return &CleanupService{
		pruner: pruner,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CleanupOldSyncLogs prunes rows older than the retention from every log
// table. A failing table does not stop the others.
func (s *CleanupService) CleanupOldSyncLogs(ctx context.Context) ([]model.CleanupResult, error) {
	cutoff := s.now().Add(-s.config.Retention)
	results := make([]model.CleanupResult, 0, len(cleanupTables))
	var errs []error

	for _, table := range cleanupTables {
		res, err := s.pruner.CleanupOlderThan(ctx, table, cutoff, s.config.BatchSize, s.config.MaxBatches)
		results = append(results, res)
		if err != nil {
			logger.Error("log cleanup failed", "table", table, "deleted", res.Deleted, "error", err)
			errs = append(errs, err)
			continue
		}
		logger.Info("log cleanup finished", "table", table, "deleted", res.Deleted, "batches", res.Batches, "cutoff", cutoff)
	}
	return results, errors.Join(errs...)
}
