package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/services"
	"github.com/nimasrn/ar-collections/pkg/logger"
)

const (
	JobAutoRed         = "auto-red"
	JobAutoTickets     = "auto-tickets"
	JobBrokenPromises  = "broken-promises"
	JobERPSync         = "erp-sync"
	JobDispatchEmails  = "dispatch-emails"
	JobDueReminders    = "due-reminders"
	JobCleanupSyncLogs = "cleanup-sync-logs"
	JobEdgeCallbacks   = "edge-callbacks"
)

type CollectionRules interface {
	AutoUpdateInvoiceRedStatus(ctx context.Context, now time.Time) (services.RuleResult, error)
	ApplyAutoTicketRules(ctx context.Context, now time.Time) (services.RuleResult, error)
	FlagBrokenPromises(ctx context.Context, now time.Time) (services.RuleResult, error)
}

type ERPSync interface {
	Run(ctx context.Context) (*model.SyncRun, error)
}

type EmailJobs interface {
	DispatchDue(ctx context.Context) (int, error)
	ScheduleDueReminders(ctx context.Context) (int, error)
}

type LogCleaner interface {
	CleanupOldSyncLogs(ctx context.Context) ([]model.CleanupResult, error)
}

// EdgeInvoker is satisfied by *gateway.EdgeClient.
type EdgeInvoker interface {
	Invoke(ctx context.Context, function string, payload any) ([]byte, error)
}

// Intervals per job. A zero interval leaves the job out.
type Intervals struct {
	AutoRed        time.Duration
	AutoTickets    time.Duration
	BrokenPromises time.Duration
	ERPSync        time.Duration
	DispatchEmails time.Duration
	DueReminders   time.Duration
	Cleanup        time.Duration
	EdgeCallbacks  time.Duration
}

// Dependencies of the built in jobs. Nil members leave their jobs out.
type Dependencies struct {
	Rules         CollectionRules
	Sync          ERPSync
	Emails        EmailJobs
	Cleaner       LogCleaner
	Edge          EdgeInvoker
	EdgeFunctions []string
	Now           func() time.Time
}

// DefaultJobs builds the job set the worker binary runs.
func DefaultJobs(intervals Intervals, deps Dependencies) []Job {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	var jobs []Job
	add := func(job Job) {
		if job.Interval > 0 {
			jobs = append(jobs, job)
		}
	}

	if deps.Rules != nil {
		add(Job{Name: JobAutoRed, Interval: intervals.AutoRed, Run: ruleJob(func(ctx context.Context) (services.RuleResult, error) {
			return deps.Rules.AutoUpdateInvoiceRedStatus(ctx, now())
		})})
		add(Job{Name: JobAutoTickets, Interval: intervals.AutoTickets, Run: ruleJob(func(ctx context.Context) (services.RuleResult, error) {
			return deps.Rules.ApplyAutoTicketRules(ctx, now())
		})})
		add(Job{Name: JobBrokenPromises, Interval: intervals.BrokenPromises, Run: ruleJob(func(ctx context.Context) (services.RuleResult, error) {
			return deps.Rules.FlagBrokenPromises(ctx, now())
		})})
	}

	if deps.Sync != nil {
		add(Job{
			Name:      JobERPSync,
			Interval:  intervals.ERPSync,
			LockTTL:   30 * time.Minute,
			Immediate: true,
			Run:       syncJob(deps.Sync),
		})
	}

	if deps.Emails != nil {
		add(Job{Name: JobDispatchEmails, Interval: intervals.DispatchEmails, Immediate: true, Run: func(ctx context.Context) (int64, error) {
			n, err := deps.Emails.DispatchDue(ctx)
			return int64(n), err
		}})
		add(Job{Name: JobDueReminders, Interval: intervals.DueReminders, Run: func(ctx context.Context) (int64, error) {
			n, err := deps.Emails.ScheduleDueReminders(ctx)
			return int64(n), err
		}})
	}

	if deps.Cleaner != nil {
		add(Job{Name: JobCleanupSyncLogs, Interval: intervals.Cleanup, Run: cleanupJob(deps.Cleaner)})
	}

	if deps.Edge != nil && len(deps.EdgeFunctions) > 0 {
		add(Job{Name: JobEdgeCallbacks, Interval: intervals.EdgeCallbacks, Run: edgeJob(deps.Edge, deps.EdgeFunctions, now)})
	}

	return jobs
}

func ruleJob(run func(ctx context.Context) (services.RuleResult, error)) JobFunc {
	return func(ctx context.Context) (int64, error) {
		res, err := run(ctx)
		if res.Failed > 0 {
			logger.Warn("rule run had failures", "examined", res.Examined, "affected", res.Affected, "failed", res.Failed)
		}
		return int64(res.Affected), err
	}
}

func syncJob(sync ERPSync) JobFunc {
	return func(ctx context.Context) (int64, error) {
		run, err := sync.Run(ctx)
		if errors.Is(err, services.ErrSyncInProgress) {
			logger.Info("ERP sync already running, skipping")
			return 0, nil
		}
		if run == nil {
			return 0, err
		}
		return int64(run.ChangesCount), err
	}
}

func cleanupJob(cleaner LogCleaner) JobFunc {
	return func(ctx context.Context) (int64, error) {
		results, err := cleaner.CleanupOldSyncLogs(ctx)
		var deleted int64
		for _, r := range results {
			deleted += r.Deleted
		}
		return deleted, err
	}
}

// edgeJob pings every configured edge function. One failing function does not
// keep the others from running.
func edgeJob(edge EdgeInvoker, functions []string, now func() time.Time) JobFunc {
	return func(ctx context.Context) (int64, error) {
		var (
			invoked int64
			errs    []error
		)
		payload := map[string]any{"triggered_at": now().Format(time.RFC3339)}
		for _, fn := range functions {
			if _, err := edge.Invoke(ctx, fn, payload); err != nil {
				logger.Error("edge callback failed", "function", fn, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", fn, err))
				continue
			}
			invoked++
		}
		return invoked, errors.Join(errs...)
	}
}

// ParseFunctions splits a comma separated list of edge function names.
func ParseFunctions(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}
