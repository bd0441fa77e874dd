package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/services"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
	"github.com/nimasrn/ar-collections/pkg/logger"
)

type SyncService interface {
	Run(ctx context.Context) (*model.SyncRun, error)
	Runs(ctx context.Context, limit int) ([]model.SyncRun, error)
	Changes(ctx context.Context, runID string) ([]model.SyncChangeLog, error)
}

// JobRunner is satisfied by *scheduler.Scheduler.
type JobRunner interface {
	RunOnce(ctx context.Context, name string) error
	Jobs() []string
}

type SyncHandler struct {
	svc     SyncService
	jobs    JobRunner
	timeout time.Duration
	// async runs fn off the request; tests make it synchronous
	async func(fn func())
}

// NewSyncHandler accepts a nil job runner; the jobs endpoints then answer 503.
func NewSyncHandler(svc SyncService, jobs JobRunner, timeout time.Duration) *SyncHandler {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SyncHandler{
		svc:     svc,
		jobs:    jobs,
		timeout: timeout,
		async:   func(fn func()) { go fn() },
	}
}

func RegisterSyncRoutes(g *xhttp.Group, a *Authenticator, h *SyncHandler) {
	g.POST("/sync/runs", a.Require(model.RoleManager, h.Trigger))
	g.GET("/sync/runs", a.Require(model.RoleManager, h.Runs))
	g.GET("/sync/runs/{id}/changes", a.Require(model.RoleManager, h.Changes))
	g.GET("/jobs", a.Require(model.RoleAdmin, h.Jobs))
	g.POST("/jobs/{name}/run", a.Require(model.RoleAdmin, h.RunJob))
}

// Trigger starts an ERP sync. With ?wait=true the run finishes before the
// response and its summary is returned, otherwise the answer is 202 at once.
func (h *SyncHandler) Trigger(ctx *xhttp.RequestCtx) {
	if xhttp.Query(ctx, "wait") == "true" {
		run, err := h.svc.Run(ctx)
		if err != nil && run == nil {
			writeServiceError(ctx, err)
			return
		}
		xhttp.WriteJSON(ctx, xhttp.StatusOK, run)
		return
	}

	requestedBy := actorFrom(ctx).Email
	h.async(func() {
		// the request ctx is recycled once the handler returns
		runCtx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		run, err := h.svc.Run(runCtx)
		switch {
		case errors.Is(err, services.ErrSyncInProgress):
			logger.Info("manual sync skipped, another run is active", "requested_by", requestedBy)
		case err != nil:
			logger.Error("manual sync failed", "requested_by", requestedBy, "error", err)
		default:
			logger.Info("manual sync finished", "requested_by", requestedBy, "run_id", run.ID, "changes", run.ChangesCount)
		}
	})
	xhttp.WriteJSON(ctx, xhttp.StatusAccepted, map[string]string{"status": "started"})
}

func (h *SyncHandler) Runs(ctx *xhttp.RequestCtx) {
	limit := xhttp.QueryInt(ctx, "limit", 20)
	if limit <= 0 || limit > maxLimit {
		limit = 20
	}
	runs, err := h.svc.Runs(ctx, limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]any{"items": runs})
}

func (h *SyncHandler) Changes(ctx *xhttp.RequestCtx) {
	changes, err := h.svc.Changes(ctx, xhttp.Param(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]any{"items": changes})
}

func (h *SyncHandler) Jobs(ctx *xhttp.RequestCtx) {
	if h.jobs == nil {
		xhttp.WriteError(ctx, xhttp.StatusServiceUnavailable, "jobs are not available")
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]any{"items": h.jobs.Jobs()})
}

// RunJob executes a scheduled job now. The job's lock still applies, so a run
// already active on another instance makes this a no-op.
func (h *SyncHandler) RunJob(ctx *xhttp.RequestCtx) {
	if h.jobs == nil {
		xhttp.WriteError(ctx, xhttp.StatusServiceUnavailable, "jobs are not available")
		return
	}
	name := xhttp.Param(ctx, "name")
	if err := h.jobs.RunOnce(ctx, name); err != nil {
		writeServiceError(ctx, err)
		return
	}
	xhttp.WriteJSON(ctx, xhttp.StatusOK, map[string]string{"job": name, "status": "done"})
}
