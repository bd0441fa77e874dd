package services

import (
	"context"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/logger"
)

type ActivityRepository interface {
	Append(ctx context.Context, l *model.UserActivityLog) error
	List(ctx context.Context, f model.ActivityFilter) (model.Page[model.UserActivityLog], error)
}

// ActivityRecorder is what the other services use to audit user actions.
type ActivityRecorder interface {
	Log(ctx context.Context, entry model.UserActivityLog)
}

type ActivityService struct {
	repo ActivityRepository
}

func NewActivityService(repo ActivityRepository) *ActivityService {
	return &ActivityService{repo: repo}
}

// Log is best effort: a failed audit write never fails the audited action.
func (s *ActivityService) Log(ctx context.Context, entry model.UserActivityLog) {
	if err := s.repo.Append(ctx, &entry); err != nil {
		logger.Warn("failed to write user activity", "action", entry.Action, "entity", entry.EntityType, "entity_id", entry.EntityID, "error", err)
	}
}

func (s *ActivityService) List(ctx context.Context, f model.ActivityFilter) (model.Page[model.UserActivityLog], error) {
	return s.repo.List(ctx, f)
}

// userActivity builds an audit entry for a domain action taken by actor.
func userActivity(actor *model.UserProfile, action, entityType, entityID, details string) model.UserActivityLog {
	entry := model.UserActivityLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	}
	if actor != nil {
		id := actor.ID
		entry.UserID = &id
	}
	return entry
}

type noopRecorder struct{}

func (noopRecorder) Log(context.Context, model.UserActivityLog) {}

func recorderOrNoop(r ActivityRecorder) ActivityRecorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}
