package application

import (
	"context"
	"fmt"
	"log/slog"
)

// ActivityService exposes the per-user activity feed.
type ActivityService struct {
	activities ActivityRepository
	logger     *slog.Logger
}

// NewActivityService wires dependencies for activity operations.
func NewActivityService(deps Dependencies) *ActivityService {
	deps = deps.withDefaults()
	return &ActivityService{activities: deps.Repositories.Activities, logger: deps.Logger}
}

// ListActivities returns the principal's feed, newest first.
func (s *ActivityService) ListActivities(ctx context.Context, principal Principal) (activities []Activity, err error) {
	if s == nil {
		err = fmt.Errorf("ActivityService is nil")
		return
	}
	if s.activities == nil {
		err = fmt.Errorf("activity repository not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "ActivityService", "ListActivities", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list activities", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(activities)).InfoContext(ctx, "activities listed")
	}()

	listed, listErr := s.activities.ListActivities(ctx, principal.UserID)
	if listErr != nil {
		err = mapRepoError(listErr)
		return
	}
	activities = listed
	return
}

// MarkAllRead marks every unread activity of the principal as read.
func (s *ActivityService) MarkAllRead(ctx context.Context, principal Principal) (updated int, err error) {
	if s == nil {
		err = fmt.Errorf("ActivityService is nil")
		return
	}
	if s.activities == nil {
		err = fmt.Errorf("activity repository not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "ActivityService", "MarkAllRead", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to mark activities read", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("updated_count", updated).InfoContext(ctx, "activities marked read")
	}()

	updated, err = s.activities.MarkActivitiesRead(ctx, principal.UserID)
	err = mapRepoError(err)
	return
}
