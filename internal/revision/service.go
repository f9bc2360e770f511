// Package revision holds the scheduling engine: generating revisions from
// completed study topics, advancing them through the stage cycle, and the
// complete/refuse/reactivate state machine.
package revision

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/medplan/internal/srs"
	"github.com/example/medplan/pkg/models"
)

// Store is the persistence contract for revisions. Implementations must
// enforce the pending-uniqueness rule atomically: Insert fails with
// DuplicateStageError when a pending revision for the same (topic, stage)
// pair already exists, and the Mark* transitions are conditional writes
// that fail with InvalidTransitionError when the revision is not in the
// required source state.
type Store interface {
	Insert(ctx context.Context, rev *models.Revision) error
	GetByID(ctx context.Context, id int64) (*models.Revision, error)
	// GetPending returns the pending revision for the pair, or nil when
	// none exists.
	GetPending(ctx context.Context, topicID int64, stage models.Stage) (*models.Revision, error)
	// ExistsForStage reports whether any pending or completed revision
	// exists for the pair. Refused revisions do not count: they no longer
	// occupy the stage.
	ExistsForStage(ctx context.Context, topicID int64, stage models.Stage) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Revision, error)
	ListUserIDsWithPending(ctx context.Context) ([]int64, error)
	MarkCompleted(ctx context.Context, id int64) (*models.Revision, error)
	MarkRefused(ctx context.Context, id int64) (*models.Revision, error)
	MarkReactivated(ctx context.Context, id int64) (*models.Revision, error)
	DeletePending(ctx context.Context, topicID int64) (int64, error)
}

// TopicStore is the narrow interface onto the study-topic collaborator:
// the scheduler only reads topics and flips their completion flag.
type TopicStore interface {
	GetByID(ctx context.Context, id int64) (*models.StudyTopic, error)
	SetCompleted(ctx context.Context, id int64, completedAt time.Time) error
	ClearCompleted(ctx context.Context, id int64) error
}

// Service coordinates the revision generator and mutator over the stores.
// Every date-dependent operation takes its anchor date from the caller.
type Service struct {
	revisions Store
	topics    TopicStore
	log       *zap.Logger
}

func NewService(revisions Store, topics TopicStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{revisions: revisions, topics: topics, log: log}
}

// HandleTopicCompleted marks the topic completed and schedules its first
// revision one day after the completion date. If a first-stage revision
// already exists (a retried request, or a re-completion after an undo
// whose history survived) nothing new is created and the existing pending
// revision, if any, is returned.
func (s *Service) HandleTopicCompleted(ctx context.Context, topicID int64, completedOn time.Time) (*models.Revision, error) {
	topic, err := s.topics.GetByID(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if err := s.topics.SetCompleted(ctx, topicID, completedOn); err != nil {
		return nil, err
	}

	// A completed D1 left behind by an earlier cycle is not guarded by
	// the pending-uniqueness index, so it is checked explicitly.
	exists, err := s.revisions.ExistsForStage(ctx, topicID, models.StageD1)
	if err != nil {
		return nil, err
	}
	if exists {
		s.log.Info("first revision already exists, skipping",
			zap.Int64("topic_id", topicID))
		return s.revisions.GetPending(ctx, topicID, models.StageD1)
	}

	return s.schedule(ctx, topic.UserID, topicID, models.StageD1, completedOn)
}

// HandleTopicUncompleted clears the topic's completion flag and deletes
// its pending revisions. Completed and refused revisions are kept as
// historical record.
func (s *Service) HandleTopicUncompleted(ctx context.Context, topicID int64) (int64, error) {
	if _, err := s.topics.GetByID(ctx, topicID); err != nil {
		return 0, err
	}
	if err := s.topics.ClearCompleted(ctx, topicID); err != nil {
		return 0, err
	}
	deleted, err := s.revisions.DeletePending(ctx, topicID)
	if err != nil {
		return 0, err
	}
	s.log.Info("cascade-deleted pending revisions",
		zap.Int64("topic_id", topicID),
		zap.Int64("deleted", deleted))
	return deleted, nil
}

// Complete moves a pending revision to completed and schedules the next
// stage anchored at completedOn. The returned next revision is nil when
// the completed stage was terminal. A second Complete for the same id
// fails with InvalidTransitionError and creates nothing.
func (s *Service) Complete(ctx context.Context, id int64, completedOn time.Time) (completed, next *models.Revision, err error) {
	completed, err = s.revisions.MarkCompleted(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	nextStage, ok, err := srs.NextStage(completed.Stage)
	if err != nil {
		return completed, nil, err
	}
	if !ok {
		// Terminal stage: the cycle ends here.
		return completed, nil, nil
	}

	next, err = s.schedule(ctx, completed.UserID, completed.TopicID, nextStage, completedOn)
	if err != nil {
		return completed, nil, &ScheduleNextError{CompletedID: completed.ID, NextStage: nextStage, Err: err}
	}
	return completed, next, nil
}

// Refuse moves a pending revision to refused. Refusal does not advance
// the cycle; the revision simply stops being actionable until reactivated.
func (s *Service) Refuse(ctx context.Context, id int64) (*models.Revision, error) {
	return s.revisions.MarkRefused(ctx, id)
}

// Reactivate returns a refused revision to pending. Its scheduled date is
// untouched, so it becomes due again under whatever bucket that date now
// falls into.
func (s *Service) Reactivate(ctx context.Context, id int64) (*models.Revision, error) {
	return s.revisions.MarkReactivated(ctx, id)
}

// Buckets fetches the user's revision snapshot and classifies it relative
// to the caller-supplied date.
func (s *Service) Buckets(ctx context.Context, userID int64, today time.Time) (srs.Buckets, error) {
	revisions, err := s.revisions.ListByUser(ctx, userID)
	if err != nil {
		return srs.Buckets{}, err
	}
	return srs.Classify(revisions, today)
}

// PendingUsers lists the ids of users who currently have at least one
// pending revision.
func (s *Service) PendingUsers(ctx context.Context) ([]int64, error) {
	return s.revisions.ListUserIDsWithPending(ctx)
}

// schedule inserts one revision for the stage, due offset days after the
// anchor date. A lost race against a concurrent insert is absorbed: the
// winning pending revision is returned instead.
func (s *Service) schedule(ctx context.Context, userID, topicID int64, stage models.Stage, anchor time.Time) (*models.Revision, error) {
	due, err := srs.ScheduledDate(stage, anchor)
	if err != nil {
		return nil, err
	}

	rev := &models.Revision{
		UserID:        userID,
		TopicID:       topicID,
		Stage:         stage,
		ScheduledDate: due,
	}
	if err := s.revisions.Insert(ctx, rev); err != nil {
		var dup *DuplicateStageError
		if errors.As(err, &dup) {
			s.log.Info("stage already scheduled",
				zap.Int64("topic_id", topicID),
				zap.String("stage", string(stage)))
			return s.revisions.GetPending(ctx, topicID, stage)
		}
		return nil, err
	}

	s.log.Info("revision scheduled",
		zap.Int64("topic_id", topicID),
		zap.String("stage", string(stage)),
		zap.Time("scheduled_date", due))
	return rev, nil
}
