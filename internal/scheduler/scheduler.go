// Package scheduler runs the periodic due-summary job: once a day it
// classifies every user's pending revisions and hands the counts to a
// Notifier. What the notifier does with them (push, email, nothing) is
// the surrounding application's business.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/example/medplan/internal/srs"
)

// DueSummary is what the notifier receives for one user.
type DueSummary struct {
	UserID   int64
	Today    int
	Tomorrow int
	Late     int
	Refused  int
}

// Notifier delivers due summaries.
type Notifier interface {
	SendDueSummary(ctx context.Context, summary DueSummary) error
}

// BucketSource is the slice of the revision service the job needs.
type BucketSource interface {
	PendingUsers(ctx context.Context) ([]int64, error)
	Buckets(ctx context.Context, userID int64, today time.Time) (srs.Buckets, error)
}

// Scheduler manages the recurring jobs for the service.
type Scheduler struct {
	scheduler *gocron.Scheduler
	source    BucketSource
	notifier  Notifier
	log       *zap.Logger
	hour      int
}

// New creates a scheduler that fires the due-summary job daily at the
// given hour (UTC).
func New(source BucketSource, notifier Notifier, hour int, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		source:    source,
		notifier:  notifier,
		log:       log,
		hour:      hour,
	}
}

// Start begins running all scheduled jobs without blocking.
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Day().At(fmt.Sprintf("%02d:00", s.hour)).Do(s.runDueSummaries)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RunDueSummaries forces an immediate summary pass, classified against
// the given date. Exposed for manual triggering and tests.
func (s *Scheduler) RunDueSummaries(ctx context.Context, today time.Time) error {
	users, err := s.source.PendingUsers(ctx)
	if err != nil {
		return err
	}

	for _, userID := range users {
		buckets, err := s.source.Buckets(ctx, userID, today)
		if err != nil {
			s.log.Error("classify revisions for summary",
				zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		if buckets.Empty() {
			continue
		}
		nToday, nTomorrow, nLate, nRefused := buckets.Counts()
		summary := DueSummary{
			UserID:   userID,
			Today:    nToday,
			Tomorrow: nTomorrow,
			Late:     nLate,
			Refused:  nRefused,
		}
		if err := s.notifier.SendDueSummary(ctx, summary); err != nil {
			s.log.Error("send due summary",
				zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return nil
}

// runDueSummaries is the cron entry point; the clock is read here, at the
// edge, never inside the classifier.
func (s *Scheduler) runDueSummaries() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.RunDueSummaries(ctx, time.Now()); err != nil {
		s.log.Error("due-summary run failed", zap.Error(err))
	}
}

// LogNotifier is the default Notifier: it logs the summary and delivers
// nothing. Real delivery plugs in from outside.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) SendDueSummary(_ context.Context, summary DueSummary) error {
	n.Log.Info("due summary",
		zap.Int64("user_id", summary.UserID),
		zap.Int("today", summary.Today),
		zap.Int("tomorrow", summary.Tomorrow),
		zap.Int("late", summary.Late),
		zap.Int("refused", summary.Refused))
	return nil
}
