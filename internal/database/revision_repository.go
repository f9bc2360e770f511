package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/example/medplan/internal/revision"
	"github.com/example/medplan/pkg/models"
)

// RevisionRepository handles database operations for revisions.
type RevisionRepository struct {
	db *sqlx.DB
}

func NewRevisionRepository(db *sqlx.DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

const selectRevision = `
	SELECT r.id, r.user_id, r.topic_id, r.stage, r.scheduled_date,
	       r.is_completed, r.is_refused, r.created_at, r.updated_at,
	       t.theme AS theme, t.discipline AS discipline
	FROM revisions r
	JOIN study_topics t ON t.id = r.topic_id`

// Insert persists a new revision. A pending revision already occupying
// the (topic, stage) pair fails with DuplicateStageError via the partial
// unique index, which keeps the check-then-insert atomic under
// concurrent completions.
func (r *RevisionRepository) Insert(ctx context.Context, rev *models.Revision) error {
	if _, err := models.ParseStage(string(rev.Stage)); err != nil {
		return err
	}

	if r.db.DriverName() == "postgres" {
		query := r.db.Rebind(`
			INSERT INTO revisions (user_id, topic_id, stage, scheduled_date, is_completed, is_refused)
			VALUES (?, ?, ?, ?, FALSE, FALSE)
			RETURNING id`)
		if err := r.db.QueryRowxContext(ctx, query,
			rev.UserID, rev.TopicID, rev.Stage, rev.ScheduledDate,
		).Scan(&rev.ID); err != nil {
			return r.insertError(err, rev)
		}
	} else {
		res, err := r.db.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO revisions (user_id, topic_id, stage, scheduled_date, is_completed, is_refused)
			VALUES (?, ?, ?, ?, FALSE, FALSE)`),
			rev.UserID, rev.TopicID, rev.Stage, rev.ScheduledDate,
		)
		if err != nil {
			return r.insertError(err, rev)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "last insert id")
		}
		rev.ID = id
	}

	fresh, err := r.GetByID(ctx, rev.ID)
	if err != nil {
		return err
	}
	*rev = *fresh
	return nil
}

func (r *RevisionRepository) insertError(err error, rev *models.Revision) error {
	if isUniqueViolation(err) {
		return &revision.DuplicateStageError{TopicID: rev.TopicID, Stage: rev.Stage}
	}
	return errors.Wrap(err, "insert revision")
}

// GetByID returns one revision joined with its topic's display fields.
func (r *RevisionRepository) GetByID(ctx context.Context, id int64) (*models.Revision, error) {
	var rev models.Revision
	query := r.db.Rebind(selectRevision + ` WHERE r.id = ?`)
	if err := r.db.GetContext(ctx, &rev, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &revision.NotFoundError{Kind: "revision", ID: id}
		}
		return nil, errors.Wrap(err, "get revision")
	}
	if _, err := models.ParseStage(string(rev.Stage)); err != nil {
		return nil, err
	}
	return &rev, nil
}

// GetPending returns the pending revision for the (topic, stage) pair, or
// nil when none exists.
func (r *RevisionRepository) GetPending(ctx context.Context, topicID int64, stage models.Stage) (*models.Revision, error) {
	var rev models.Revision
	query := r.db.Rebind(selectRevision + `
		WHERE r.topic_id = ? AND r.stage = ? AND NOT r.is_completed AND NOT r.is_refused`)
	if err := r.db.GetContext(ctx, &rev, query, topicID, stage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get pending revision")
	}
	return &rev, nil
}

// ExistsForStage reports whether a pending or completed revision occupies
// the (topic, stage) pair. Refused revisions do not count.
func (r *RevisionRepository) ExistsForStage(ctx context.Context, topicID int64, stage models.Stage) (bool, error) {
	var count int
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM revisions
		WHERE topic_id = ? AND stage = ? AND NOT is_refused`)
	if err := r.db.GetContext(ctx, &count, query, topicID, stage); err != nil {
		return false, errors.Wrap(err, "count revisions for stage")
	}
	return count > 0, nil
}

// ListByUser returns the user's full revision snapshot, joined with topic
// theme and discipline for display.
func (r *RevisionRepository) ListByUser(ctx context.Context, userID int64) ([]models.Revision, error) {
	var revisions []models.Revision
	query := r.db.Rebind(selectRevision + `
		WHERE r.user_id = ?
		ORDER BY r.scheduled_date ASC, r.id ASC`)
	if err := r.db.SelectContext(ctx, &revisions, query, userID); err != nil {
		return nil, errors.Wrap(err, "list revisions")
	}
	for i := range revisions {
		if _, err := models.ParseStage(string(revisions[i].Stage)); err != nil {
			return nil, err
		}
	}
	return revisions, nil
}

// ListUserIDsWithPending returns the ids of users holding at least one
// pending revision.
func (r *RevisionRepository) ListUserIDsWithPending(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := `
		SELECT DISTINCT user_id FROM revisions
		WHERE NOT is_completed AND NOT is_refused
		ORDER BY user_id`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, errors.Wrap(err, "list users with pending revisions")
	}
	return ids, nil
}

// MarkCompleted transitions a pending revision to completed. The write is
// conditional on the current state, so concurrent or repeated calls
// cannot both succeed.
func (r *RevisionRepository) MarkCompleted(ctx context.Context, id int64) (*models.Revision, error) {
	return r.transition(ctx, id, "complete", `
		UPDATE revisions
		SET is_completed = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND NOT is_completed AND NOT is_refused`)
}

// MarkRefused transitions a pending revision to refused.
func (r *RevisionRepository) MarkRefused(ctx context.Context, id int64) (*models.Revision, error) {
	return r.transition(ctx, id, "refuse", `
		UPDATE revisions
		SET is_refused = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND NOT is_completed AND NOT is_refused`)
}

// MarkReactivated transitions a refused revision back to pending. The
// scheduled date is left untouched.
func (r *RevisionRepository) MarkReactivated(ctx context.Context, id int64) (*models.Revision, error) {
	return r.transition(ctx, id, "reactivate", `
		UPDATE revisions
		SET is_refused = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_refused AND NOT is_completed`)
}

func (r *RevisionRepository) transition(ctx context.Context, id int64, name, query string) (*models.Revision, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), id)
	if err != nil {
		return nil, errors.Wrapf(err, "%s revision", name)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "rows affected")
	}
	if rows == 0 {
		// Either the revision is missing or it is not in the source
		// state for this transition; report which.
		cur, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &revision.InvalidTransitionError{RevisionID: id, State: cur.State(), Attempted: name}
	}
	return r.GetByID(ctx, id)
}

// DeletePending removes all pending revisions of a topic. Completed and
// refused rows are kept.
func (r *RevisionRepository) DeletePending(ctx context.Context, topicID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM revisions
		WHERE topic_id = ? AND NOT is_completed AND NOT is_refused`), topicID)
	if err != nil {
		return 0, errors.Wrap(err, "delete pending revisions")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return rows, nil
}

// isUniqueViolation recognizes unique-constraint failures from both
// supported drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
