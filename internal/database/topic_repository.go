package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/medplan/internal/revision"
	"github.com/example/medplan/pkg/models"
)

// TopicRepository handles database operations for study topics. Topic
// CRUD proper belongs to the surrounding application; this repository
// carries only what the scheduler and the plan importer need.
type TopicRepository struct {
	db *sqlx.DB
}

func NewTopicRepository(db *sqlx.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// Create persists a new study topic.
func (r *TopicRepository) Create(ctx context.Context, topic *models.StudyTopic) error {
	if r.db.DriverName() == "postgres" {
		query := r.db.Rebind(`
			INSERT INTO study_topics (user_id, theme, discipline, planned_date)
			VALUES (?, ?, ?, ?)
			RETURNING id`)
		if err := r.db.QueryRowxContext(ctx, query,
			topic.UserID, topic.Theme, topic.Discipline, topic.PlannedDate,
		).Scan(&topic.ID); err != nil {
			return errors.Wrap(err, "insert study topic")
		}
	} else {
		res, err := r.db.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO study_topics (user_id, theme, discipline, planned_date)
			VALUES (?, ?, ?, ?)`),
			topic.UserID, topic.Theme, topic.Discipline, topic.PlannedDate,
		)
		if err != nil {
			return errors.Wrap(err, "insert study topic")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "last insert id")
		}
		topic.ID = id
	}
	return nil
}

// GetByID returns one study topic.
func (r *TopicRepository) GetByID(ctx context.Context, id int64) (*models.StudyTopic, error) {
	var topic models.StudyTopic
	query := r.db.Rebind(`SELECT * FROM study_topics WHERE id = ?`)
	if err := r.db.GetContext(ctx, &topic, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &revision.NotFoundError{Kind: "study topic", ID: id}
		}
		return nil, errors.Wrap(err, "get study topic")
	}
	return &topic, nil
}

// ExistsByTheme reports whether the user already has a topic with the
// theme. Used by the plan importer to skip duplicates.
func (r *TopicRepository) ExistsByTheme(ctx context.Context, userID int64, theme string) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM study_topics WHERE user_id = ? AND theme = ?`)
	if err := r.db.GetContext(ctx, &count, query, userID, theme); err != nil {
		return false, errors.Wrap(err, "count topics by theme")
	}
	return count > 0, nil
}

// SetCompleted flips the topic to completed.
func (r *TopicRepository) SetCompleted(ctx context.Context, id int64, completedAt time.Time) error {
	return r.setCompletion(ctx, id, true, &completedAt)
}

// ClearCompleted flips the topic back to incomplete.
func (r *TopicRepository) ClearCompleted(ctx context.Context, id int64) error {
	return r.setCompletion(ctx, id, false, nil)
}

func (r *TopicRepository) setCompletion(ctx context.Context, id int64, completed bool, at *time.Time) error {
	query := r.db.Rebind(`
		UPDATE study_topics
		SET is_completed = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, completed, at, id)
	if err != nil {
		return errors.Wrap(err, "update topic completion")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if rows == 0 {
		return &revision.NotFoundError{Kind: "study topic", ID: id}
	}
	return nil
}
