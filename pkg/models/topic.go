package models

import "time"

// StudyTopic is the slice of the study-topic record the scheduler works
// with. The topic itself is owned by the surrounding application; the
// scheduler reads theme and discipline for display and reacts to the
// completion flag flipping.
type StudyTopic struct {
	ID          int64      `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	Theme       string     `json:"theme" db:"theme"`
	Discipline  string     `json:"discipline" db:"discipline"`
	PlannedDate time.Time  `json:"planned_date" db:"planned_date"`
	IsCompleted bool       `json:"is_completed" db:"is_completed"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
