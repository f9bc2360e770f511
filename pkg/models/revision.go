package models

import "time"

// Revision represents one scheduled review of a completed study topic.
type Revision struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	TopicID       int64     `json:"topic_id" db:"topic_id"`
	Theme         string    `json:"theme" db:"theme"`           // joined from study_topics, display only
	Discipline    string    `json:"discipline" db:"discipline"` // joined from study_topics, display only
	Stage         Stage     `json:"stage" db:"stage"`
	ScheduledDate time.Time `json:"scheduled_date" db:"scheduled_date"`
	IsCompleted   bool      `json:"is_completed" db:"is_completed"`
	IsRefused     bool      `json:"is_refused" db:"is_refused"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Pending reports whether the revision is still actionable: neither
// completed nor refused.
func (r *Revision) Pending() bool {
	return !r.IsCompleted && !r.IsRefused
}

// State names the revision's current position in its lifecycle.
func (r *Revision) State() string {
	switch {
	case r.IsCompleted:
		return "completed"
	case r.IsRefused:
		return "refused"
	default:
		return "pending"
	}
}
