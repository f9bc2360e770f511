package revision

import (
	"fmt"

	"github.com/example/medplan/pkg/models"
)

// NotFoundError reports an operation that referenced a revision or study
// topic that does not exist.
type NotFoundError struct {
	Kind string // "revision" or "study topic"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// InvalidTransitionError reports a mutator call that is not legal from the
// revision's current state, e.g. completing an already-completed revision.
// Invalid transitions are surfaced, never silently ignored.
type InvalidTransitionError struct {
	RevisionID int64
	State      string // current state
	Attempted  string // attempted transition
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s revision %d: revision is %s", e.Attempted, e.RevisionID, e.State)
}

// DuplicateStageError reports an attempt to create a second pending
// revision for the same (topic, stage) pair. Under concurrent completion
// this is the expected losing-side outcome: the stage is already
// scheduled and the caller should proceed rather than retry.
type DuplicateStageError struct {
	TopicID int64
	Stage   models.Stage
}

func (e *DuplicateStageError) Error() string {
	return fmt.Sprintf("pending %s revision already exists for topic %d", e.Stage, e.TopicID)
}

// ScheduleNextError reports that a revision was durably completed but the
// next stage could not be created. The completion itself stands; a retry
// of the complete call reports InvalidTransitionError instead of
// double-creating, so the caller must schedule the missing stage
// explicitly or surface the fault.
type ScheduleNextError struct {
	CompletedID int64
	NextStage   models.Stage
	Err         error
}

func (e *ScheduleNextError) Error() string {
	return fmt.Sprintf("revision %d completed but scheduling %s failed: %v", e.CompletedID, e.NextStage, e.Err)
}

func (e *ScheduleNextError) Unwrap() error { return e.Err }
