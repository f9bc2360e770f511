// Package srs implements the fixed three-stage revision cycle: the stage
// transition table and the pure classifier that partitions a user's
// revisions into actionable buckets. Nothing in this package touches a
// clock or a database; "today" is always an explicit parameter.
package srs

import (
	"time"

	"github.com/example/medplan/pkg/models"
)

type stageDef struct {
	offsetDays int
	rank       int
	next       models.Stage
	terminal   bool
}

// The whole cycle: completing a topic unlocks D1 one day out, completing
// D1 unlocks D7 seven days out, completing D7 unlocks D30 thirty days
// out. D30 is terminal.
var stageTable = map[models.Stage]stageDef{
	models.StageD1:  {offsetDays: 1, rank: 0, next: models.StageD7},
	models.StageD7:  {offsetDays: 7, rank: 1, next: models.StageD30},
	models.StageD30: {offsetDays: 30, rank: 2, terminal: true},
}

func lookup(s models.Stage) (stageDef, error) {
	def, ok := stageTable[s]
	if !ok {
		return stageDef{}, &models.UnknownStageError{Value: string(s)}
	}
	return def, nil
}

// OffsetDays returns the number of days between the completion event that
// schedules a stage and the date the stage falls due.
func OffsetDays(s models.Stage) (int, error) {
	def, err := lookup(s)
	if err != nil {
		return 0, err
	}
	return def.offsetDays, nil
}

// NextStage returns the stage unlocked by completing s. ok is false when s
// is the terminal stage and the cycle ends.
func NextStage(s models.Stage) (next models.Stage, ok bool, err error) {
	def, err := lookup(s)
	if err != nil {
		return "", false, err
	}
	if def.terminal {
		return "", false, nil
	}
	return def.next, true, nil
}

// ScheduledDate computes the calendar date a stage falls due, anchored at
// the day of the completion event that scheduled it. The result is fixed
// at creation time and never recomputed.
func ScheduledDate(s models.Stage, anchor time.Time) (time.Time, error) {
	off, err := OffsetDays(s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(anchor).AddDate(0, 0, off), nil
}

// Day truncates a timestamp to its calendar date (midnight UTC).
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
