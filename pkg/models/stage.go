package models

import "fmt"

// Stage identifies one of the three fixed points in the revision cycle,
// named by its day-offset from the completion event that scheduled it.
type Stage string

const (
	StageD1  Stage = "D1"
	StageD7  Stage = "D7"
	StageD30 Stage = "D30"
)

// Stages lists the cycle in order. D30 is terminal.
var Stages = []Stage{StageD1, StageD7, StageD30}

// UnknownStageError reports a stage value outside the closed enumeration,
// typically read back from persisted data. Unknown values always fail the
// operation; they are never coerced to a default stage.
type UnknownStageError struct {
	Value string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown revision stage %q", e.Value)
}

// ParseStage validates a raw stage value against the closed enumeration.
func ParseStage(raw string) (Stage, error) {
	switch Stage(raw) {
	case StageD1, StageD7, StageD30:
		return Stage(raw), nil
	}
	return "", &UnknownStageError{Value: raw}
}
