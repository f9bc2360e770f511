package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/medplan/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOffsetDays(t *testing.T) {
	tests := []struct {
		stage  models.Stage
		offset int
	}{
		{models.StageD1, 1},
		{models.StageD7, 7},
		{models.StageD30, 30},
	}
	for _, tt := range tests {
		got, err := OffsetDays(tt.stage)
		require.NoError(t, err)
		assert.Equal(t, tt.offset, got, "stage %s", tt.stage)
	}
}

func TestNextStage_Cycle(t *testing.T) {
	next, ok, err := NextStage(models.StageD1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StageD7, next)

	next, ok, err = NextStage(models.StageD7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StageD30, next)

	_, ok, err = NextStage(models.StageD30)
	require.NoError(t, err)
	assert.False(t, ok, "D30 is terminal")
}

func TestUnknownStage(t *testing.T) {
	_, _, err := NextStage(models.Stage("D90"))
	var unknownErr *models.UnknownStageError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "D90", unknownErr.Value)

	_, err = OffsetDays(models.Stage(""))
	require.ErrorAs(t, err, &unknownErr)
}

func TestScheduledDate_AnchorsAtCompletionDay(t *testing.T) {
	anchor := time.Date(2024, time.January, 1, 23, 45, 0, 0, time.UTC)

	due, err := ScheduledDate(models.StageD1, anchor)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 2), due)

	due, err = ScheduledDate(models.StageD7, date(2024, time.January, 2))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 9), due)

	due, err = ScheduledDate(models.StageD30, date(2024, time.January, 9))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.February, 8), due)
}

func TestDay_TruncatesToUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	ts := time.Date(2024, time.June, 15, 1, 30, 0, 0, loc) // 2024-06-14 22:30 UTC
	assert.Equal(t, date(2024, time.June, 14), Day(ts))
}

func TestParseStage(t *testing.T) {
	for _, s := range models.Stages {
		got, err := models.ParseStage(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := models.ParseStage("stage1")
	assert.Error(t, err)
}
