package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/medplan/pkg/models"
)

func rev(id int64, stage models.Stage, scheduled time.Time, completed, refused bool) models.Revision {
	return models.Revision{
		ID:            id,
		UserID:        1,
		TopicID:       id,
		Stage:         stage,
		ScheduledDate: scheduled,
		IsCompleted:   completed,
		IsRefused:     refused,
	}
}

func TestClassify_Partitioning(t *testing.T) {
	today := date(2024, time.January, 9)
	revisions := []models.Revision{
		rev(1, models.StageD7, today, false, false),                      // today
		rev(2, models.StageD1, today.AddDate(0, 0, 1), false, false),     // tomorrow
		rev(3, models.StageD1, today.AddDate(0, 0, -3), false, false),    // late
		rev(4, models.StageD30, today, false, true),                      // refused, date ignored
		rev(5, models.StageD1, today, true, false),                       // completed, no bucket
		rev(6, models.StageD30, today.AddDate(0, 0, 10), false, false),   // future, no bucket
		rev(7, models.StageD7, today.AddDate(0, 0, -40), false, true),    // refused and old
	}

	b, err := Classify(revisions, today)
	require.NoError(t, err)

	assert.Len(t, b.Today, 1)
	assert.Equal(t, int64(1), b.Today[0].ID)
	assert.Len(t, b.Tomorrow, 1)
	assert.Equal(t, int64(2), b.Tomorrow[0].ID)
	assert.Len(t, b.Late, 1)
	assert.Equal(t, int64(3), b.Late[0].ID)
	assert.Len(t, b.Refused, 2)
}

func TestClassify_BucketsAreDisjoint(t *testing.T) {
	today := date(2024, time.March, 10)
	var revisions []models.Revision
	id := int64(1)
	for _, stage := range models.Stages {
		for _, offset := range []int{-30, -1, 0, 1, 2} {
			for _, flags := range [][2]bool{{false, false}, {true, false}, {false, true}} {
				revisions = append(revisions, rev(id, stage, today.AddDate(0, 0, offset), flags[0], flags[1]))
				id++
			}
		}
	}

	b, err := Classify(revisions, today)
	require.NoError(t, err)

	seen := map[int64]int{}
	for _, bucket := range [][]models.Revision{b.Today, b.Tomorrow, b.Late, b.Refused} {
		for _, r := range bucket {
			seen[r.ID]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "revision %d appears in %d buckets", id, n)
	}
}

func TestClassify_RefusalTakesPriorityOverLate(t *testing.T) {
	today := date(2024, time.May, 1)
	b, err := Classify([]models.Revision{
		rev(1, models.StageD7, today.AddDate(0, 0, -5), false, true),
	}, today)
	require.NoError(t, err)

	assert.Empty(t, b.Late)
	require.Len(t, b.Refused, 1)
}

func TestClassify_TodayOrderedByStage(t *testing.T) {
	today := date(2024, time.July, 1)
	b, err := Classify([]models.Revision{
		rev(1, models.StageD30, today, false, false),
		rev(2, models.StageD7, today, false, false),
		rev(3, models.StageD1, today, false, false),
	}, today)
	require.NoError(t, err)

	require.Len(t, b.Today, 3)
	assert.Equal(t, models.StageD1, b.Today[0].Stage)
	assert.Equal(t, models.StageD7, b.Today[1].Stage)
	assert.Equal(t, models.StageD30, b.Today[2].Stage)
}

func TestClassify_LateOrderedOldestFirst(t *testing.T) {
	today := date(2024, time.July, 1)
	b, err := Classify([]models.Revision{
		rev(1, models.StageD1, today.AddDate(0, 0, -2), false, false),
		rev(2, models.StageD1, today.AddDate(0, 0, -20), false, false),
		rev(3, models.StageD7, today.AddDate(0, 0, -7), false, false),
	}, today)
	require.NoError(t, err)

	require.Len(t, b.Late, 3)
	assert.Equal(t, int64(2), b.Late[0].ID)
	assert.Equal(t, int64(3), b.Late[1].ID)
	assert.Equal(t, int64(1), b.Late[2].ID)
}

func TestClassify_UnknownStageFailsClosed(t *testing.T) {
	today := date(2024, time.July, 1)
	_, err := Classify([]models.Revision{
		rev(1, models.Stage("D15"), today, false, false),
	}, today)

	var unknownErr *models.UnknownStageError
	require.ErrorAs(t, err, &unknownErr)
}

// A refused revision returns to whatever bucket its unchanged date falls
// into once reactivated; classification only looks at the flags.
func TestClassify_ReactivationByDate(t *testing.T) {
	scheduled := date(2024, time.January, 9)
	pending := rev(1, models.StageD7, scheduled, false, false)

	b, err := Classify([]models.Revision{pending}, scheduled)
	require.NoError(t, err)
	require.Len(t, b.Today, 1)

	b, err = Classify([]models.Revision{pending}, scheduled.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, b.Today)
	require.Len(t, b.Late, 1)
}
