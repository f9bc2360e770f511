package srs

import (
	"sort"
	"time"

	"github.com/example/medplan/pkg/models"
)

// Buckets partitions a snapshot of a user's revisions into the four
// actionable views the planner surfaces. The buckets are disjoint:
// refusal takes priority over any date-based placement, and a revision
// lands in at most one bucket. Completed revisions and revisions due
// after tomorrow appear in none of them.
type Buckets struct {
	Today    []models.Revision `json:"today"`
	Tomorrow []models.Revision `json:"tomorrow"`
	Late     []models.Revision `json:"late"`
	Refused  []models.Revision `json:"refused"`
}

// Classify partitions revisions relative to the caller-supplied date.
// It is a pure function: no clock reads, no I/O. A revision carrying a
// stage outside the known enumeration fails the whole call rather than
// being misfiled.
func Classify(revisions []models.Revision, today time.Time) (Buckets, error) {
	day := Day(today)
	tomorrow := day.AddDate(0, 0, 1)

	var b Buckets
	for _, r := range revisions {
		if _, err := lookup(r.Stage); err != nil {
			return Buckets{}, err
		}
		switch {
		case r.IsRefused:
			b.Refused = append(b.Refused, r)
		case r.IsCompleted:
			// Historical record only.
		default:
			due := Day(r.ScheduledDate)
			switch {
			case due.Equal(day):
				b.Today = append(b.Today, r)
			case due.Equal(tomorrow):
				b.Tomorrow = append(b.Tomorrow, r)
			case due.Before(day):
				b.Late = append(b.Late, r)
			}
		}
	}

	// Earlier stages first: D1 before D7 before D30.
	byStage := func(revs []models.Revision) {
		sort.SliceStable(revs, func(i, j int) bool {
			return stageTable[revs[i].Stage].rank < stageTable[revs[j].Stage].rank
		})
	}
	byStage(b.Today)
	byStage(b.Tomorrow)

	// Oldest first for overdue and refused work.
	byDate := func(revs []models.Revision) {
		sort.SliceStable(revs, func(i, j int) bool {
			return revs[i].ScheduledDate.Before(revs[j].ScheduledDate)
		})
	}
	byDate(b.Late)
	byDate(b.Refused)

	return b, nil
}

// Counts summarizes a bucket set, used by the daily summary job.
func (b Buckets) Counts() (today, tomorrow, late, refused int) {
	return len(b.Today), len(b.Tomorrow), len(b.Late), len(b.Refused)
}

// Empty reports whether no bucket holds any revision.
func (b Buckets) Empty() bool {
	return len(b.Today) == 0 && len(b.Tomorrow) == 0 && len(b.Late) == 0 && len(b.Refused) == 0
}
