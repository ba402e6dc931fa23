package shift

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/dispatch/engine/core"
)

const minutesPerDay = 24 * 60

// Candidate is a proposed shift interval for conflict checking.
type Candidate struct {
	WorkerID  core.ID
	WorkDate  time.Time
	StartMin  int
	EndMin    int // past 1440 when crossing midnight
	ExcludeID core.ID
}

// FindConflicts returns the subset of existing shifts whose intervals
// intersect the candidate. Existing shifts may be dated one day either
// side of the candidate; both intervals are projected onto the 48-hour
// axis anchored at the candidate's local midnight before the test.
func FindConflicts(candidate *Candidate, existing []*Shift) ([]*Shift, error) {
	var conflicts []*Shift
	for _, other := range existing {
		if other.ID == candidate.ExcludeID || other.Status != StatusScheduled {
			continue
		}
		otherStart, otherEnd, err := other.Interval()
		if err != nil {
			return nil, fmt.Errorf("shift %s has malformed times: %w", other.ID, err)
		}
		dayOffset := daysBetween(candidate.WorkDate, other.WorkDate)
		if dayOffset < -1 || dayOffset > 1 {
			continue
		}
		otherStart += dayOffset * minutesPerDay
		otherEnd += dayOffset * minutesPerDay
		if candidate.StartMin < otherEnd && otherStart < candidate.EndMin {
			conflicts = append(conflicts, other)
		}
	}
	return conflicts, nil
}

// daysBetween returns the whole calendar days from a to b. Both dates
// carry UTC midnight, so the division is exact.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// ConflictError builds the caller-facing overlap error, listing the
// offending shifts with their dates and local times.
func ConflictError(conflicts []*Shift) error {
	ids := make([]string, 0, len(conflicts))
	descriptions := make([]string, 0, len(conflicts))
	for _, s := range conflicts {
		ids = append(ids, s.ID.String())
		descriptions = append(descriptions, fmt.Sprintf(
			"%s %s-%s", s.WorkDate.Format("2006-01-02"), s.StartTime, s.EndTime,
		))
	}
	return core.NewError(
		fmt.Errorf("shift overlaps existing shift(s): %s", strings.Join(descriptions, ", ")),
		core.CodeConflict,
		map[string]any{"conflicting_shift_ids": ids},
	)
}
