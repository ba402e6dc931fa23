package attendance

import (
	"fmt"
	"time"

	"github.com/fieldops/dispatch/engine/core"
)

const preGapWindow = time.Hour

// Proposed is a candidate attendance interval for overlap checking.
// Out may be nil for a bare clock-in, which makes the proposal a point.
type Proposed struct {
	WorkerID  core.ID
	In        *time.Time
	Out       *time.Time
	ExcludeID core.ID
}

// CheckOverlap rejects the proposal when it intersects an existing
// attendance of the worker or an endpoint lands strictly inside one.
// Touching boundaries are allowed, but a clock-in within the hour
// before another event's start is rejected even without geometric
// overlap. All comparisons are UTC; loc only renders the error message
// in the project's local zone.
func CheckOverlap(p *Proposed, existing []*Attendance, loc *time.Location) error {
	start, end := normalizeInterval(p.In, p.Out)
	for _, other := range existing {
		if other.ID == p.ExcludeID || other.Status == StatusRejected {
			continue
		}
		otherStart, otherEnd := normalizeInterval(other.ClockInAt, other.ClockOutAt)
		if otherStart == nil || start == nil {
			continue
		}
		// Strict intersection allows shared boundaries and treats
		// degenerate intervals as points.
		if start.Before(*otherEnd) && otherStart.Before(*end) {
			return overlapError(other, loc)
		}
		if p.In != nil && other.ClockInAt != nil {
			gap := other.ClockInAt.Sub(*p.In)
			if gap > 0 && gap < preGapWindow {
				return core.Conflictf(
					"clock-in must be at least 1 hour before the next event at %s",
					other.ClockInAt.In(loc).Format("15:04"),
				)
			}
		}
	}
	return nil
}

// normalizeInterval widens a single endpoint to a degenerate interval.
func normalizeInterval(in, out *time.Time) (*time.Time, *time.Time) {
	if in == nil {
		in = out
	}
	if out == nil {
		out = in
	}
	return in, out
}

func overlapError(other *Attendance, loc *time.Location) error {
	in, out := normalizeInterval(other.ClockInAt, other.ClockOutAt)
	window := fmt.Sprintf("%s-%s", in.In(loc).Format("15:04"), out.In(loc).Format("15:04"))
	return core.NewError(
		fmt.Errorf("time overlaps an existing attendance (%s, local time)", window),
		core.CodeConflict,
		map[string]any{"conflicting_attendance_id": other.ID.String()},
	)
}
