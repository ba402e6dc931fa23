package shift

import (
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/geo"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/fieldops/dispatch/engine/timeutil"
)

// Shift statuses. Deleted shifts stay in storage so attendance rows
// keep their linkage; every business query filters them out.
const (
	StatusScheduled = "scheduled"
	StatusDeleted   = "deleted"
)

// Shift is a planned worker-project-time-window assignment. Times are
// local to the project's timezone; an end at or before the start means
// the shift crosses midnight. A nil geofence list inherits the
// project's coordinates dynamically.
type Shift struct {
	ID              core.ID      `db:"id"`
	ProjectID       core.ID      `db:"project_id"`
	WorkerID        core.ID      `db:"worker_id"`
	WorkDate        time.Time    `db:"work_date"`
	StartTime       string       `db:"start_time"`
	EndTime         string       `db:"end_time"`
	Status          string       `db:"status"`
	DefaultBreakMin *int         `db:"default_break_min"`
	Geofences       []geo.Region `db:"geofences"`
	JobID           *string      `db:"job_id"`
	JobName         *string      `db:"job_name"`
	CreatedBy       core.ID      `db:"created_by"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

// Interval returns the shift's start and end as minutes from local
// midnight of its work date. A crossing-midnight end maps past 1440.
func (s *Shift) Interval() (startMin, endMin int, err error) {
	startMin, err = timeutil.ParseClock(s.StartTime)
	if err != nil {
		return 0, 0, err
	}
	endMin, err = timeutil.ParseClock(s.EndTime)
	if err != nil {
		return 0, 0, err
	}
	if endMin <= startMin {
		endMin += 24 * 60
	}
	return startMin, endMin, nil
}

// EffectiveGeofences resolves the regions a clock event is checked
// against: the shift's own list, or a single default-radius circle at
// the project's coordinates, or nothing when the project has no
// location (validation not required).
func EffectiveGeofences(s *Shift, p *project.Project, defaultRadiusM float64) []geo.Region {
	if len(s.Geofences) > 0 {
		return s.Geofences
	}
	if p != nil && p.HasCoordinates() {
		return []geo.Region{{Lat: *p.Lat, Lng: *p.Lng, RadiusM: defaultRadiusM}}
	}
	return nil
}
