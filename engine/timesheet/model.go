package timesheet

import (
	"time"

	"github.com/fieldops/dispatch/engine/core"
)

// Row sources. Attendance-derived rows are synthetic: they render the
// attendance record directly and carry an "attendance_" prefixed id.
const (
	SourceAttendance = "attendance"
	SourceManual     = "manual"
)

// AttendanceRowPrefix marks synthetic row ids derived from attendance.
const AttendanceRowPrefix = "attendance_"

// systemNotes tags entries the attendance pathway materialised. The
// delete cascade falls back to matching on it when the weak reference
// was nulled.
const systemNotes = "Created by attendance system"

// Entry is a per-worker per-project per-date hour record. Attendance
// materialisation creates at most one per (project, user, date); manual
// entries are additional and carry a nil source reference.
type Entry struct {
	ID                 core.ID    `db:"id"`
	ProjectID          core.ID    `db:"project_id"`
	UserID             core.ID    `db:"user_id"`
	WorkDate           time.Time  `db:"work_date"`
	StartTime          string     `db:"start_time"`
	EndTime            *string    `db:"end_time"`
	Minutes            int        `db:"minutes"`
	Notes              string     `db:"notes"`
	CreatedBy          core.ID    `db:"created_by"`
	CreatedAt          time.Time  `db:"created_at"`
	SourceAttendanceID *core.ID   `db:"source_attendance_id"`
	IsApproved         bool       `db:"is_approved"`
	ApprovedAt         *time.Time `db:"approved_at"`
	ApprovedBy         *core.ID   `db:"approved_by"`
}

// IsManual reports whether the entry was created by hand rather than
// materialised from attendance.
func (e *Entry) IsManual() bool {
	return e.SourceAttendanceID == nil
}

// Log is one row of the project's timesheet change log.
type Log struct {
	ID        core.ID        `db:"id"`
	ProjectID core.ID        `db:"project_id"`
	EntryID   *core.ID       `db:"entry_id"`
	Action    string         `db:"action"`
	ActorID   core.ID        `db:"actor_id"`
	Details   map[string]any `db:"details"`
	CreatedAt time.Time      `db:"created_at"`
}

// Row is a rendered listing row: either a manual entry or a synthetic
// projection of an attendance record. Times are in the project's local
// zone.
type Row struct {
	ID             string     `json:"id"`
	ProjectID      core.ID    `json:"project_id"`
	UserID         core.ID    `json:"user_id"`
	WorkerName     string     `json:"worker_name"`
	WorkDate       string     `json:"work_date"`
	StartTime      string     `json:"start_time"`
	EndTime        *string    `json:"end_time,omitempty"`
	Minutes        int        `json:"minutes"`
	BreakMinutes   *int       `json:"break_minutes,omitempty"`
	IsApproved     bool       `json:"is_approved"`
	Source         string     `json:"source"`
	Notes          string     `json:"notes,omitempty"`
	Status         string     `json:"status,omitempty"`
	ShiftDeleted   bool       `json:"shift_deleted,omitempty"`
	ShiftDeletedBy string     `json:"shift_deleted_by,omitempty"`
	ShiftDeletedAt *time.Time `json:"shift_deleted_at,omitempty"`
}

// WeekEvent is one attendance event inside the weekly summary. An
// hours-only event carries no clock times; its duration comes from the
// HOURS_WORKED marker in the reason text.
type WeekEvent struct {
	AttendanceID core.ID `json:"attendance_id"`
	ClockIn      *string `json:"clock_in,omitempty"`
	ClockOut     *string `json:"clock_out,omitempty"`
	BreakMinutes *int    `json:"break_minutes,omitempty"`
	GrossMinutes int     `json:"gross_minutes"`
	NetMinutes   int     `json:"net_minutes"`
	JobType      string  `json:"job_type,omitempty"`
	HoursOnly    bool    `json:"hours_only,omitempty"`
	Status       string  `json:"status"`
}

// DaySummary aggregates one local calendar day of the weekly summary.
type DaySummary struct {
	Date         string       `json:"date"`
	Events       []*WeekEvent `json:"events"`
	RegMinutes   int          `json:"reg_minutes"`
	BreakMinutes int          `json:"break_minutes"`
	TotalMinutes int          `json:"total_minutes"`
}

// WeekSummary is the current user's Sunday-anchored week of attendance.
type WeekSummary struct {
	WeekStart    string        `json:"week_start"`
	Days         []*DaySummary `json:"days"`
	RegMinutes   int           `json:"reg_minutes"`
	BreakMinutes int           `json:"break_minutes"`
	TotalMinutes int           `json:"total_minutes"`
}

// ProjectSummary is one line of the cross-project monthly totals.
type ProjectSummary struct {
	ProjectID   core.ID `json:"project_id"`
	ProjectName string  `json:"project_name"`
	Minutes     int     `json:"minutes"`
	Entries     int     `json:"entries"`
}
