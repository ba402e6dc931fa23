package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/dispatch/engine/core"
)

// Attendance statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Sources identify who recorded the clock event.
const (
	SourceApp        = "app"
	SourceSupervisor = "supervisor"
	SourceAdmin      = "admin"
	SourceSystem     = "system"
)

// Clock event types.
const (
	TypeIn  = "in"
	TypeOut = "out"
)

// GPS is a persisted clock-event location sample together with the
// advisory geofence verdict computed at ingestion time.
type GPS struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	AccuracyM *float64 `json:"accuracy_m,omitempty"`
	Inside    bool     `json:"inside"`
	Risk      bool     `json:"risk"`
}

// Attendance is a unified clock event record holding one or both of the
// clock-in and clock-out observations. A nil shift id marks a direct
// attendance, whose reason text carries a JOB_TYPE marker.
type Attendance struct {
	ID                core.ID    `db:"id"`
	ShiftID           *core.ID   `db:"shift_id"`
	WorkerID          core.ID    `db:"worker_id"`
	ClockInAt         *time.Time `db:"clock_in_at"`
	ClockInEnteredAt  *time.Time `db:"clock_in_entered_at"`
	ClockInGPS        *GPS       `db:"clock_in_gps"`
	ClockInMocked     bool       `db:"clock_in_mocked"`
	ClockOutAt        *time.Time `db:"clock_out_at"`
	ClockOutEnteredAt *time.Time `db:"clock_out_entered_at"`
	ClockOutGPS       *GPS       `db:"clock_out_gps"`
	ClockOutMocked    bool       `db:"clock_out_mocked"`
	BreakMinutes      *int       `db:"break_minutes"`
	Status            string     `db:"status"`
	Source            string     `db:"source"`
	Reason            *string    `db:"reason"`
	ApprovedAt        *time.Time `db:"approved_at"`
	ApprovedBy        *core.ID   `db:"approved_by"`
	RejectedAt        *time.Time `db:"rejected_at"`
	RejectedBy        *core.ID   `db:"rejected_by"`
	RejectionReason   *string    `db:"rejection_reason"`
	CreatedBy         core.ID    `db:"created_by"`
	CreatedAt         time.Time  `db:"created_at"`
}

// IsDirect reports whether the record is a direct (shift-less) attendance.
func (a *Attendance) IsDirect() bool {
	return a.ShiftID == nil
}

// IsComplete reports whether both clock endpoints are present.
func (a *Attendance) IsComplete() bool {
	return a.ClockInAt != nil && a.ClockOutAt != nil
}

// TotalMinutes is the gross worked duration. A clock-out earlier than
// the clock-in is normalised once by adding 24 hours.
func (a *Attendance) TotalMinutes() int {
	if !a.IsComplete() {
		return 0
	}
	minutes := int(a.ClockOutAt.Sub(*a.ClockInAt).Minutes())
	if minutes < 0 {
		minutes += 24 * 60
	}
	return minutes
}

// NetMinutes is the worked duration net of the break, floored at zero.
func (a *Attendance) NetMinutes() int {
	total := a.TotalMinutes()
	if a.BreakMinutes != nil {
		total -= *a.BreakMinutes
	}
	return max(0, total)
}

const (
	jobTypePrefix     = "JOB_TYPE:"
	hoursWorkedPrefix = "HOURS_WORKED:"
)

// DirectReason is the parsed reason text of a direct attendance:
// "JOB_TYPE:<code>" optionally followed by "|<free text>" and
// optionally "|HOURS_WORKED:<float>".
type DirectReason struct {
	JobType     string
	FreeText    string
	HoursWorked *float64
}

// BuildDirectReason assembles a direct attendance reason text.
func BuildDirectReason(jobType, freeText string, hoursWorked *float64) string {
	var b strings.Builder
	b.WriteString(jobTypePrefix + jobType)
	if freeText != "" {
		b.WriteString("|" + freeText)
	}
	if hoursWorked != nil {
		b.WriteString("|" + hoursWorkedPrefix + strconv.FormatFloat(*hoursWorked, 'f', -1, 64))
	}
	return b.String()
}

// ParseDirectReason parses a direct attendance reason text.
func ParseDirectReason(reason string) (*DirectReason, error) {
	if !strings.HasPrefix(reason, jobTypePrefix) {
		return nil, fmt.Errorf("direct attendance reason must begin with %q", jobTypePrefix)
	}
	parts := strings.Split(reason, "|")
	out := &DirectReason{JobType: strings.TrimPrefix(parts[0], jobTypePrefix)}
	if out.JobType == "" {
		return nil, fmt.Errorf("direct attendance reason carries an empty job type")
	}
	for _, part := range parts[1:] {
		if strings.HasPrefix(part, hoursWorkedPrefix) {
			hours, err := strconv.ParseFloat(strings.TrimPrefix(part, hoursWorkedPrefix), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid HOURS_WORKED value in reason: %w", err)
			}
			out.HoursWorked = &hours
			continue
		}
		if out.FreeText == "" {
			out.FreeText = part
		}
	}
	return out, nil
}
