package audit

import (
	"time"

	"github.com/fieldops/dispatch/engine/core"
)

// Actions recorded by the dispatch core. The log is append-only:
// business code never updates or deletes a row.
const (
	ActionCreate    = "CREATE"
	ActionUpdate    = "UPDATE"
	ActionDelete    = "DELETE"
	ActionClockIn   = "CLOCK_IN"
	ActionClockOut  = "CLOCK_OUT"
	ActionApprove   = "APPROVE"
	ActionUnapprove = "UNAPPROVE"
	ActionReject    = "REJECT"
	ActionReset     = "RESET"
)

// Entity types referenced by audit rows. The reference is a loose
// (type, id) pair with no foreign key, so rows survive their source.
const (
	EntityShift          = "shift"
	EntityAttendance     = "attendance"
	EntityTimesheetEntry = "timesheet_entry"
	EntityProject        = "project"
)

// Entry is a single append-only audit record. Changes usually carries a
// {before, after} pair but free shapes are allowed; Context carries
// loose lookup keys such as project_id and worker_id.
type Entry struct {
	ID            core.ID        `db:"id"`
	EntityType    string         `db:"entity_type"`
	EntityID      core.ID        `db:"entity_id"`
	Action        string         `db:"action"`
	ActorID       core.ID        `db:"actor_id"`
	ActorRole     string         `db:"actor_role"`
	Source        string         `db:"source"`
	Timestamp     time.Time      `db:"ts"`
	Changes       map[string]any `db:"changes"`
	Context       map[string]any `db:"context"`
	IntegrityHash string         `db:"integrity_hash"`
}

// TimelineEntry is an audit entry enriched with display names resolved
// from the user and project registries.
type TimelineEntry struct {
	Entry
	ActorName        string  `json:"actor_name"`
	ActorAvatarID    *string `json:"actor_avatar_id,omitempty"`
	AffectedUserName string  `json:"affected_user_name,omitempty"`
	ProjectName      string  `json:"project_name,omitempty"`
	WorkerName       string  `json:"worker_name,omitempty"`
	ApprovedByName   string  `json:"approved_by_name,omitempty"`
}
