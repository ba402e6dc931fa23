package notify

import (
	"time"

	"github.com/fieldops/dispatch/engine/core"
)

// Channels a notification can be delivered on.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// Delivery statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Template keys used by the dispatch flows.
const (
	TemplateShiftCreated       = "shift_created"
	TemplateShiftUpdated       = "shift_updated"
	TemplateShiftCancelled     = "shift_cancelled"
	TemplateAttendanceApproved = "attendance_approved"
	TemplateAttendanceRejected = "attendance_rejected"
	TemplateAttendancePending  = "attendance_pending"
)

// Notification is a queued delivery intent. Rows are written in the
// mutating transaction; actual delivery happens asynchronously and is
// best-effort.
type Notification struct {
	ID          core.ID        `db:"id"`
	UserID      core.ID        `db:"user_id"`
	Channel     string         `db:"channel"`
	TemplateKey string         `db:"template_key"`
	Payload     map[string]any `db:"payload"`
	Status      string         `db:"status"`
	CreatedAt   time.Time      `db:"created_at"`
}
