package task

import (
	"time"

	"github.com/fieldops/dispatch/engine/core"
)

// Origin types link task items back to the record that spawned them.
const (
	OriginSystemAttendance = "system_attendance"
)

// Item statuses.
const (
	StatusOpen      = "open"
	StatusCompleted = "completed"
)

// Item is a row in the shared task table. The dispatch core only seeds
// and completes items; the task board itself is an external
// collaborator.
type Item struct {
	ID          core.ID    `db:"id"`
	Title       string     `db:"title"`
	AssigneeID  *core.ID   `db:"assignee_id"`
	OriginType  string     `db:"origin_type"`
	OriginID    core.ID    `db:"origin_id"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	CompletedAt *time.Time `db:"completed_at"`
}
