package audit

import (
	"context"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/jackc/pgx/v5"
)

// Sections of the project timeline, mapped onto the entity types each
// one surfaces.
var sectionEntityTypes = map[string][]string{
	"reports":   {"report"},
	"files":     {"project_file"},
	"proposal":  {"proposal", "proposal_draft"},
	"estimate":  {"estimate", "estimate_item"},
	"orders":    {"order", "order_item"},
	"workload":  {EntityShift},
	"timesheet": {EntityAttendance, EntityTimesheetEntry},
	"general":   {EntityProject},
}

// TimelineQuery selects a page of a project's timeline. Month is the
// first day of the wanted month at UTC midnight; zero means all time.
type TimelineQuery struct {
	ProjectID core.ID
	Section   string
	Month     time.Time
	Limit     int
	Offset    int
}

// Repository persists and reads audit entries.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListByEntity(ctx context.Context, entityType string, entityID core.ID) ([]*Entry, error)
	// LatestByEntityAction returns the most recent entry for the
	// (type, id, action) triple, or nil when none exists.
	LatestByEntityAction(ctx context.Context, entityType string, entityID core.ID, action string) (*Entry, error)
	ListProjectTimeline(ctx context.Context, q *TimelineQuery) ([]*Entry, error)
	// WithTx returns a repository bound to the transaction.
	WithTx(tx pgx.Tx) Repository
}
