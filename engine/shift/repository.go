package shift

import (
	"context"
	"errors"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a shift does not exist.
var ErrNotFound = errors.New("shift not found")

// ListFilter narrows shift listings. From and To bound the work date
// inclusively; zero values leave the bound open.
type ListFilter struct {
	ProjectID core.ID
	WorkerID  core.ID
	From      time.Time
	To        time.Time
}

// Repository persists shifts.
type Repository interface {
	Create(ctx context.Context, s *Shift) error
	GetByID(ctx context.Context, id core.ID) (*Shift, error)
	Update(ctx context.Context, s *Shift) error
	// ListForWorkerWindow fetches the worker's scheduled shifts dated
	// within one day either side of date. When forUpdate is true the
	// rows are locked so a concurrent create cannot slip an overlap
	// past the conflict test.
	ListForWorkerWindow(ctx context.Context, workerID core.ID, date time.Time, forUpdate bool) ([]*Shift, error)
	// ListVisible returns scheduled shifts matching the filter,
	// excluding shifts attached to the System Internal sentinel.
	ListVisible(ctx context.Context, filter *ListFilter) ([]*Shift, error)
	// ListForProject fetches every shift of the project dated within
	// [from, to], deleted ones included. The timesheet aggregator needs
	// the deleted rows to flag orphaned attendance.
	ListForProject(ctx context.Context, projectID core.ID, from, to time.Time) ([]*Shift, error)
	// ListWithGeofences returns the project's shifts carrying a custom
	// geofence list, regardless of status.
	ListWithGeofences(ctx context.Context, projectID core.ID) ([]*Shift, error)
	// ClearGeofences nulls the geofence list of the given shifts so
	// they inherit the project coordinates again.
	ClearGeofences(ctx context.Context, ids []core.ID) error
	// WithTx returns a repository bound to the transaction.
	WithTx(tx pgx.Tx) Repository
}
