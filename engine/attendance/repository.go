package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when an attendance record does not exist.
var ErrNotFound = errors.New("attendance not found")

// Repository persists attendance records.
type Repository interface {
	Create(ctx context.Context, a *Attendance) error
	GetByID(ctx context.Context, id core.ID) (*Attendance, error)
	Update(ctx context.Context, a *Attendance) error
	Delete(ctx context.Context, id core.ID) error
	// FindOpenClockIn returns the worker's most recent record with a
	// clock-in and no clock-out, locked FOR UPDATE so two concurrent
	// clock-outs cannot both pair with it. A non-nil shiftID matches
	// that shift's records; a nil shiftID matches direct records whose
	// reason begins with the JOB_TYPE marker for jobType.
	FindOpenClockIn(ctx context.Context, workerID core.ID, shiftID *core.ID, jobType string) (*Attendance, error)
	// ListForWorkerWindow fetches the worker's records whose endpoints
	// fall within [from, to), for the overlap predicate.
	ListForWorkerWindow(ctx context.Context, workerID core.ID, from, to time.Time) ([]*Attendance, error)
	ListByShift(ctx context.Context, shiftID core.ID) ([]*Attendance, error)
	ListByShiftIDs(ctx context.Context, shiftIDs []core.ID, from, to time.Time) ([]*Attendance, error)
	ListPending(ctx context.Context) ([]*Attendance, error)
	// ListDirectForWorkerDay fetches the worker's direct records whose
	// clock-in falls within [dayStart, dayEnd).
	ListDirectForWorkerDay(ctx context.Context, workerID core.ID, dayStart, dayEnd time.Time) ([]*Attendance, error)
	// ListApprovedForProjectUserDate supports the timesheet delete
	// cascade, which resets approved attendances back to pending.
	ListApprovedForProjectUserDate(ctx context.Context, projectID, userID core.ID, date time.Time) ([]*Attendance, error)
	// WithTx returns a repository bound to the transaction.
	WithTx(tx pgx.Tx) Repository
}
