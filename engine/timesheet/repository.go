package timesheet

import (
	"context"
	"errors"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a timesheet entry does not exist.
var ErrNotFound = errors.New("timesheet entry not found")

// ProjectTotal is a per-project aggregate over a date window.
type ProjectTotal struct {
	ProjectID core.ID `db:"project_id"`
	Minutes   int     `db:"minutes"`
	Entries   int     `db:"entries"`
}

// Repository persists timesheet entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id core.ID) (*Entry, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id core.ID) error
	// GetBySourceAttendance finds the entry an attendance materialised.
	GetBySourceAttendance(ctx context.Context, attendanceID core.ID) (*Entry, error)
	// ListForProjectWindow fetches the project's entries dated within
	// [from, to]. A non-zero userID narrows to that worker.
	ListForProjectWindow(ctx context.Context, projectID core.ID, from, to time.Time, userID core.ID) ([]*Entry, error)
	// ListForUserWindow fetches a worker's entries across projects.
	ListForUserWindow(ctx context.Context, userID core.ID, from, to time.Time) ([]*Entry, error)
	// SumByProject aggregates minutes and row counts per project over
	// the window.
	SumByProject(ctx context.Context, from, to time.Time) ([]*ProjectTotal, error)
	// WithTx returns a repository bound to the transaction.
	WithTx(tx pgx.Tx) Repository
}

// LogRepository persists the project timesheet change log.
type LogRepository interface {
	Append(ctx context.Context, l *Log) error
	ListForProject(ctx context.Context, projectID core.ID, limit, offset int) ([]*Log, error)
	// WithTx returns a log repository bound to the transaction.
	WithTx(tx pgx.Tx) LogRepository
}
