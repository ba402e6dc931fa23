package shift

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var shiftColumns = []string{
	"id", "project_id", "worker_id", "work_date", "start_time", "end_time",
	"status", "default_break_min", "geofences", "job_id", "job_name",
	"created_by", "created_at", "updated_at",
}

// DBInterface defines the minimal interface needed by the repository.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DBInterface
}

// NewPostgresRepository creates a shift repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, s *Shift) error {
	query, args, err := squirrel.Insert("shifts").
		Columns(shiftColumns...).
		Values(
			s.ID, s.ProjectID, s.WorkerID, s.WorkDate, s.StartTime, s.EndTime,
			s.Status, s.DefaultBreakMin, s.Geofences, s.JobID, s.JobName,
			s.CreatedBy, s.CreatedAt, s.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting shift: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id core.ID) (*Shift, error) {
	query, args, err := squirrel.Select(shiftColumns...).
		From("shifts").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var s Shift
	if err := pgxscan.Get(ctx, r.db, &s, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning shift: %w", err)
	}
	return &s, nil
}

func (r *postgresRepository) Update(ctx context.Context, s *Shift) error {
	query, args, err := squirrel.Update("shifts").
		Set("start_time", s.StartTime).
		Set("end_time", s.EndTime).
		Set("status", s.Status).
		Set("default_break_min", s.DefaultBreakMin).
		Set("geofences", s.Geofences).
		Set("job_id", s.JobID).
		Set("job_name", s.JobName).
		Set("updated_at", s.UpdatedAt).
		Where(squirrel.Eq{"id": s.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) ListForWorkerWindow(
	ctx context.Context,
	workerID core.ID,
	date time.Time,
	forUpdate bool,
) ([]*Shift, error) {
	builder := squirrel.Select(shiftColumns...).
		From("shifts").
		Where(squirrel.Eq{"worker_id": workerID, "status": StatusScheduled}).
		Where(squirrel.GtOrEq{"work_date": date.AddDate(0, 0, -1)}).
		Where(squirrel.LtOrEq{"work_date": date.AddDate(0, 0, 1)}).
		OrderBy("work_date ASC, start_time ASC").
		PlaceholderFormat(squirrel.Dollar)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var shifts []*Shift
	if err := pgxscan.Select(ctx, r.db, &shifts, query, args...); err != nil {
		return nil, fmt.Errorf("scanning shifts: %w", err)
	}
	return shifts, nil
}

func (r *postgresRepository) ListVisible(ctx context.Context, filter *ListFilter) ([]*Shift, error) {
	builder := squirrel.Select(prefixColumns("s", shiftColumns)...).
		From("shifts s").
		Join("projects p ON p.id = s.project_id").
		Where(squirrel.Eq{"s.status": StatusScheduled}).
		Where(squirrel.NotEq{"p.code": project.CodeSystemInternal}).
		OrderBy("s.work_date ASC, s.start_time ASC").
		PlaceholderFormat(squirrel.Dollar)
	if !filter.ProjectID.IsZero() {
		builder = builder.Where(squirrel.Eq{"s.project_id": filter.ProjectID})
	}
	if !filter.WorkerID.IsZero() {
		builder = builder.Where(squirrel.Eq{"s.worker_id": filter.WorkerID})
	}
	if !filter.From.IsZero() {
		builder = builder.Where(squirrel.GtOrEq{"s.work_date": filter.From})
	}
	if !filter.To.IsZero() {
		builder = builder.Where(squirrel.LtOrEq{"s.work_date": filter.To})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var shifts []*Shift
	if err := pgxscan.Select(ctx, r.db, &shifts, query, args...); err != nil {
		return nil, fmt.Errorf("scanning shifts: %w", err)
	}
	return shifts, nil
}

func (r *postgresRepository) ListForProject(
	ctx context.Context,
	projectID core.ID,
	from, to time.Time,
) ([]*Shift, error) {
	query, args, err := squirrel.Select(shiftColumns...).
		From("shifts").
		Where(squirrel.Eq{"project_id": projectID}).
		Where(squirrel.GtOrEq{"work_date": from}).
		Where(squirrel.LtOrEq{"work_date": to}).
		OrderBy("work_date ASC, start_time ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var shifts []*Shift
	if err := pgxscan.Select(ctx, r.db, &shifts, query, args...); err != nil {
		return nil, fmt.Errorf("scanning shifts: %w", err)
	}
	return shifts, nil
}

func (r *postgresRepository) ListWithGeofences(ctx context.Context, projectID core.ID) ([]*Shift, error) {
	query, args, err := squirrel.Select(shiftColumns...).
		From("shifts").
		Where(squirrel.Eq{"project_id": projectID}).
		Where("geofences IS NOT NULL").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var shifts []*Shift
	if err := pgxscan.Select(ctx, r.db, &shifts, query, args...); err != nil {
		return nil, fmt.Errorf("scanning shifts: %w", err)
	}
	return shifts, nil
}

func (r *postgresRepository) ClearGeofences(ctx context.Context, ids []core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := squirrel.Update("shifts").
		Set("geofences", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": ids}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing shift geofences: %w", err)
	}
	return nil
}

func prefixColumns(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

// WithTx returns a repository instance that uses the given transaction.
// pgx.Tx satisfies DBInterface, so the same queries run on either.
func (r *postgresRepository) WithTx(tx pgx.Tx) Repository {
	return &postgresRepository{db: tx}
}

var _ DBInterface = (pgx.Tx)(nil)
