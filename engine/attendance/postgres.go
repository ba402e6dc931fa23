package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var attendanceColumns = []string{
	"id", "shift_id", "worker_id",
	"clock_in_at", "clock_in_entered_at", "clock_in_gps", "clock_in_mocked",
	"clock_out_at", "clock_out_entered_at", "clock_out_gps", "clock_out_mocked",
	"break_minutes", "status", "source", "reason",
	"approved_at", "approved_by", "rejected_at", "rejected_by", "rejection_reason",
	"created_by", "created_at",
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

// NewPostgresRepository creates an attendance repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, a *Attendance) error {
	query, args, err := squirrel.Insert("attendance").
		Columns(attendanceColumns...).
		Values(
			a.ID, a.ShiftID, a.WorkerID,
			a.ClockInAt, a.ClockInEnteredAt, a.ClockInGPS, a.ClockInMocked,
			a.ClockOutAt, a.ClockOutEnteredAt, a.ClockOutGPS, a.ClockOutMocked,
			a.BreakMinutes, a.Status, a.Source, a.Reason,
			a.ApprovedAt, a.ApprovedBy, a.RejectedAt, a.RejectedBy, a.RejectionReason,
			a.CreatedBy, a.CreatedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting attendance: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id core.ID) (*Attendance, error) {
	query, args, err := squirrel.Select(attendanceColumns...).
		From("attendance").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var a Attendance
	if err := pgxscan.Get(ctx, r.db, &a, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning attendance: %w", err)
	}
	return &a, nil
}

func (r *postgresRepository) Update(ctx context.Context, a *Attendance) error {
	query, args, err := squirrel.Update("attendance").
		Set("clock_in_at", a.ClockInAt).
		Set("clock_in_entered_at", a.ClockInEnteredAt).
		Set("clock_in_gps", a.ClockInGPS).
		Set("clock_in_mocked", a.ClockInMocked).
		Set("clock_out_at", a.ClockOutAt).
		Set("clock_out_entered_at", a.ClockOutEnteredAt).
		Set("clock_out_gps", a.ClockOutGPS).
		Set("clock_out_mocked", a.ClockOutMocked).
		Set("break_minutes", a.BreakMinutes).
		Set("status", a.Status).
		Set("reason", a.Reason).
		Set("approved_at", a.ApprovedAt).
		Set("approved_by", a.ApprovedBy).
		Set("rejected_at", a.RejectedAt).
		Set("rejected_by", a.RejectedBy).
		Set("rejection_reason", a.RejectionReason).
		Where(squirrel.Eq{"id": a.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("attendance").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) FindOpenClockIn(
	ctx context.Context,
	workerID core.ID,
	shiftID *core.ID,
	jobType string,
) (*Attendance, error) {
	builder := squirrel.Select(attendanceColumns...).
		From("attendance").
		Where(squirrel.Eq{"worker_id": workerID}).
		Where("clock_in_at IS NOT NULL").
		Where("clock_out_at IS NULL").
		OrderBy("clock_in_at DESC").
		Limit(1).
		Suffix("FOR UPDATE").
		PlaceholderFormat(squirrel.Dollar)
	if shiftID != nil {
		builder = builder.Where(squirrel.Eq{"shift_id": *shiftID})
	} else {
		builder = builder.
			Where("shift_id IS NULL").
			Where(squirrel.Like{"reason": "JOB_TYPE:" + jobType + "%"})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var a Attendance
	if err := pgxscan.Get(ctx, r.db, &a, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning open clock-in: %w", err)
	}
	return &a, nil
}

func (r *postgresRepository) ListForWorkerWindow(
	ctx context.Context,
	workerID core.ID,
	from, to time.Time,
) ([]*Attendance, error) {
	query, args, err := squirrel.Select(attendanceColumns...).
		From("attendance").
		Where(squirrel.Eq{"worker_id": workerID}).
		Where(squirrel.Or{
			squirrel.And{squirrel.GtOrEq{"clock_in_at": from}, squirrel.Lt{"clock_in_at": to}},
			squirrel.And{squirrel.GtOrEq{"clock_out_at": from}, squirrel.Lt{"clock_out_at": to}},
		}).
		OrderBy("clock_in_at ASC NULLS LAST").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	return r.list(ctx, query, args)
}

func (r *postgresRepository) ListByShift(ctx context.Context, shiftID core.ID) ([]*Attendance, error) {
	query, args, err := squirrel.Select(attendanceColumns...).
		From("attendance").
		Where(squirrel.Eq{"shift_id": shiftID}).
		OrderBy("clock_in_at ASC NULLS LAST").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	return r.list(ctx, query, args)
}

func (r *postgresRepository) ListByShiftIDs(
	ctx context.Context,
	shiftIDs []core.ID,
	from, to time.Time,
) ([]*Attendance, error) {
	if len(shiftIDs) == 0 {
		return nil, nil
	}
	builder := squirrel.Select(attendanceColumns...).
		From("attendance").
		Where(squirrel.Eq{"shift_id": shiftIDs}).
		OrderBy("clock_in_at ASC NULLS LAST").
		PlaceholderFormat(squirrel.Dollar)
	if !from.IsZero() {
		builder = builder.Where(squirrel.GtOrEq{"clock_in_at": from})
	}
	if !to.IsZero() {
		builder = builder.Where(squirrel.Lt{"clock_in_at": to})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	return r.list(ctx, query, args)
}

func (r *postgresRepository) ListPending(ctx context.Context) ([]*Attendance, error) {
	query, args, err := squirrel.Select(attendanceColumns...).
		From("attendance").
		Where(squirrel.Eq{"status": StatusPending}).
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	return r.list(ctx, query, args)
}

func (r *postgresRepository) ListDirectForWorkerDay(
	ctx context.Context,
	workerID core.ID,
	dayStart, dayEnd time.Time,
) ([]*Attendance, error) {
	query, args, err := squirrel.Select(attendanceColumns...).
		From("attendance").
		Where(squirrel.Eq{"worker_id": workerID}).
		Where("shift_id IS NULL").
		Where(squirrel.GtOrEq{"clock_in_at": dayStart}).
		Where(squirrel.Lt{"clock_in_at": dayEnd}).
		OrderBy("clock_in_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	return r.list(ctx, query, args)
}

func (r *postgresRepository) ListApprovedForProjectUserDate(
	ctx context.Context,
	projectID, userID core.ID,
	date time.Time,
) ([]*Attendance, error) {
	query, args, err := squirrel.Select(prefixColumns("a", attendanceColumns)...).
		From("attendance a").
		Join("shifts s ON s.id = a.shift_id").
		Where(squirrel.Eq{
			"a.worker_id":  userID,
			"a.status":     StatusApproved,
			"s.project_id": projectID,
			"s.work_date":  date,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	return r.list(ctx, query, args)
}

func (r *postgresRepository) list(ctx context.Context, query string, args []any) ([]*Attendance, error) {
	var records []*Attendance
	if err := pgxscan.Select(ctx, r.db, &records, query, args...); err != nil {
		return nil, fmt.Errorf("scanning attendance records: %w", err)
	}
	return records, nil
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
