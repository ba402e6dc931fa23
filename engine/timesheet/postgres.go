package timesheet

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

var entryColumns = []string{
	"id", "project_id", "user_id", "work_date", "start_time", "end_time",
	"minutes", "notes", "created_by", "created_at", "source_attendance_id",
	"is_approved", "approved_at", "approved_by",
}

var logColumns = []string{
	"id", "project_id", "entry_id", "action", "actor_id", "details", "created_at",
}

// DBInterface defines the minimal interface needed by the repositories.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DBInterface
}

// NewPostgresRepository creates a timesheet entry repository backed by
// PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, e *Entry) error {
	query, args, err := squirrel.Insert("project_time_entries").
		Columns(entryColumns...).
		Values(
			e.ID, e.ProjectID, e.UserID, e.WorkDate, e.StartTime, e.EndTime,
			e.Minutes, e.Notes, e.CreatedBy, e.CreatedAt, e.SourceAttendanceID,
			e.IsApproved, e.ApprovedAt, e.ApprovedBy,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting timesheet entry: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id core.ID) (*Entry, error) {
	query, args, err := squirrel.Select(entryColumns...).
		From("project_time_entries").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var e Entry
	if err := pgxscan.Get(ctx, r.db, &e, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning timesheet entry: %w", err)
	}
	return &e, nil
}

func (r *postgresRepository) Update(ctx context.Context, e *Entry) error {
	query, args, err := squirrel.Update("project_time_entries").
		Set("start_time", e.StartTime).
		Set("end_time", e.EndTime).
		Set("minutes", e.Minutes).
		Set("notes", e.Notes).
		Set("source_attendance_id", e.SourceAttendanceID).
		Set("is_approved", e.IsApproved).
		Set("approved_at", e.ApprovedAt).
		Set("approved_by", e.ApprovedBy).
		Where(squirrel.Eq{"id": e.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating timesheet entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("project_time_entries").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting timesheet entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) GetBySourceAttendance(ctx context.Context, attendanceID core.ID) (*Entry, error) {
	query, args, err := squirrel.Select(entryColumns...).
		From("project_time_entries").
		Where(squirrel.Eq{"source_attendance_id": attendanceID}).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var e Entry
	if err := pgxscan.Get(ctx, r.db, &e, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning timesheet entry: %w", err)
	}
	return &e, nil
}

func (r *postgresRepository) ListForProjectWindow(
	ctx context.Context,
	projectID core.ID,
	from, to time.Time,
	userID core.ID,
) ([]*Entry, error) {
	builder := squirrel.Select(entryColumns...).
		From("project_time_entries").
		Where(squirrel.Eq{"project_id": projectID}).
		Where(squirrel.GtOrEq{"work_date": from}).
		Where(squirrel.LtOrEq{"work_date": to}).
		OrderBy("work_date ASC, start_time ASC").
		PlaceholderFormat(squirrel.Dollar)
	if !userID.IsZero() {
		builder = builder.Where(squirrel.Eq{"user_id": userID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var entries []*Entry
	if err := pgxscan.Select(ctx, r.db, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("scanning timesheet entries: %w", err)
	}
	return entries, nil
}

func (r *postgresRepository) ListForUserWindow(
	ctx context.Context,
	userID core.ID,
	from, to time.Time,
) ([]*Entry, error) {
	query, args, err := squirrel.Select(entryColumns...).
		From("project_time_entries").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"work_date": from}).
		Where(squirrel.LtOrEq{"work_date": to}).
		OrderBy("work_date ASC, start_time ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var entries []*Entry
	if err := pgxscan.Select(ctx, r.db, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("scanning timesheet entries: %w", err)
	}
	return entries, nil
}

func (r *postgresRepository) SumByProject(ctx context.Context, from, to time.Time) ([]*ProjectTotal, error) {
	query, args, err := squirrel.Select(
		"project_id",
		"COALESCE(SUM(minutes), 0) AS minutes",
		"COUNT(*) AS entries",
	).
		From("project_time_entries").
		Where(squirrel.GtOrEq{"work_date": from}).
		Where(squirrel.LtOrEq{"work_date": to}).
		GroupBy("project_id").
		OrderBy("minutes DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var totals []*ProjectTotal
	if err := pgxscan.Select(ctx, r.db, &totals, query, args...); err != nil {
		return nil, fmt.Errorf("scanning project totals: %w", err)
	}
	return totals, nil
}

type postgresLogRepository struct {
	db DBInterface
}

// NewPostgresLogRepository creates a timesheet log repository backed by
// PostgreSQL.
func NewPostgresLogRepository(db DBInterface) LogRepository {
	return &postgresLogRepository{db: db}
}

func (r *postgresLogRepository) Append(ctx context.Context, l *Log) error {
	query, args, err := squirrel.Insert("project_time_entry_logs").
		Columns(logColumns...).
		Values(l.ID, l.ProjectID, l.EntryID, l.Action, l.ActorID, l.Details, l.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting timesheet log: %w", err)
	}
	return nil
}

func (r *postgresLogRepository) ListForProject(
	ctx context.Context,
	projectID core.ID,
	limit, offset int,
) ([]*Log, error) {
	builder := squirrel.Select(logColumns...).
		From("project_time_entry_logs").
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if limit > 0 {
		builder = builder.Limit(uint64(limit)).Offset(uint64(offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var logs []*Log
	if err := pgxscan.Select(ctx, r.db, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("scanning timesheet logs: %w", err)
	}
	return logs, nil
}

// WithTx returns a repository instance that uses the given transaction.
// pgx.Tx satisfies DBInterface, so the same queries run on either.
func (r *postgresRepository) WithTx(tx pgx.Tx) Repository {
	return &postgresRepository{db: tx}
}

// WithTx returns a log repository bound to the given transaction.
func (r *postgresLogRepository) WithTx(tx pgx.Tx) LogRepository {
	return &postgresLogRepository{db: tx}
}

var _ DBInterface = (pgx.Tx)(nil)
