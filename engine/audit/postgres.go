package audit

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var auditColumns = []string{
	"id", "entity_type", "entity_id", "action", "actor_id", "actor_role",
	"source", "ts", "changes", "context", "integrity_hash",
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

// NewPostgresRepository creates an audit repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Append(ctx context.Context, e *Entry) error {
	query, args, err := squirrel.Insert("audit_logs").
		Columns(auditColumns...).
		Values(
			e.ID, e.EntityType, e.EntityID, e.Action, e.ActorID, e.ActorRole,
			e.Source, e.Timestamp, e.Changes, e.Context, e.IntegrityHash,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListByEntity(ctx context.Context, entityType string, entityID core.ID) ([]*Entry, error) {
	query, args, err := squirrel.Select(auditColumns...).
		From("audit_logs").
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("ts DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var entries []*Entry
	if err := pgxscan.Select(ctx, r.db, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("scanning audit entries: %w", err)
	}
	return entries, nil
}

func (r *postgresRepository) LatestByEntityAction(
	ctx context.Context,
	entityType string,
	entityID core.ID,
	action string,
) (*Entry, error) {
	query, args, err := squirrel.Select(auditColumns...).
		From("audit_logs").
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID, "action": action}).
		OrderBy("ts DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var e Entry
	if err := pgxscan.Get(ctx, r.db, &e, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning audit entry: %w", err)
	}
	return &e, nil
}

func (r *postgresRepository) ListProjectTimeline(ctx context.Context, q *TimelineQuery) ([]*Entry, error) {
	builder := squirrel.Select(auditColumns...).
		From("audit_logs").
		Where(squirrel.Or{
			squirrel.Expr("context ->> 'project_id' = ?", q.ProjectID.String()),
			squirrel.Eq{"entity_type": EntityProject, "entity_id": q.ProjectID},
		}).
		OrderBy("ts DESC").
		PlaceholderFormat(squirrel.Dollar)
	if q.Section != "" {
		types, ok := sectionEntityTypes[q.Section]
		if !ok {
			return nil, core.Validationf("unknown timeline section %q", q.Section)
		}
		builder = builder.Where(squirrel.Eq{"entity_type": types})
	}
	if !q.Month.IsZero() {
		builder = builder.
			Where(squirrel.GtOrEq{"ts": q.Month}).
			Where(squirrel.Lt{"ts": q.Month.AddDate(0, 1, 0)})
	}
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit)).Offset(uint64(q.Offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building timeline query: %w", err)
	}
	var entries []*Entry
	if err := pgxscan.Select(ctx, r.db, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("scanning timeline entries: %w", err)
	}
	return entries, nil
}

// WithTx returns a repository instance that uses the given transaction.
// pgx.Tx satisfies DBInterface, so the same queries run on either.
func (r *postgresRepository) WithTx(tx pgx.Tx) Repository {
	return &postgresRepository{db: tx}
}

var _ DBInterface = (pgx.Tx)(nil)
