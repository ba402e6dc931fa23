package task

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var itemColumns = []string{
	"id", "title", "assignee_id", "origin_type", "origin_id", "status",
	"created_at", "completed_at",
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

// NewPostgresRepository creates a task repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, item *Item) error {
	query, args, err := squirrel.Insert("task_items").
		Columns(itemColumns...).
		Values(
			item.ID, item.Title, item.AssigneeID, item.OriginType, item.OriginID,
			item.Status, item.CreatedAt, item.CompletedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting task item: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListOpenByOrigin(
	ctx context.Context,
	originType string,
	originID core.ID,
) ([]*Item, error) {
	query, args, err := squirrel.Select(itemColumns...).
		From("task_items").
		Where(squirrel.Eq{"origin_type": originType, "origin_id": originID, "status": StatusOpen}).
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var items []*Item
	if err := pgxscan.Select(ctx, r.db, &items, query, args...); err != nil {
		return nil, fmt.Errorf("scanning task items: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) CompleteByOrigin(
	ctx context.Context,
	originType string,
	originID core.ID,
) (int, error) {
	query, args, err := squirrel.Update("task_items").
		Set("status", StatusCompleted).
		Set("completed_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"origin_type": originType, "origin_id": originID, "status": StatusOpen}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("completing task items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// WithTx returns a repository instance that uses the given transaction.
// pgx.Tx satisfies DBInterface, so the same queries run on either.
func (r *postgresRepository) WithTx(tx pgx.Tx) Repository {
	return &postgresRepository{db: tx}
}

var _ DBInterface = (pgx.Tx)(nil)
