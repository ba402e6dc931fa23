package notify

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var notificationColumns = []string{
	"id", "user_id", "channel", "template_key", "payload", "status", "created_at",
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

// NewPostgresRepository creates a notification repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, n *Notification) error {
	query, args, err := squirrel.Insert("notifications").
		Columns(notificationColumns...).
		Values(n.ID, n.UserID, n.Channel, n.TemplateKey, n.Payload, n.Status, n.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListPending(ctx context.Context, limit int) ([]*Notification, error) {
	query, args, err := squirrel.Select(notificationColumns...).
		From("notifications").
		Where(squirrel.Eq{"status": StatusPending}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var pending []*Notification
	if err := pgxscan.Select(ctx, r.db, &pending, query, args...); err != nil {
		return nil, fmt.Errorf("scanning notifications: %w", err)
	}
	return pending, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id core.ID, status string) error {
	query, args, err := squirrel.Update("notifications").
		Set("status", status).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("updating notification status: %w", err)
	}
	return nil
}

// WithTx returns a repository instance that uses the given transaction.
// pgx.Tx satisfies DBInterface, so the same queries run on either.
func (r *postgresRepository) WithTx(tx pgx.Tx) Repository {
	return &postgresRepository{db: tx}
}

var _ DBInterface = (pgx.Tx)(nil)
