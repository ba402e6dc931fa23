package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBInterface defines the minimal interface needed by the repository.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DBInterface
}

// NewPostgresRepository creates a settings repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetItemValue(ctx context.Context, listName, label string) (json.RawMessage, error) {
	const query = `
		SELECT si.value
		FROM setting_items si
		JOIN setting_lists sl ON sl.id = si.list_id
		WHERE sl.name = $1 AND si.label = $2
	`
	var value json.RawMessage
	if err := pgxscan.Get(ctx, r.db, &value, query, listName, label); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("scanning setting item: %w", err)
	}
	return value, nil
}

func (r *postgresRepository) UpsertItem(ctx context.Context, listName, label string, value json.RawMessage) error {
	const listQuery = `
		INSERT INTO setting_lists (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`
	var listID string
	if err := r.db.QueryRow(ctx, listQuery, core.MustNewID(), listName).Scan(&listID); err != nil {
		return fmt.Errorf("upserting setting list %q: %w", listName, err)
	}
	const itemQuery = `
		INSERT INTO setting_items (id, list_id, label, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (list_id, label) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := r.db.Exec(ctx, itemQuery, core.MustNewID(), listID, label, value); err != nil {
		return fmt.Errorf("upserting setting item %q: %w", label, err)
	}
	return nil
}
