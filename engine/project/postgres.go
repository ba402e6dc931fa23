package project

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var projectColumns = []string{
	"id", "name", "code", "client_id", "timezone", "lat", "lng",
	"onsite_lead_id", "division_onsite_leads", "status", "created_at", "updated_at",
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

// NewPostgresRepository creates a project repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, p *Project) error {
	query, args, err := squirrel.Insert("projects").
		Columns(projectColumns...).
		Values(
			p.ID, p.Name, p.Code, p.ClientID, p.Timezone, p.Lat, p.Lng,
			p.OnsiteLeadID, p.DivisionOnsiteLeads, p.Status, p.CreatedAt, p.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id core.ID) (*Project, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

func (r *postgresRepository) GetByCode(ctx context.Context, code string) (*Project, error) {
	return r.getOne(ctx, squirrel.Eq{"code": code})
}

func (r *postgresRepository) getOne(ctx context.Context, pred any) (*Project, error) {
	query, args, err := squirrel.Select(projectColumns...).
		From("projects").
		Where(pred).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var p Project
	if err := pgxscan.Get(ctx, r.db, &p, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	return &p, nil
}

func (r *postgresRepository) GetByIDs(ctx context.Context, ids []core.ID) (map[core.ID]*Project, error) {
	out := make(map[core.ID]*Project, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := squirrel.Select(projectColumns...).
		From("projects").
		Where(squirrel.Eq{"id": ids}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var projects []*Project
	if err := pgxscan.Select(ctx, r.db, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("scanning projects: %w", err)
	}
	for _, p := range projects {
		out[p.ID] = p
	}
	return out, nil
}

func (r *postgresRepository) UpdateCoordinates(ctx context.Context, id core.ID, lat, lng *float64) error {
	query, args, err := squirrel.Update("projects").
		Set("lat", lat).
		Set("lng", lng).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating project coordinates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// WithTx returns a repository instance that uses the given transaction.
// pgx.Tx satisfies DBInterface, so the same queries run on either.
func (r *postgresRepository) WithTx(tx pgx.Tx) Repository {
	return &postgresRepository{db: tx}
}

var _ DBInterface = (pgx.Tx)(nil)
