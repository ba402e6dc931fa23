package project

import (
	"context"
	"errors"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a project does not exist.
var ErrNotFound = errors.New("project not found")

// Repository defines the project registry access the core needs.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id core.ID) (*Project, error)
	GetByCode(ctx context.Context, code string) (*Project, error)
	GetByIDs(ctx context.Context, ids []core.ID) (map[core.ID]*Project, error)
	// UpdateCoordinates persists a new site location. The caller owns
	// the geofence propagation into shifts.
	UpdateCoordinates(ctx context.Context, id core.ID, lat, lng *float64) error
	// WithTx returns a repository bound to the transaction.
	WithTx(tx pgx.Tx) Repository
}

// NameLookup adapts the registry to the audit timeline's project name
// resolution.
type NameLookup struct {
	Repo Repository
}

// ProjectName returns the display name of the project.
func (n NameLookup) ProjectName(ctx context.Context, id core.ID) (string, error) {
	p, err := n.Repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}
