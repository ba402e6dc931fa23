package project

import (
	"context"
	"errors"
	"time"

	"github.com/fieldops/dispatch/engine/audit"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/perm"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// TxRunner opens one database transaction around a unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// GeofencePropagator pushes a coordinate change into the shifts that
// tracked the old location. Implemented by the shift manager; the
// indirection keeps this package free of a shift dependency.
type GeofencePropagator interface {
	// WithTx returns a propagator bound to the caller's transaction.
	WithTx(tx pgx.Tx) GeofencePropagator
	PropagateCoordinates(ctx context.Context, projectID core.ID, oldLat, oldLng float64) error
}

// Service owns the project mutations the dispatch core performs:
// coordinate updates with geofence propagation.
type Service struct {
	txr        TxRunner
	repo       Repository
	propagator GeofencePropagator
	auditor    *audit.Writer
	now        func() time.Time
}

// NewService creates a project service.
func NewService(txr TxRunner, repo Repository, propagator GeofencePropagator, auditor *audit.Writer) *Service {
	return &Service{txr: txr, repo: repo, propagator: propagator, auditor: auditor, now: time.Now}
}

// withTx binds the registry, the propagator and the audit writer to
// tx, so the coordinate update, the geofence resets and the audit row
// commit or roll back together.
func (s *Service) withTx(tx pgx.Tx) *Service {
	c := *s
	c.repo = s.repo.WithTx(tx)
	c.propagator = s.propagator.WithTx(tx)
	c.auditor = s.auditor.WithTx(tx)
	return &c
}

// WithClock overrides the service's time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns one project by id.
func (s *Service) Get(ctx context.Context, id core.ID) (*Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, core.NotFoundf("project %s not found", id)
		}
		return nil, err
	}
	return p, nil
}

// UpdateCoordinatesInput carries a new site location. Both values must
// be present to set a location; both absent clears it.
type UpdateCoordinatesInput struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// UpdateCoordinates moves the project's site location and resets the
// geofences of every shift that tracked the old one, in that order and
// in one transaction, so those shifts inherit the new location
// dynamically.
func (s *Service) UpdateCoordinates(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	input *UpdateCoordinatesInput,
) (*Project, error) {
	var out *Project
	err := s.txr.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = s.withTx(tx).updateCoordinates(ctx, actor, projectID, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) updateCoordinates(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	input *UpdateCoordinatesInput,
) (*Project, error) {
	if !perm.HasPermission(actor.Roles, perm.PermProjectCoordsUpdate) {
		return nil, core.Forbiddenf("not allowed to update project coordinates")
	}
	if (input.Lat == nil) != (input.Lng == nil) {
		return nil, core.Validationf("lat and lng must be provided together")
	}
	if input.Lat != nil {
		if *input.Lat < -90 || *input.Lat > 90 {
			return nil, core.Validationf("lat must be within [-90, 90]")
		}
		if *input.Lng < -180 || *input.Lng > 180 {
			return nil, core.Validationf("lng must be within [-180, 180]")
		}
	}
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, core.NotFoundf("project %s not found", projectID)
		}
		return nil, err
	}
	before := coordFields(p.Lat, p.Lng)
	hadCoords := p.HasCoordinates()
	oldLat, oldLng := 0.0, 0.0
	if hadCoords {
		oldLat, oldLng = *p.Lat, *p.Lng
	}
	if err := s.repo.UpdateCoordinates(ctx, projectID, input.Lat, input.Lng); err != nil {
		return nil, err
	}
	p.Lat, p.Lng = input.Lat, input.Lng
	p.UpdatedAt = s.now().UTC()
	if hadCoords {
		if err := s.propagator.PropagateCoordinates(ctx, projectID, oldLat, oldLng); err != nil {
			return nil, err
		}
	}
	if err := s.auditor.Record(ctx, audit.EntityProject, projectID, audit.ActionUpdate,
		audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, "app",
		map[string]any{"before": before, "after": coordFields(p.Lat, p.Lng)},
		map[string]any{"project_id": projectID.String()},
	); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Project coordinates updated",
		"project_id", projectID, "actor_id", actor.ID)
	return p, nil
}

func coordFields(lat, lng *float64) map[string]any {
	fields := map[string]any{}
	if lat != nil {
		fields["lat"] = *lat
	}
	if lng != nil {
		fields["lng"] = *lng
	}
	return fields
}
