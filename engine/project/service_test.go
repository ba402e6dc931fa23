package project

import (
	"context"
	"testing"
	"time"

	"github.com/fieldops/dispatch/engine/audit"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// passTxRunner stands in for the store: it counts transactions and runs
// the unit of work directly.
type passTxRunner struct {
	calls int
}

func (p *passTxRunner) WithTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	p.calls++
	return fn(nil)
}

type memRepo struct {
	projects map[core.ID]*Project
	txBinds  int
}

func (m *memRepo) WithTx(pgx.Tx) Repository {
	m.txBinds++
	return m
}

func (m *memRepo) Create(_ context.Context, p *Project) error {
	m.projects[p.ID] = p
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id core.ID) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *memRepo) GetByCode(_ context.Context, code string) (*Project, error) {
	for _, p := range m.projects {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) GetByIDs(_ context.Context, ids []core.ID) (map[core.ID]*Project, error) {
	out := make(map[core.ID]*Project)
	for _, id := range ids {
		if p, ok := m.projects[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memRepo) UpdateCoordinates(_ context.Context, id core.ID, lat, lng *float64) error {
	p, ok := m.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.Lat, p.Lng = lat, lng
	return nil
}

type stubPropagator struct {
	calls   int
	oldLat  float64
	oldLng  float64
	txBinds int
}

func (s *stubPropagator) WithTx(pgx.Tx) GeofencePropagator {
	s.txBinds++
	return s
}

func (s *stubPropagator) PropagateCoordinates(_ context.Context, _ core.ID, oldLat, oldLng float64) error {
	s.calls++
	s.oldLat, s.oldLng = oldLat, oldLng
	return nil
}

type memAuditRepo struct {
	entries []*audit.Entry
}

func (m *memAuditRepo) WithTx(pgx.Tx) audit.Repository { return m }

func (m *memAuditRepo) Append(_ context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAuditRepo) ListByEntity(context.Context, string, core.ID) ([]*audit.Entry, error) {
	return m.entries, nil
}

func (m *memAuditRepo) LatestByEntityAction(context.Context, string, core.ID, string) (*audit.Entry, error) {
	return nil, nil
}

func (m *memAuditRepo) ListProjectTimeline(context.Context, *audit.TimelineQuery) ([]*audit.Entry, error) {
	return m.entries, nil
}

func floatPtr(v float64) *float64 { return &v }

func TestUpdateCoordinates(t *testing.T) {
	ctx := context.Background()
	admin := &user.User{ID: core.MustNewID(), Username: "ada", Roles: []string{user.RoleAdmin}}
	worker := &user.User{ID: core.MustNewID(), Username: "wrenn", Roles: []string{user.RoleWorker}}
	newFixture := func(lat, lng *float64) (*Service, *memRepo, *stubPropagator, *memAuditRepo, core.ID) {
		projectID := core.MustNewID()
		repo := &memRepo{projects: map[core.ID]*Project{projectID: {
			ID: projectID, Name: "Harbour Tower", Code: "HARBOUR",
			Timezone: "America/Vancouver", Lat: lat, Lng: lng,
		}}}
		propagator := &stubPropagator{}
		audits := &memAuditRepo{}
		service := NewService(&passTxRunner{}, repo, propagator, audit.NewWriter(audits, "test-secret")).
			WithClock(func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) })
		return service, repo, propagator, audits, projectID
	}
	t.Run("Should move the site and propagate the old coordinates", func(t *testing.T) {
		service, repo, propagator, audits, projectID := newFixture(floatPtr(49.2827), floatPtr(-123.1207))
		p, err := service.UpdateCoordinates(ctx, admin, projectID, &UpdateCoordinatesInput{
			Lat: floatPtr(49.25), Lng: floatPtr(-123.0),
		})
		require.NoError(t, err)
		require.NotNil(t, p.Lat)
		assert.InDelta(t, 49.25, *p.Lat, 1e-9)
		assert.Equal(t, 1, propagator.calls)
		assert.InDelta(t, 49.2827, propagator.oldLat, 1e-9)
		assert.InDelta(t, -123.1207, propagator.oldLng, 1e-9)
		stored, err := repo.GetByID(ctx, projectID)
		require.NoError(t, err)
		assert.InDelta(t, -123.0, *stored.Lng, 1e-9)
		require.Len(t, audits.entries, 1)
		assert.Equal(t, audit.EntityProject, audits.entries[0].EntityType)
		assert.Equal(t, audit.ActionUpdate, audits.entries[0].Action)
	})
	t.Run("Should skip propagation when the project had no location", func(t *testing.T) {
		service, _, propagator, _, projectID := newFixture(nil, nil)
		_, err := service.UpdateCoordinates(ctx, admin, projectID, &UpdateCoordinatesInput{
			Lat: floatPtr(49.25), Lng: floatPtr(-123.0),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, propagator.calls)
	})
	t.Run("Should reject a lone coordinate", func(t *testing.T) {
		service, _, _, _, projectID := newFixture(nil, nil)
		_, err := service.UpdateCoordinates(ctx, admin, projectID, &UpdateCoordinatesInput{
			Lat: floatPtr(49.25),
		})
		assert.Equal(t, core.CodeValidation, core.CodeOf(err))
	})
	t.Run("Should reject out-of-range coordinates", func(t *testing.T) {
		service, _, _, _, projectID := newFixture(nil, nil)
		_, err := service.UpdateCoordinates(ctx, admin, projectID, &UpdateCoordinatesInput{
			Lat: floatPtr(123.0), Lng: floatPtr(-123.0),
		})
		assert.Equal(t, core.CodeValidation, core.CodeOf(err))
	})
	t.Run("Should forbid non-admin actors", func(t *testing.T) {
		service, _, propagator, _, projectID := newFixture(floatPtr(49.2827), floatPtr(-123.1207))
		_, err := service.UpdateCoordinates(ctx, worker, projectID, &UpdateCoordinatesInput{
			Lat: floatPtr(49.25), Lng: floatPtr(-123.0),
		})
		assert.Equal(t, core.CodeForbidden, core.CodeOf(err))
		assert.Equal(t, 0, propagator.calls)
	})
	t.Run("Should run the move and the geofence resets in one transaction", func(t *testing.T) {
		projectID := core.MustNewID()
		repo := &memRepo{projects: map[core.ID]*Project{projectID: {
			ID: projectID, Name: "Harbour Tower", Code: "HARBOUR",
			Timezone: "America/Vancouver", Lat: floatPtr(49.2827), Lng: floatPtr(-123.1207),
		}}}
		propagator := &stubPropagator{}
		audits := &memAuditRepo{}
		txr := &passTxRunner{}
		service := NewService(txr, repo, propagator, audit.NewWriter(audits, "test-secret"))
		_, err := service.UpdateCoordinates(ctx, admin, projectID, &UpdateCoordinatesInput{
			Lat: floatPtr(49.25), Lng: floatPtr(-123.0),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, txr.calls)
		assert.Equal(t, 1, repo.txBinds)
		assert.Equal(t, 1, propagator.txBinds)
		assert.Equal(t, 1, propagator.calls)
	})
}
