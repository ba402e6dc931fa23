package shift

import (
	"context"
	"testing"
	"time"

	"github.com/fieldops/dispatch/engine/audit"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/geo"
	"github.com/fieldops/dispatch/engine/notify"
	"github.com/fieldops/dispatch/engine/perm"
	"github.com/fieldops/dispatch/engine/project"
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

type memShiftRepo struct {
	shifts  map[core.ID]*Shift
	txBinds int
}

func (m *memShiftRepo) WithTx(pgx.Tx) Repository {
	m.txBinds++
	return m
}

func newMemShiftRepo() *memShiftRepo {
	return &memShiftRepo{shifts: make(map[core.ID]*Shift)}
}

func (m *memShiftRepo) Create(_ context.Context, s *Shift) error {
	copied := *s
	m.shifts[s.ID] = &copied
	return nil
}

func (m *memShiftRepo) GetByID(_ context.Context, id core.ID) (*Shift, error) {
	s, ok := m.shifts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *memShiftRepo) Update(_ context.Context, s *Shift) error {
	if _, ok := m.shifts[s.ID]; !ok {
		return ErrNotFound
	}
	copied := *s
	m.shifts[s.ID] = &copied
	return nil
}

func (m *memShiftRepo) ListForWorkerWindow(
	_ context.Context,
	workerID core.ID,
	day time.Time,
	_ bool,
) ([]*Shift, error) {
	var out []*Shift
	for _, s := range m.shifts {
		if s.WorkerID != workerID || s.Status != StatusScheduled {
			continue
		}
		delta := s.WorkDate.Sub(day)
		if delta >= -24*time.Hour && delta <= 24*time.Hour {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memShiftRepo) ListVisible(_ context.Context, filter *ListFilter) ([]*Shift, error) {
	var out []*Shift
	for _, s := range m.shifts {
		if s.Status != StatusScheduled {
			continue
		}
		if !filter.ProjectID.IsZero() && s.ProjectID != filter.ProjectID {
			continue
		}
		if !filter.WorkerID.IsZero() && s.WorkerID != filter.WorkerID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memShiftRepo) ListForProject(
	_ context.Context,
	projectID core.ID,
	from, to time.Time,
) ([]*Shift, error) {
	var out []*Shift
	for _, s := range m.shifts {
		if s.ProjectID == projectID && !s.WorkDate.Before(from) && !s.WorkDate.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memShiftRepo) ListWithGeofences(_ context.Context, projectID core.ID) ([]*Shift, error) {
	var out []*Shift
	for _, s := range m.shifts {
		if s.ProjectID == projectID && len(s.Geofences) > 0 {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memShiftRepo) ClearGeofences(_ context.Context, ids []core.ID) error {
	for _, id := range ids {
		if s, ok := m.shifts[id]; ok {
			s.Geofences = nil
		}
	}
	return nil
}

type memProjectRepo struct {
	projects map[core.ID]*project.Project
}

func (m *memProjectRepo) WithTx(pgx.Tx) project.Repository { return m }

func (m *memProjectRepo) Create(_ context.Context, p *project.Project) error {
	m.projects[p.ID] = p
	return nil
}

func (m *memProjectRepo) GetByID(_ context.Context, id core.ID) (*project.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, project.ErrNotFound
	}
	return p, nil
}

func (m *memProjectRepo) GetByCode(_ context.Context, code string) (*project.Project, error) {
	for _, p := range m.projects {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, project.ErrNotFound
}

func (m *memProjectRepo) GetByIDs(_ context.Context, ids []core.ID) (map[core.ID]*project.Project, error) {
	out := make(map[core.ID]*project.Project)
	for _, id := range ids {
		if p, ok := m.projects[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memProjectRepo) UpdateCoordinates(_ context.Context, id core.ID, lat, lng *float64) error {
	p, ok := m.projects[id]
	if !ok {
		return project.ErrNotFound
	}
	p.Lat, p.Lng = lat, lng
	return nil
}

type memUserRepo struct {
	users map[core.ID]*user.User
}

func (m *memUserRepo) Create(_ context.Context, u *user.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id core.ID) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *memUserRepo) GetByIDs(_ context.Context, ids []core.ID) (map[core.ID]*user.User, error) {
	out := make(map[core.ID]*user.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

type memAuditRepo struct {
	entries []*audit.Entry
	txBinds int
}

func (m *memAuditRepo) WithTx(pgx.Tx) audit.Repository {
	m.txBinds++
	return m
}

func (m *memAuditRepo) Append(_ context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAuditRepo) ListByEntity(_ context.Context, entityType string, entityID core.ID) ([]*audit.Entry, error) {
	var out []*audit.Entry
	for _, e := range m.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memAuditRepo) LatestByEntityAction(
	_ context.Context,
	entityType string,
	entityID core.ID,
	action string,
) (*audit.Entry, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.EntityType == entityType && e.EntityID == entityID && e.Action == action {
			return e, nil
		}
	}
	return nil, nil
}

func (m *memAuditRepo) ListProjectTimeline(context.Context, *audit.TimelineQuery) ([]*audit.Entry, error) {
	return m.entries, nil
}

type memNotifyRepo struct {
	rows []*notify.Notification
}

func (m *memNotifyRepo) WithTx(pgx.Tx) notify.Repository { return m }

func (m *memNotifyRepo) Create(_ context.Context, n *notify.Notification) error {
	m.rows = append(m.rows, n)
	return nil
}

func (m *memNotifyRepo) ListPending(context.Context, int) ([]*notify.Notification, error) {
	return m.rows, nil
}

func (m *memNotifyRepo) UpdateStatus(context.Context, core.ID, string) error { return nil }

type fixture struct {
	service *Service
	txr     *passTxRunner
	shifts  *memShiftRepo
	audits  *memAuditRepo
	pushes  *memNotifyRepo
	admin   *user.User
	worker  *user.User
	project *project.Project
}

func newFixture() *fixture {
	lat, lng := 49.2827, -123.1207
	p := &project.Project{
		ID:       core.MustNewID(),
		Name:     "Harbour Tower",
		Code:     "HARBOUR",
		Timezone: "America/Vancouver",
		Lat:      &lat,
		Lng:      &lng,
	}
	admin := &user.User{ID: core.MustNewID(), Username: "ada", Roles: []string{user.RoleAdmin}, PushEnabled: true}
	worker := &user.User{ID: core.MustNewID(), Username: "wrenn", Roles: []string{user.RoleWorker}, PushEnabled: true}
	shifts := newMemShiftRepo()
	audits := &memAuditRepo{}
	pushes := &memNotifyRepo{}
	txr := &passTxRunner{}
	service := NewService(
		txr,
		shifts,
		&memProjectRepo{projects: map[core.ID]*project.Project{p.ID: p}},
		&memUserRepo{users: map[core.ID]*user.User{admin.ID: admin, worker.ID: worker}},
		perm.NewGate(5),
		audit.NewWriter(audits, "test-secret"),
		notify.NewGateway(pushes, true, true),
	)
	return &fixture{
		service: service, txr: txr, shifts: shifts, audits: audits, pushes: pushes,
		admin: admin, worker: worker, project: p,
	}
}

func (f *fixture) createShift(t *testing.T, day, start, end string) *Shift {
	t.Helper()
	created, err := f.service.Create(context.Background(), f.admin, &CreateInput{
		ProjectID: f.project.ID,
		WorkerID:  f.worker.ID,
		WorkDate:  day,
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)
	return created
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	t.Run("Should create a shift with audit and notification", func(t *testing.T) {
		f := newFixture()
		created := f.createShift(t, "2025-03-10", "08:00", "16:00")
		assert.Equal(t, StatusScheduled, created.Status)
		require.Len(t, f.audits.entries, 1)
		assert.Equal(t, audit.ActionCreate, f.audits.entries[0].Action)
		assert.NotEmpty(t, f.audits.entries[0].IntegrityHash)
		require.Len(t, f.pushes.rows, 1)
		assert.Equal(t, notify.TemplateShiftCreated, f.pushes.rows[0].TemplateKey)
	})
	t.Run("Should reject an overlapping shift with the conflicting id", func(t *testing.T) {
		f := newFixture()
		first := f.createShift(t, "2025-03-10", "08:00", "16:00")
		_, err := f.service.Create(ctx, f.admin, &CreateInput{
			ProjectID: f.project.ID,
			WorkerID:  f.worker.ID,
			WorkDate:  "2025-03-10",
			StartTime: "12:00",
			EndTime:   "20:00",
		})
		require.Error(t, err)
		assert.Equal(t, core.CodeConflict, core.CodeOf(err))
		assert.Equal(t, []string{first.ID.String()}, core.DetailsOf(err)["conflicting_shift_ids"])
		assert.Len(t, f.shifts.shifts, 1)
	})
	t.Run("Should forbid a worker creating a shift for someone else", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Create(ctx, f.worker, &CreateInput{
			ProjectID: f.project.ID,
			WorkerID:  f.admin.ID,
			WorkDate:  "2025-03-10",
			StartTime: "08:00",
			EndTime:   "16:00",
		})
		assert.Equal(t, core.CodeForbidden, core.CodeOf(err))
	})
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	t.Run("Should reject a date change and accept the identical date", func(t *testing.T) {
		f := newFixture()
		created := f.createShift(t, "2025-03-10", "08:00", "16:00")
		other := "2025-03-11"
		_, err := f.service.Update(ctx, f.admin, created.ID, &UpdateInput{WorkDate: &other})
		assert.Equal(t, core.CodeValidation, core.CodeOf(err))
		same := "2025-03-10"
		_, err = f.service.Update(ctx, f.admin, created.ID, &UpdateInput{WorkDate: &same})
		assert.NoError(t, err)
	})
	t.Run("Should reject a worker change", func(t *testing.T) {
		f := newFixture()
		created := f.createShift(t, "2025-03-10", "08:00", "16:00")
		_, err := f.service.Update(ctx, f.admin, created.ID, &UpdateInput{WorkerID: &f.admin.ID})
		assert.Equal(t, core.CodeValidation, core.CodeOf(err))
	})
	t.Run("Should re-run the conflict check on time changes", func(t *testing.T) {
		f := newFixture()
		f.createShift(t, "2025-03-10", "08:00", "12:00")
		second := f.createShift(t, "2025-03-10", "13:00", "17:00")
		newStart := "11:00"
		_, err := f.service.Update(ctx, f.admin, second.ID, &UpdateInput{StartTime: &newStart})
		assert.Equal(t, core.CodeConflict, core.CodeOf(err))
	})
	t.Run("Should audit the diff and notify on change", func(t *testing.T) {
		f := newFixture()
		created := f.createShift(t, "2025-03-10", "08:00", "16:00")
		newEnd := "17:00"
		_, err := f.service.Update(ctx, f.admin, created.ID, &UpdateInput{EndTime: &newEnd})
		require.NoError(t, err)
		last := f.audits.entries[len(f.audits.entries)-1]
		assert.Equal(t, audit.ActionUpdate, last.Action)
		after := last.Changes["after"].(map[string]any)
		assert.Equal(t, "17:00", after["end_time"])
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	t.Run("Should soft-delete with pre-image audit and cancellation push", func(t *testing.T) {
		f := newFixture()
		created := f.createShift(t, "2025-03-10", "08:00", "16:00")
		require.NoError(t, f.service.Delete(ctx, f.admin, created.ID))
		stored := f.shifts.shifts[created.ID]
		assert.Equal(t, StatusDeleted, stored.Status)
		last := f.audits.entries[len(f.audits.entries)-1]
		assert.Equal(t, audit.ActionDelete, last.Action)
		assert.Contains(t, last.Changes, "before")
		assert.Equal(t, notify.TemplateShiftCancelled, f.pushes.rows[len(f.pushes.rows)-1].TemplateKey)
	})
}

func TestServiceTransactions(t *testing.T) {
	ctx := context.Background()
	t.Run("Should run each mutation in one transaction with its collaborators bound", func(t *testing.T) {
		f := newFixture()
		created := f.createShift(t, "2025-03-10", "08:00", "16:00")
		assert.Equal(t, 1, f.txr.calls)
		assert.Equal(t, 1, f.shifts.txBinds)
		assert.Equal(t, 1, f.audits.txBinds)
		require.NoError(t, f.service.Delete(ctx, f.admin, created.ID))
		assert.Equal(t, 2, f.txr.calls)
	})
	t.Run("Should bind the propagator to a caller's transaction", func(t *testing.T) {
		f := newFixture()
		bound := f.service.WithTx(nil)
		require.NotNil(t, bound)
		assert.Equal(t, 1, f.shifts.txBinds)
	})
}

func TestServicePropagateCoordinates(t *testing.T) {
	ctx := context.Background()
	t.Run("Should reset only geofences tracking the old coordinates", func(t *testing.T) {
		f := newFixture()
		inheriting := f.createShift(t, "2025-03-10", "08:00", "16:00")
		tracking := f.createShift(t, "2025-03-11", "08:00", "16:00")
		custom := f.createShift(t, "2025-03-12", "08:00", "16:00")
		f.shifts.shifts[tracking.ID].Geofences = []geo.Region{
			{Lat: 49.2827, Lng: -123.1207, RadiusM: 150},
		}
		f.shifts.shifts[custom.ID].Geofences = []geo.Region{
			{Lat: 49.3000, Lng: -123.1500, RadiusM: 150},
		}
		require.NoError(t, f.service.PropagateCoordinates(ctx, f.project.ID, 49.2827, -123.1207))
		assert.Nil(t, f.shifts.shifts[inheriting.ID].Geofences)
		assert.Nil(t, f.shifts.shifts[tracking.ID].Geofences)
		assert.NotNil(t, f.shifts.shifts[custom.ID].Geofences)
	})
}
