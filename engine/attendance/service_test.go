package attendance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fieldops/dispatch/engine/audit"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/geo"
	"github.com/fieldops/dispatch/engine/notify"
	"github.com/fieldops/dispatch/engine/perm"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/fieldops/dispatch/engine/shift"
	"github.com/fieldops/dispatch/engine/task"
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

type memAttendanceRepo struct {
	rows    []*Attendance
	txBinds int
}

func (m *memAttendanceRepo) WithTx(pgx.Tx) Repository {
	m.txBinds++
	return m
}

func (m *memAttendanceRepo) Create(_ context.Context, a *Attendance) error {
	copied := *a
	m.rows = append(m.rows, &copied)
	return nil
}

func (m *memAttendanceRepo) GetByID(_ context.Context, id core.ID) (*Attendance, error) {
	for _, row := range m.rows {
		if row.ID == id {
			copied := *row
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memAttendanceRepo) Update(_ context.Context, a *Attendance) error {
	for i, row := range m.rows {
		if row.ID == a.ID {
			copied := *a
			m.rows[i] = &copied
			return nil
		}
	}
	return ErrNotFound
}

func (m *memAttendanceRepo) Delete(_ context.Context, id core.ID) error {
	for i, row := range m.rows {
		if row.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memAttendanceRepo) FindOpenClockIn(
	_ context.Context,
	workerID core.ID,
	shiftID *core.ID,
	jobType string,
) (*Attendance, error) {
	var latest *Attendance
	for _, row := range m.rows {
		if row.WorkerID != workerID || row.ClockInAt == nil || row.ClockOutAt != nil {
			continue
		}
		if shiftID != nil {
			if row.ShiftID == nil || *row.ShiftID != *shiftID {
				continue
			}
		} else {
			if row.ShiftID != nil || row.Reason == nil ||
				!strings.HasPrefix(*row.Reason, "JOB_TYPE:"+jobType) {
				continue
			}
		}
		if latest == nil || row.ClockInAt.After(*latest.ClockInAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (m *memAttendanceRepo) ListForWorkerWindow(
	_ context.Context,
	workerID core.ID,
	from, to time.Time,
) ([]*Attendance, error) {
	var out []*Attendance
	inWindow := func(t *time.Time) bool {
		return t != nil && !t.Before(from) && t.Before(to)
	}
	for _, row := range m.rows {
		if row.WorkerID == workerID && (inWindow(row.ClockInAt) || inWindow(row.ClockOutAt)) {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memAttendanceRepo) ListByShift(_ context.Context, shiftID core.ID) ([]*Attendance, error) {
	var out []*Attendance
	for _, row := range m.rows {
		if row.ShiftID != nil && *row.ShiftID == shiftID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memAttendanceRepo) ListByShiftIDs(
	_ context.Context,
	shiftIDs []core.ID,
	_, _ time.Time,
) ([]*Attendance, error) {
	ids := make(map[core.ID]struct{}, len(shiftIDs))
	for _, id := range shiftIDs {
		ids[id] = struct{}{}
	}
	var out []*Attendance
	for _, row := range m.rows {
		if row.ShiftID == nil {
			continue
		}
		if _, ok := ids[*row.ShiftID]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memAttendanceRepo) ListPending(context.Context) ([]*Attendance, error) {
	var out []*Attendance
	for _, row := range m.rows {
		if row.Status == StatusPending {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memAttendanceRepo) ListDirectForWorkerDay(
	_ context.Context,
	workerID core.ID,
	dayStart, dayEnd time.Time,
) ([]*Attendance, error) {
	var out []*Attendance
	for _, row := range m.rows {
		if row.WorkerID == workerID && row.ShiftID == nil && row.ClockInAt != nil &&
			!row.ClockInAt.Before(dayStart) && row.ClockInAt.Before(dayEnd) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memAttendanceRepo) ListApprovedForProjectUserDate(
	context.Context, core.ID, core.ID, time.Time,
) ([]*Attendance, error) {
	return nil, nil
}

type memShiftRepo struct {
	shifts map[core.ID]*shift.Shift
}

func (m *memShiftRepo) WithTx(pgx.Tx) shift.Repository { return m }

func (m *memShiftRepo) Create(_ context.Context, s *shift.Shift) error {
	m.shifts[s.ID] = s
	return nil
}

func (m *memShiftRepo) GetByID(_ context.Context, id core.ID) (*shift.Shift, error) {
	s, ok := m.shifts[id]
	if !ok {
		return nil, shift.ErrNotFound
	}
	return s, nil
}

func (m *memShiftRepo) Update(context.Context, *shift.Shift) error { return nil }

func (m *memShiftRepo) ListForWorkerWindow(
	context.Context, core.ID, time.Time, bool,
) ([]*shift.Shift, error) {
	return nil, nil
}

func (m *memShiftRepo) ListVisible(context.Context, *shift.ListFilter) ([]*shift.Shift, error) {
	return nil, nil
}

func (m *memShiftRepo) ListForProject(
	context.Context, core.ID, time.Time, time.Time,
) ([]*shift.Shift, error) {
	return nil, nil
}

func (m *memShiftRepo) ListWithGeofences(context.Context, core.ID) ([]*shift.Shift, error) {
	return nil, nil
}

func (m *memShiftRepo) ClearGeofences(context.Context, []core.ID) error { return nil }

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

func (m *memAuditRepo) ListByEntity(context.Context, string, core.ID) ([]*audit.Entry, error) {
	return m.entries, nil
}

func (m *memAuditRepo) LatestByEntityAction(
	context.Context, string, core.ID, string,
) (*audit.Entry, error) {
	return nil, nil
}

func (m *memAuditRepo) ListProjectTimeline(context.Context, *audit.TimelineQuery) ([]*audit.Entry, error) {
	return m.entries, nil
}

func (m *memAuditRepo) last() *audit.Entry {
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[len(m.entries)-1]
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

type memTaskRepo struct {
	items []*task.Item
}

func (m *memTaskRepo) WithTx(pgx.Tx) task.Repository { return m }

func (m *memTaskRepo) Create(_ context.Context, item *task.Item) error {
	m.items = append(m.items, item)
	return nil
}

func (m *memTaskRepo) ListOpenByOrigin(
	_ context.Context,
	originType string,
	originID core.ID,
) ([]*task.Item, error) {
	var out []*task.Item
	for _, item := range m.items {
		if item.OriginType == originType && item.OriginID == originID && item.Status == task.StatusOpen {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memTaskRepo) CompleteByOrigin(
	_ context.Context,
	originType string,
	originID core.ID,
) (int, error) {
	completed := 0
	for _, item := range m.items {
		if item.OriginType == originType && item.OriginID == originID && item.Status == task.StatusOpen {
			item.Status = task.StatusCompleted
			completed++
		}
	}
	return completed, nil
}

type stubMaterializer struct {
	calls   int
	last    *Attendance
	txBinds int
}

func (m *stubMaterializer) WithTx(pgx.Tx) Materializer {
	m.txBinds++
	return m
}

func (m *stubMaterializer) MaterializeFromAttendance(
	_ context.Context,
	a *Attendance,
	_ *shift.Shift,
	_ *time.Location,
) error {
	m.calls++
	copied := *a
	m.last = &copied
	return nil
}

type attFixture struct {
	service    *Service
	txr        *passTxRunner
	records    *memAttendanceRepo
	audits     *memAuditRepo
	pushes     *memNotifyRepo
	tasks      *memTaskRepo
	mat        *stubMaterializer
	projects   *memProjectRepo
	admin      *user.User
	supervisor *user.User
	worker     *user.User
	project    *project.Project
	shift      *shift.Shift
	loc        *time.Location
	now        time.Time
}

func newAttFixture(t *testing.T) *attFixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Vancouver")
	require.NoError(t, err)
	lat, lng := 49.2827, -123.1207
	p := &project.Project{
		ID:       core.MustNewID(),
		Name:     "Harbour Tower",
		Code:     "HARBOUR",
		Timezone: "America/Vancouver",
		Lat:      &lat,
		Lng:      &lng,
	}
	admin := &user.User{
		ID: core.MustNewID(), Username: "ada",
		Roles: []string{user.RoleAdmin}, PushEnabled: true,
	}
	supervisor := &user.User{
		ID: core.MustNewID(), Username: "sam",
		Roles: []string{user.RoleSupervisor}, PushEnabled: true,
	}
	worker := &user.User{
		ID: core.MustNewID(), Username: "wrenn", FirstName: "Wrenn", LastName: "Okafor",
		Roles: []string{user.RoleWorker}, ManagerUserID: &supervisor.ID, PushEnabled: true,
	}
	sh := &shift.Shift{
		ID:        core.MustNewID(),
		ProjectID: p.ID,
		WorkerID:  worker.ID,
		WorkDate:  time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "08:00",
		EndTime:   "16:00",
		Status:    shift.StatusScheduled,
		CreatedBy: admin.ID,
	}
	thirty := 30
	f := &attFixture{
		txr:     &passTxRunner{},
		records: &memAttendanceRepo{},
		audits:  &memAuditRepo{},
		pushes:  &memNotifyRepo{},
		tasks:   &memTaskRepo{},
		mat:     &stubMaterializer{},
		projects: &memProjectRepo{
			projects: map[core.ID]*project.Project{p.ID: p},
		},
		admin:      admin,
		supervisor: supervisor,
		worker:     worker,
		project:    p,
		shift:      sh,
		loc:        loc,
		now:        time.Date(2025, 3, 10, 8, 10, 0, 0, loc),
	}
	f.service = NewService(
		f.txr,
		f.records,
		&memShiftRepo{shifts: map[core.ID]*shift.Shift{sh.ID: sh}},
		f.projects,
		&memUserRepo{users: map[core.ID]*user.User{
			admin.ID: admin, supervisor.ID: supervisor, worker.ID: worker,
		}},
		perm.NewGate(5),
		&stubBreakPolicy{defaultMin: &thirty, eligible: map[core.ID]struct{}{worker.ID: {}}},
		audit.NewWriter(f.audits, "test-secret"),
		notify.NewGateway(f.pushes, true, true),
		task.NewSeeder(f.tasks),
		f.mat,
		Config{DefaultTimezone: "America/Vancouver", GeoRadiusM: 150, GeoMaxSlackM: 50},
	).WithClock(func() time.Time { return f.now })
	return f
}

func (f *attFixture) clockIn(t *testing.T, timeLocal string) *Attendance {
	t.Helper()
	record, err := f.service.Clock(context.Background(), f.worker, &ClockInput{
		ShiftID: f.shift.ID, Type: TypeIn, TimeLocal: timeLocal,
	})
	require.NoError(t, err)
	return record
}

func TestServiceClock(t *testing.T) {
	ctx := context.Background()
	t.Run("Should round a same-day clock-in and approve it without a timesheet entry", func(t *testing.T) {
		f := newAttFixture(t)
		record := f.clockIn(t, "2025-03-10T08:03:00")
		assert.Equal(t, StatusApproved, record.Status)
		want := time.Date(2025, 3, 10, 8, 5, 0, 0, f.loc).UTC()
		require.NotNil(t, record.ClockInAt)
		assert.True(t, record.ClockInAt.Equal(want))
		assert.Nil(t, record.ClockOutAt)
		assert.Equal(t, 0, f.mat.calls)
		last := f.audits.last()
		require.NotNil(t, last)
		assert.Equal(t, audit.ActionClockIn, last.Action)
		assert.NotEmpty(t, last.IntegrityHash)
		require.Len(t, f.pushes.rows, 1)
		assert.Equal(t, notify.TemplateAttendanceApproved, f.pushes.rows[0].TemplateKey)
		assert.Empty(t, f.tasks.items)
	})
	t.Run("Should pair a clock-out, deduct the default break and materialise", func(t *testing.T) {
		f := newAttFixture(t)
		opened := f.clockIn(t, "2025-03-10T08:03:00")
		f.now = time.Date(2025, 3, 10, 16, 40, 0, 0, f.loc)
		record, err := f.service.Clock(ctx, f.worker, &ClockInput{
			ShiftID: f.shift.ID, Type: TypeOut, TimeLocal: "2025-03-10T16:33:00",
		})
		require.NoError(t, err)
		assert.Equal(t, opened.ID, record.ID)
		wantOut := time.Date(2025, 3, 10, 16, 35, 0, 0, f.loc).UTC()
		require.NotNil(t, record.ClockOutAt)
		assert.True(t, record.ClockOutAt.Equal(wantOut))
		require.NotNil(t, record.BreakMinutes)
		assert.Equal(t, 30, *record.BreakMinutes)
		assert.Equal(t, 510, record.TotalMinutes())
		assert.Equal(t, 480, record.NetMinutes())
		assert.Equal(t, StatusApproved, record.Status)
		assert.Equal(t, 1, f.mat.calls)
		assert.Equal(t, audit.ActionClockOut, f.audits.last().Action)
		assert.Len(t, f.records.rows, 1)
	})
	t.Run("Should mark a back-dated clock-in pending and seed the approval task", func(t *testing.T) {
		f := newAttFixture(t)
		record, err := f.service.Clock(ctx, f.worker, &ClockInput{
			ShiftID: f.shift.ID, Type: TypeIn, TimeLocal: "2025-03-09T08:00:00",
		})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, record.Status)
		assert.Equal(t, 0, f.mat.calls)
		require.Len(t, f.tasks.items, 1)
		item := f.tasks.items[0]
		assert.Equal(t, task.OriginSystemAttendance, item.OriginType)
		assert.Equal(t, record.ID, item.OriginID)
		require.NotNil(t, item.AssigneeID)
		assert.Equal(t, f.supervisor.ID, *item.AssigneeID)
		assert.Contains(t, item.Title, "Wrenn Okafor")
		require.Len(t, f.pushes.rows, 2)
		assert.Equal(t, f.worker.ID, f.pushes.rows[0].UserID)
		assert.Equal(t, f.supervisor.ID, f.pushes.rows[1].UserID)
		assert.Equal(t, notify.TemplateAttendancePending, f.pushes.rows[1].TemplateKey)
	})
	t.Run("Should reject a clock time in the future", func(t *testing.T) {
		f := newAttFixture(t)
		_, err := f.service.Clock(ctx, f.worker, &ClockInput{
			ShiftID: f.shift.ID, Type: TypeIn, TimeLocal: "2025-03-10T08:20:00",
		})
		assert.Equal(t, core.CodeValidation, core.CodeOf(err))
	})
	t.Run("Should reject a clock-in overlapping a completed pair", func(t *testing.T) {
		f := newAttFixture(t)
		f.clockIn(t, "2025-03-10T08:03:00")
		f.now = time.Date(2025, 3, 10, 16, 40, 0, 0, f.loc)
		_, err := f.service.Clock(ctx, f.worker, &ClockInput{
			ShiftID: f.shift.ID, Type: TypeOut, TimeLocal: "2025-03-10T16:33:00",
		})
		require.NoError(t, err)
		f.now = time.Date(2025, 3, 10, 17, 0, 0, 0, f.loc)
		_, err = f.service.Clock(ctx, f.worker, &ClockInput{
			ShiftID: f.shift.ID, Type: TypeIn, TimeLocal: "2025-03-10T12:00:00",
		})
		assert.Equal(t, core.CodeConflict, core.CodeOf(err))
	})
	t.Run("Should record the geofence verdict on the clock-in sample", func(t *testing.T) {
		f := newAttFixture(t)
		accuracy := 10.0
		record, err := f.service.Clock(ctx, f.worker, &ClockInput{
			ShiftID:   f.shift.ID,
			Type:      TypeIn,
			TimeLocal: "2025-03-10T08:03:00",
			GPS:       &geo.Sample{Lat: 49.2827, Lng: -123.1207, AccuracyM: &accuracy},
		})
		require.NoError(t, err)
		require.NotNil(t, record.ClockInGPS)
		assert.True(t, record.ClockInGPS.Inside)
		assert.Equal(t, StatusApproved, record.Status)
	})
	t.Run("Should forbid clocking another worker's shift", func(t *testing.T) {
		f := newAttFixture(t)
		_, err := f.service.Clock(ctx, f.admin, &ClockInput{
			ShiftID: f.shift.ID, Type: TypeIn, TimeLocal: "2025-03-10T08:03:00",
		})
		assert.Equal(t, core.CodeForbidden, core.CodeOf(err))
	})
}

func TestServiceClockOnBehalf(t *testing.T) {
	ctx := context.Background()
	t.Run("Should require a reason of policy length", func(t *testing.T) {
		f := newAttFixture(t)
		_, err := f.service.ClockOnBehalf(ctx, f.supervisor, &SupervisorClockInput{
			ClockInput: ClockInput{ShiftID: f.shift.ID, Type: TypeIn, TimeLocal: "2025-03-10T08:00:00"},
			WorkerID:   f.worker.ID,
		})
		assert.Equal(t, core.CodeValidation, core.CodeOf(err))
	})
	t.Run("Should approve a same-day event recorded by a supervisor", func(t *testing.T) {
		f := newAttFixture(t)
		record, err := f.service.ClockOnBehalf(ctx, f.supervisor, &SupervisorClockInput{
			ClockInput: ClockInput{
				ShiftID: f.shift.ID, Type: TypeIn,
				TimeLocal: "2025-03-10T08:00:00", Reason: "worker forgot their phone",
			},
			WorkerID: f.worker.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, record.Status)
		assert.Equal(t, SourceSupervisor, record.Source)
		assert.Equal(t, f.supervisor.ID, record.CreatedBy)
		assert.Equal(t, f.worker.ID, record.WorkerID)
	})
	t.Run("Should mark a back-dated event by an unrelated supervisor pending", func(t *testing.T) {
		f := newAttFixture(t)
		other := &user.User{
			ID: core.MustNewID(), Username: "sal",
			Roles: []string{user.RoleSupervisor}, PushEnabled: true,
		}
		f.worker.ManagerUserID = nil
		record, err := f.service.ClockOnBehalf(ctx, other, &SupervisorClockInput{
			ClockInput: ClockInput{
				ShiftID: f.shift.ID, Type: TypeIn,
				TimeLocal: "2025-03-09T08:00:00", Reason: "missed punch yesterday",
			},
			WorkerID: f.worker.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, record.Status)
	})
	t.Run("Should trust the worker's direct manager on a back-dated event", func(t *testing.T) {
		f := newAttFixture(t)
		record, err := f.service.ClockOnBehalf(ctx, f.supervisor, &SupervisorClockInput{
			ClockInput: ClockInput{
				ShiftID: f.shift.ID, Type: TypeIn,
				TimeLocal: "2025-03-09T08:00:00", Reason: "missed punch yesterday",
			},
			WorkerID: f.worker.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, record.Status)
	})
	t.Run("Should reject a shift that belongs to another worker", func(t *testing.T) {
		f := newAttFixture(t)
		_, err := f.service.ClockOnBehalf(ctx, f.supervisor, &SupervisorClockInput{
			ClockInput: ClockInput{
				ShiftID: f.shift.ID, Type: TypeIn,
				TimeLocal: "2025-03-10T08:00:00", Reason: "wrong worker entirely",
			},
			WorkerID: f.admin.ID,
		})
		assert.Equal(t, core.CodeValidation, core.CodeOf(err))
	})
}

func TestServiceClockDirect(t *testing.T) {
	ctx := context.Background()
	seedGeneral := func(f *attFixture) {
		general := &project.Project{
			ID: core.MustNewID(), Name: "General", Code: project.CodeGeneral,
			Timezone: "America/Vancouver",
		}
		f.projects.projects[general.ID] = general
	}
	t.Run("Should require a job type", func(t *testing.T) {
		f := newAttFixture(t)
		seedGeneral(f)
		_, err := f.service.ClockDirect(ctx, f.worker, &DirectClockInput{
			Type: TypeIn, TimeLocal: "2025-03-10T08:00:00",
		})
		assert.Equal(t, core.CodeValidation, core.CodeOf(err))
	})
	t.Run("Should fail when the General project is missing", func(t *testing.T) {
		f := newAttFixture(t)
		_, err := f.service.ClockDirect(ctx, f.worker, &DirectClockInput{
			Type: TypeIn, TimeLocal: "2025-03-10T08:00:00", JobType: "YARD",
		})
		assert.Equal(t, core.CodePrecondition, core.CodeOf(err))
	})
	t.Run("Should open a shift-less record carrying the job type", func(t *testing.T) {
		f := newAttFixture(t)
		seedGeneral(f)
		record, err := f.service.ClockDirect(ctx, f.worker, &DirectClockInput{
			Type: TypeIn, TimeLocal: "2025-03-10T08:00:00", JobType: "YARD", Note: "yard cleanup",
		})
		require.NoError(t, err)
		assert.Nil(t, record.ShiftID)
		assert.Equal(t, StatusApproved, record.Status)
		require.NotNil(t, record.Reason)
		parsed, err := ParseDirectReason(*record.Reason)
		require.NoError(t, err)
		assert.Equal(t, "YARD", parsed.JobType)
	})
	t.Run("Should refuse a direct clock-out with no open clock-in", func(t *testing.T) {
		f := newAttFixture(t)
		seedGeneral(f)
		_, err := f.service.ClockDirect(ctx, f.worker, &DirectClockInput{
			Type: TypeOut, TimeLocal: "2025-03-10T08:00:00", JobType: "YARD",
		})
		assert.Equal(t, core.CodeValidation, core.CodeOf(err))
	})
	t.Run("Should pair a direct clock-out by job type", func(t *testing.T) {
		f := newAttFixture(t)
		seedGeneral(f)
		opened, err := f.service.ClockDirect(ctx, f.worker, &DirectClockInput{
			Type: TypeIn, TimeLocal: "2025-03-10T08:00:00", JobType: "YARD",
		})
		require.NoError(t, err)
		f.now = time.Date(2025, 3, 10, 12, 5, 0, 0, f.loc)
		record, err := f.service.ClockDirect(ctx, f.worker, &DirectClockInput{
			Type: TypeOut, TimeLocal: "2025-03-10T12:00:00", JobType: "YARD",
		})
		require.NoError(t, err)
		assert.Equal(t, opened.ID, record.ID)
		require.NotNil(t, record.ClockOutAt)
		assert.Equal(t, 0, f.mat.calls)
	})
}

func TestServiceTransactions(t *testing.T) {
	ctx := context.Background()
	t.Run("Should run a clock event in one transaction with its collaborators bound", func(t *testing.T) {
		f := newAttFixture(t)
		f.clockIn(t, "2025-03-10T08:03:00")
		assert.Equal(t, 1, f.txr.calls)
		assert.Equal(t, 1, f.records.txBinds)
		assert.Equal(t, 1, f.audits.txBinds)
		assert.Equal(t, 1, f.mat.txBinds)
	})
	t.Run("Should open one transaction per approval decision", func(t *testing.T) {
		f := newAttFixture(t)
		record, err := f.service.Clock(ctx, f.worker, &ClockInput{
			ShiftID: f.shift.ID, Type: TypeIn, TimeLocal: "2025-03-09T08:00:00",
		})
		require.NoError(t, err)
		require.Equal(t, StatusPending, record.Status)
		f.txr.calls = 0
		_, err = f.service.Approve(ctx, f.supervisor, record.ID, "")
		require.NoError(t, err)
		assert.Equal(t, 1, f.txr.calls)
	})
	t.Run("Should not commit a mutation when a later step fails", func(t *testing.T) {
		f := newAttFixture(t)
		_, err := f.service.Clock(ctx, f.worker, &ClockInput{
			ShiftID: f.shift.ID, Type: TypeIn, TimeLocal: "2025-03-10T08:20:00",
		})
		require.Error(t, err)
		assert.Equal(t, 1, f.txr.calls)
		assert.Empty(t, f.records.rows)
	})
}
