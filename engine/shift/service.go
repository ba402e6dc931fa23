package shift

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fieldops/dispatch/engine/audit"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/geo"
	"github.com/fieldops/dispatch/engine/notify"
	"github.com/fieldops/dispatch/engine/perm"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/fieldops/dispatch/engine/timeutil"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// coordEpsilonDeg is the tolerance for "geofence matches the old
// project coordinates" during propagation, about 11 meters.
const coordEpsilonDeg = 0.0001

// TxRunner opens one database transaction around a unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Service implements the shift manager: CRUD with conflict enforcement,
// geofence inheritance, soft-delete and coordinate propagation.
type Service struct {
	txr      TxRunner
	shifts   Repository
	projects project.Repository
	users    user.Repository
	gate     *perm.Gate
	auditor  *audit.Writer
	notifier *notify.Gateway
	now      func() time.Time
}

// NewService creates the shift manager.
func NewService(
	txr TxRunner,
	shifts Repository,
	projects project.Repository,
	users user.Repository,
	gate *perm.Gate,
	auditor *audit.Writer,
	notifier *notify.Gateway,
) *Service {
	return &Service{
		txr:      txr,
		shifts:   shifts,
		projects: projects,
		users:    users,
		gate:     gate,
		auditor:  auditor,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// withTx binds the repository, the audit writer and the notification
// gateway to tx.
func (s *Service) withTx(tx pgx.Tx) *Service {
	c := *s
	c.shifts = s.shifts.WithTx(tx)
	c.auditor = s.auditor.WithTx(tx)
	c.notifier = s.notifier.WithTx(tx)
	return &c
}

// WithTx returns the manager bound to the transaction, for callers
// folding shift mutations into their own unit of work.
func (s *Service) WithTx(tx pgx.Tx) project.GeofencePropagator {
	return s.withTx(tx)
}

// CreateInput carries the fields accepted on shift creation.
type CreateInput struct {
	ProjectID       core.ID      `json:"project_id"`
	WorkerID        core.ID      `json:"worker_id"`
	WorkDate        string       `json:"date"`
	StartTime       string       `json:"start_time"`
	EndTime         string       `json:"end_time"`
	DefaultBreakMin *int         `json:"default_break_min,omitempty"`
	Geofences       []geo.Region `json:"geofences,omitempty"`
	JobID           *string      `json:"job_id,omitempty"`
	JobName         *string      `json:"job_name,omitempty"`
}

// Create validates, conflict-checks and persists a new shift. An empty
// project id resolves to the sentinel General project, which hosts
// job-typed work not bound to a client project. The conflict check
// locks the worker's same-window rows and runs in one transaction with
// the insert and its audit row.
func (s *Service) Create(ctx context.Context, actor *user.User, input *CreateInput) (*Shift, error) {
	var out *Shift
	err := s.txr.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = s.withTx(tx).create(ctx, actor, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) create(ctx context.Context, actor *user.User, input *CreateInput) (*Shift, error) {
	var p *project.Project
	var err error
	if input.ProjectID.IsZero() {
		p, err = s.projects.GetByCode(ctx, project.CodeGeneral)
		if err != nil {
			if errors.Is(err, project.ErrNotFound) {
				return nil, core.NewError(
					fmt.Errorf("no General project exists for shifts without a project"),
					core.CodePrecondition, nil,
				)
			}
			return nil, err
		}
	} else if p, err = s.projects.GetByID(ctx, input.ProjectID); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return nil, core.NotFoundf("project %s not found", input.ProjectID)
		}
		return nil, err
	}
	worker, err := s.users.GetByID(ctx, input.WorkerID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, core.NotFoundf("worker %s not found", input.WorkerID)
		}
		return nil, err
	}
	if err := s.gate.CanCreateShiftFor(actor, worker.ID, p); err != nil {
		return nil, err
	}
	workDate, err := timeutil.ParseDate(input.WorkDate)
	if err != nil {
		return nil, core.Validationf("%v", err)
	}
	startMin, endMin, err := parseInterval(input.StartTime, input.EndTime)
	if err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, worker.ID, workDate, startMin, endMin, ""); err != nil {
		return nil, err
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("generating shift id: %w", err)
	}
	now := s.now().UTC()
	created := &Shift{
		ID:              id,
		ProjectID:       p.ID,
		WorkerID:        worker.ID,
		WorkDate:        workDate,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		Status:          StatusScheduled,
		DefaultBreakMin: input.DefaultBreakMin,
		Geofences:       input.Geofences,
		JobID:           input.JobID,
		JobName:         input.JobName,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.shifts.Create(ctx, created); err != nil {
		return nil, err
	}
	if err := s.auditor.Record(ctx, audit.EntityShift, created.ID, audit.ActionCreate,
		actorOf(actor), "app",
		map[string]any{"after": shiftFields(created)},
		s.auditContext(created),
	); err != nil {
		return nil, err
	}
	if err := s.notifier.Push(ctx, worker, notify.TemplateShiftCreated, s.shiftPayload(created, p)); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Shift created",
		"shift_id", created.ID, "project_id", p.ID, "worker_id", worker.ID)
	return created, nil
}

// Get fetches one shift.
func (s *Service) Get(ctx context.Context, id core.ID) (*Shift, error) {
	found, err := s.shifts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, core.NotFoundf("shift %s not found", id)
		}
		return nil, err
	}
	return found, nil
}

// List returns visible shifts matching the filter.
func (s *Service) List(ctx context.Context, filter *ListFilter) ([]*Shift, error) {
	return s.shifts.ListVisible(ctx, filter)
}

// UpdateInput carries the fields accepted on shift update. Date and
// worker are locked: providing a different value is rejected, the
// current value is silently accepted.
type UpdateInput struct {
	WorkDate        *string       `json:"date,omitempty"`
	WorkerID        *core.ID      `json:"worker_id,omitempty"`
	StartTime       *string       `json:"start_time,omitempty"`
	EndTime         *string       `json:"end_time,omitempty"`
	DefaultBreakMin *int          `json:"default_break_min,omitempty"`
	Geofences       *[]geo.Region `json:"geofences,omitempty"`
	JobID           *string       `json:"job_id,omitempty"`
	JobName         *string       `json:"job_name,omitempty"`
	Status          *string       `json:"status,omitempty"`
}

// Update mutates a shift's open fields, re-running the conflict check
// when the time window moves. The mutation, the check and the audit
// row run in one transaction.
func (s *Service) Update(ctx context.Context, actor *user.User, id core.ID, input *UpdateInput) (*Shift, error) {
	var out *Shift
	err := s.txr.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = s.withTx(tx).update(ctx, actor, id, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) update(ctx context.Context, actor *user.User, id core.ID, input *UpdateInput) (*Shift, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, worker, err := s.loadRefs(ctx, current)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanModifyShift(actor, worker, p); err != nil {
		return nil, err
	}
	if input.WorkDate != nil && *input.WorkDate != current.WorkDate.Format(timeutil.DateLayout) {
		return nil, core.Validationf("shift date cannot be changed")
	}
	if input.WorkerID != nil && *input.WorkerID != current.WorkerID {
		return nil, core.Validationf("shift worker cannot be changed")
	}
	before := shiftFields(current)
	updated := *current
	applyUpdate(&updated, input)
	if input.Status != nil && *input.Status != StatusScheduled && *input.Status != StatusDeleted {
		return nil, core.Validationf("unknown shift status %q", *input.Status)
	}
	startMin, endMin, err := parseInterval(updated.StartTime, updated.EndTime)
	if err != nil {
		return nil, err
	}
	if updated.StartTime != current.StartTime || updated.EndTime != current.EndTime {
		if err := s.checkConflicts(ctx, updated.WorkerID, updated.WorkDate, startMin, endMin, updated.ID); err != nil {
			return nil, err
		}
	}
	updated.UpdatedAt = s.now().UTC()
	if err := s.shifts.Update(ctx, &updated); err != nil {
		return nil, err
	}
	if diff := audit.Diff(before, shiftFields(&updated)); diff != nil {
		if err := s.auditor.Record(ctx, audit.EntityShift, updated.ID, audit.ActionUpdate,
			actorOf(actor), "app", diff, s.auditContext(&updated)); err != nil {
			return nil, err
		}
		if err := s.notifier.Push(ctx, worker, notify.TemplateShiftUpdated, s.shiftPayload(&updated, p)); err != nil {
			return nil, err
		}
	}
	return &updated, nil
}

// Delete soft-deletes a shift so existing attendance keeps its linkage,
// records the pre-image and notifies the worker, all in one
// transaction.
func (s *Service) Delete(ctx context.Context, actor *user.User, id core.ID) error {
	return s.txr.WithTx(ctx, func(tx pgx.Tx) error {
		return s.withTx(tx).remove(ctx, actor, id)
	})
}

func (s *Service) remove(ctx context.Context, actor *user.User, id core.ID) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	p, worker, err := s.loadRefs(ctx, current)
	if err != nil {
		return err
	}
	if err := s.gate.CanModifyShift(actor, worker, p); err != nil {
		return err
	}
	deleted := *current
	deleted.Status = StatusDeleted
	deleted.UpdatedAt = s.now().UTC()
	if err := s.shifts.Update(ctx, &deleted); err != nil {
		return err
	}
	if err := s.auditor.Record(ctx, audit.EntityShift, id, audit.ActionDelete,
		actorOf(actor), "app",
		map[string]any{"before": shiftFields(current)},
		s.auditContext(current),
	); err != nil {
		return err
	}
	if err := s.notifier.Push(ctx, worker, notify.TemplateShiftCancelled, s.shiftPayload(current, p)); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Shift deleted", "shift_id", id, "actor_id", actor.ID)
	return nil
}

// PropagateCoordinates resets the geofences of every shift in the
// project that tracked the old coordinates, so those shifts inherit
// the new location dynamically. Custom geofences are untouched. It
// runs on the caller's transaction; the project manager binds it via
// WithTx before the coordinate update commits.
func (s *Service) PropagateCoordinates(ctx context.Context, projectID core.ID, oldLat, oldLng float64) error {
	tracked, err := s.shifts.ListWithGeofences(ctx, projectID)
	if err != nil {
		return err
	}
	var toReset []core.ID
	for _, sh := range tracked {
		if geofencesMatchCoords(sh.Geofences, oldLat, oldLng) {
			toReset = append(toReset, sh.ID)
		}
	}
	if len(toReset) == 0 {
		return nil
	}
	if err := s.shifts.ClearGeofences(ctx, toReset); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Shift geofences reset to inherit project coordinates",
		"project_id", projectID, "shift_count", len(toReset))
	return nil
}

func geofencesMatchCoords(regions []geo.Region, lat, lng float64) bool {
	if len(regions) == 0 {
		return false
	}
	for _, region := range regions {
		if math.Abs(region.Lat-lat) > coordEpsilonDeg || math.Abs(region.Lng-lng) > coordEpsilonDeg {
			return false
		}
	}
	return true
}

func (s *Service) checkConflicts(
	ctx context.Context,
	workerID core.ID,
	date time.Time,
	startMin, endMin int,
	excludeID core.ID,
) error {
	existing, err := s.shifts.ListForWorkerWindow(ctx, workerID, date, true)
	if err != nil {
		return err
	}
	conflicts, err := FindConflicts(&Candidate{
		WorkerID:  workerID,
		WorkDate:  date,
		StartMin:  startMin,
		EndMin:    endMin,
		ExcludeID: excludeID,
	}, existing)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return ConflictError(conflicts)
	}
	return nil
}

func (s *Service) loadRefs(ctx context.Context, sh *Shift) (*project.Project, *user.User, error) {
	p, err := s.projects.GetByID(ctx, sh.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading shift project: %w", err)
	}
	worker, err := s.users.GetByID(ctx, sh.WorkerID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading shift worker: %w", err)
	}
	return p, worker, nil
}

func (s *Service) auditContext(sh *Shift) map[string]any {
	return map[string]any{
		"project_id": sh.ProjectID.String(),
		"worker_id":  sh.WorkerID.String(),
	}
}

func (s *Service) shiftPayload(sh *Shift, p *project.Project) map[string]any {
	return map[string]any{
		"shift_id":     sh.ID.String(),
		"project_id":   p.ID.String(),
		"project_name": p.Name,
		"date":         sh.WorkDate.Format(timeutil.DateLayout),
		"start_time":   sh.StartTime,
		"end_time":     sh.EndTime,
	}
}

func parseInterval(startTime, endTime string) (startMin, endMin int, err error) {
	startMin, err = timeutil.ParseClock(startTime)
	if err != nil {
		return 0, 0, core.Validationf("%v", err)
	}
	endMin, err = timeutil.ParseClock(endTime)
	if err != nil {
		return 0, 0, core.Validationf("%v", err)
	}
	if endMin <= startMin {
		endMin += minutesPerDay
	}
	return startMin, endMin, nil
}

func applyUpdate(sh *Shift, input *UpdateInput) {
	if input.StartTime != nil {
		sh.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		sh.EndTime = *input.EndTime
	}
	if input.DefaultBreakMin != nil {
		sh.DefaultBreakMin = input.DefaultBreakMin
	}
	if input.Geofences != nil {
		sh.Geofences = *input.Geofences
	}
	if input.JobID != nil {
		sh.JobID = input.JobID
	}
	if input.JobName != nil {
		sh.JobName = input.JobName
	}
	if input.Status != nil {
		sh.Status = *input.Status
	}
}

func shiftFields(sh *Shift) map[string]any {
	return map[string]any{
		"project_id":        sh.ProjectID.String(),
		"worker_id":         sh.WorkerID.String(),
		"date":              sh.WorkDate.Format(timeutil.DateLayout),
		"start_time":        sh.StartTime,
		"end_time":          sh.EndTime,
		"status":            sh.Status,
		"default_break_min": sh.DefaultBreakMin,
		"geofences":         sh.Geofences,
		"job_name":          sh.JobName,
	}
}

func actorOf(u *user.User) audit.Actor {
	return audit.Actor{ID: u.ID, Role: perm.PrimaryRole(u)}
}
