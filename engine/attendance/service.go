package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/dispatch/engine/audit"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/geo"
	"github.com/fieldops/dispatch/engine/notify"
	"github.com/fieldops/dispatch/engine/perm"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/fieldops/dispatch/engine/shift"
	"github.com/fieldops/dispatch/engine/task"
	"github.com/fieldops/dispatch/engine/timeutil"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// futureGrace is how far past server-now a selected clock time may
// land before it is rejected.
const futureGrace = 4 * time.Minute

// overlapLookback bounds the window of existing records fetched for
// the overlap predicate.
const overlapLookback = 48 * time.Hour

// TxRunner opens one database transaction around a unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Materializer creates or updates the timesheet entry derived from an
// approved, shift-bound attendance. Implemented by the timesheet
// aggregator; the indirection keeps the dependency one-way.
type Materializer interface {
	// WithTx returns a materializer bound to the caller's transaction.
	WithTx(tx pgx.Tx) Materializer
	MaterializeFromAttendance(ctx context.Context, a *Attendance, sh *shift.Shift, loc *time.Location) error
}

// Config carries the policy constants the engine consumes.
type Config struct {
	DefaultTimezone string
	GeoRadiusM      float64
	GeoMaxSlackM    float64
}

// Service is the attendance engine: clock ingestion, pairing, status
// decision, break computation, approvals and timesheet materialisation.
type Service struct {
	txr         TxRunner
	records     Repository
	shifts      shift.Repository
	projects    project.Repository
	users       user.Repository
	gate        *perm.Gate
	policy      BreakPolicy
	auditor     *audit.Writer
	notifier    *notify.Gateway
	tasks       *task.Seeder
	materialize Materializer
	cfg         Config
	now         func() time.Time
}

// NewService creates the attendance engine.
func NewService(
	txr TxRunner,
	records Repository,
	shifts shift.Repository,
	projects project.Repository,
	users user.Repository,
	gate *perm.Gate,
	pol BreakPolicy,
	auditor *audit.Writer,
	notifier *notify.Gateway,
	tasks *task.Seeder,
	materializer Materializer,
	cfg Config,
) *Service {
	return &Service{
		txr:         txr,
		records:     records,
		shifts:      shifts,
		projects:    projects,
		users:       users,
		gate:        gate,
		policy:      pol,
		auditor:     auditor,
		notifier:    notifier,
		tasks:       tasks,
		materialize: materializer,
		cfg:         cfg,
		now:         time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// withTx binds every transactional collaborator to tx, so pairing, the
// mutation, the audit row, the task items and the notification rows
// commit or roll back together.
func (s *Service) withTx(tx pgx.Tx) *Service {
	c := *s
	c.records = s.records.WithTx(tx)
	c.shifts = s.shifts.WithTx(tx)
	c.auditor = s.auditor.WithTx(tx)
	c.notifier = s.notifier.WithTx(tx)
	c.tasks = s.tasks.WithTx(tx)
	c.materialize = s.materialize.WithTx(tx)
	return &c
}

// run executes op inside one transaction on a tx-bound service copy.
func (s *Service) run(ctx context.Context, op func(svc *Service) (*Attendance, error)) (*Attendance, error) {
	var out *Attendance
	err := s.txr.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = op(s.withTx(tx))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClockInput is a worker's clock event on their own shift.
type ClockInput struct {
	ShiftID   core.ID     `json:"shift_id"`
	Type      string      `json:"type"`
	TimeLocal string      `json:"time_selected_local"`
	GPS       *geo.Sample `json:"gps,omitempty"`
	GPSMocked bool        `json:"gps_mocked,omitempty"`
	Reason    string      `json:"reason_text,omitempty"`
}

// Clock ingests a worker's own clock-in or clock-out. The whole
// pipeline runs in one transaction.
func (s *Service) Clock(ctx context.Context, actor *user.User, input *ClockInput) (*Attendance, error) {
	return s.run(ctx, func(svc *Service) (*Attendance, error) {
		return svc.clock(ctx, actor, input)
	})
}

func (s *Service) clock(ctx context.Context, actor *user.User, input *ClockInput) (*Attendance, error) {
	sh, p, err := s.loadShift(ctx, input.ShiftID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanClockOwn(actor, sh.WorkerID); err != nil {
		return nil, err
	}
	return s.ingest(ctx, &ingestParams{
		actor:     actor,
		worker:    actor,
		sh:        sh,
		p:         p,
		eventType: input.Type,
		timeLocal: input.TimeLocal,
		gps:       input.GPS,
		mocked:    input.GPSMocked,
		reason:    optional(input.Reason),
		source:    SourceApp,
	})
}

// SupervisorClockInput is a clock event recorded on behalf of another
// worker. A reason of policy-minimum length is mandatory.
type SupervisorClockInput struct {
	ClockInput
	WorkerID core.ID `json:"worker_id"`
}

// ClockOnBehalf ingests a clock event recorded by a supervisor, admin
// or on-site lead for another worker. The whole pipeline runs in one
// transaction.
func (s *Service) ClockOnBehalf(ctx context.Context, actor *user.User, input *SupervisorClockInput) (*Attendance, error) {
	return s.run(ctx, func(svc *Service) (*Attendance, error) {
		return svc.clockOnBehalf(ctx, actor, input)
	})
}

func (s *Service) clockOnBehalf(ctx context.Context, actor *user.User, input *SupervisorClockInput) (*Attendance, error) {
	sh, p, err := s.loadShift(ctx, input.ShiftID)
	if err != nil {
		return nil, err
	}
	worker, err := s.users.GetByID(ctx, input.WorkerID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, core.NotFoundf("worker %s not found", input.WorkerID)
		}
		return nil, err
	}
	if sh.WorkerID != worker.ID {
		return nil, core.Validationf("shift %s does not belong to worker %s", sh.ID, worker.ID)
	}
	if err := s.gate.CanClockOnBehalf(actor, worker, p, input.Reason); err != nil {
		return nil, err
	}
	source := SourceSupervisor
	if perm.IsAdmin(actor) {
		source = SourceAdmin
	}
	return s.ingest(ctx, &ingestParams{
		actor:     actor,
		worker:    worker,
		sh:        sh,
		p:         p,
		eventType: input.Type,
		timeLocal: input.TimeLocal,
		gps:       input.GPS,
		mocked:    input.GPSMocked,
		reason:    optional(input.Reason),
		source:    source,
		onBehalf:  true,
	})
}

// DirectClockInput is a shift-less clock event carrying a job type.
type DirectClockInput struct {
	Type        string      `json:"type"`
	TimeLocal   string      `json:"time_selected_local"`
	JobType     string      `json:"job_type"`
	Note        string      `json:"note,omitempty"`
	HoursWorked *float64    `json:"hours_worked,omitempty"`
	GPS         *geo.Sample `json:"gps,omitempty"`
	GPSMocked   bool        `json:"gps_mocked,omitempty"`
}

// ClockDirect ingests a direct attendance for the acting worker. The
// sentinel General project must exist; its absence is a system
// precondition failure, not a user error. The whole pipeline runs in
// one transaction.
func (s *Service) ClockDirect(ctx context.Context, actor *user.User, input *DirectClockInput) (*Attendance, error) {
	return s.run(ctx, func(svc *Service) (*Attendance, error) {
		return svc.clockDirect(ctx, actor, input)
	})
}

func (s *Service) clockDirect(ctx context.Context, actor *user.User, input *DirectClockInput) (*Attendance, error) {
	if strings.TrimSpace(input.JobType) == "" {
		return nil, core.Validationf("job_type is required for direct attendance")
	}
	if _, err := s.projects.GetByCode(ctx, project.CodeGeneral); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return nil, core.NewError(
				fmt.Errorf("no General project exists for direct attendance"),
				core.CodePrecondition, nil,
			)
		}
		return nil, err
	}
	reason := BuildDirectReason(input.JobType, input.Note, input.HoursWorked)
	return s.ingest(ctx, &ingestParams{
		actor:     actor,
		worker:    actor,
		eventType: input.Type,
		timeLocal: input.TimeLocal,
		gps:       input.GPS,
		mocked:    input.GPSMocked,
		reason:    &reason,
		source:    SourceApp,
		jobType:   input.JobType,
	})
}

type ingestParams struct {
	actor     *user.User
	worker    *user.User
	sh        *shift.Shift // nil for direct attendance
	p         *project.Project
	eventType string
	timeLocal string
	gps       *geo.Sample
	mocked    bool
	reason    *string
	source    string
	onBehalf  bool
	jobType   string
}

// ingest runs the clock pipeline: normalise, guard, conflict-check,
// decide status, pair-or-create, materialise, audit, notify.
func (s *Service) ingest(ctx context.Context, params *ingestParams) (*Attendance, error) {
	if params.eventType != TypeIn && params.eventType != TypeOut {
		return nil, core.Validationf("unknown clock type %q", params.eventType)
	}
	loc := s.locationFor(ctx, params.p)
	selected, err := timeutil.ParseLocalDateTime(params.timeLocal, loc)
	if err != nil {
		return nil, core.Validationf("%v", err)
	}
	eventUTC := timeutil.RoundTo5Min(selected).UTC()
	now := s.now()
	if eventUTC.After(now.Add(futureGrace)) {
		return nil, core.Validationf("selected time %s is in the future", eventUTC.In(loc).Format("15:04"))
	}
	var open *Attendance
	if params.eventType == TypeOut {
		var shiftID *core.ID
		if params.sh != nil {
			shiftID = &params.sh.ID
		}
		open, err = s.records.FindOpenClockIn(ctx, params.worker.ID, shiftID, params.jobType)
		if err != nil {
			return nil, err
		}
		if open == nil && params.sh == nil {
			return nil, core.Validationf("no open clock-in found; clock in before clocking out")
		}
	}
	if err := s.checkOverlap(ctx, params, open, eventUTC, loc); err != nil {
		return nil, err
	}
	sameDay := timeutil.SameDayLocal(eventUTC, now, loc)
	gps := s.evaluateGeofence(params, eventUTC, loc)
	status := DecideStatus(DecisionInput{
		SameDay:          sameDay,
		OnsiteLead:       params.p != nil && perm.IsOnsiteLead(params.actor, params.p),
		WorkerSupervisor: perm.IsWorkerSupervisorOf(params.actor, params.worker),
		OnBehalf:         params.onBehalf,
	})
	record, action, err := s.pairOrCreate(ctx, params, open, eventUTC, gps, status)
	if err != nil {
		return nil, err
	}
	if record.Status == StatusApproved && params.sh != nil && record.ClockOutAt != nil {
		if err := s.materialize.MaterializeFromAttendance(ctx, record, params.sh, loc); err != nil {
			return nil, err
		}
	}
	if err := s.auditor.Record(ctx, audit.EntityAttendance, record.ID, action,
		audit.Actor{ID: params.actor.ID, Role: perm.PrimaryRole(params.actor)},
		params.source, map[string]any{"after": recordFields(record)}, s.auditContext(record, params.sh),
	); err != nil {
		return nil, err
	}
	if err := s.notifyOutcome(ctx, params, record, eventUTC, loc); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Clock event recorded",
		"attendance_id", record.ID, "type", params.eventType,
		"worker_id", params.worker.ID, "status", record.Status)
	return record, nil
}

func (s *Service) checkOverlap(
	ctx context.Context,
	params *ingestParams,
	open *Attendance,
	eventUTC time.Time,
	loc *time.Location,
) error {
	existing, err := s.records.ListForWorkerWindow(ctx, params.worker.ID,
		eventUTC.Add(-overlapLookback), eventUTC.Add(overlapLookback))
	if err != nil {
		return err
	}
	proposed := &Proposed{WorkerID: params.worker.ID}
	switch {
	case params.eventType == TypeIn:
		proposed.In = &eventUTC
	case open != nil:
		proposed.In = open.ClockInAt
		proposed.Out = &eventUTC
		proposed.ExcludeID = open.ID
	default:
		proposed.Out = &eventUTC
	}
	return CheckOverlap(proposed, existing, loc)
}

func (s *Service) evaluateGeofence(params *ingestParams, eventUTC time.Time, loc *time.Location) *GPS {
	var regions []geo.Region
	if params.sh != nil {
		regions = shift.EffectiveGeofences(params.sh, params.p, s.cfg.GeoRadiusM)
	}
	result := geo.Evaluate(params.gps, regions, s.cfg.GeoMaxSlackM)
	if params.gps == nil {
		return nil
	}
	return &GPS{
		Lat:       params.gps.Lat,
		Lng:       params.gps.Lng,
		AccuracyM: params.gps.AccuracyM,
		Inside:    result.Inside,
		Risk:      result.Risk,
	}
}

// pairOrCreate applies the pairing rule: clock-ins always open a new
// record; clock-outs close the most recent open clock-in, falling back
// to a defensive clock-out-only record for shift attendance.
func (s *Service) pairOrCreate(
	ctx context.Context,
	params *ingestParams,
	open *Attendance,
	eventUTC time.Time,
	gps *GPS,
	status string,
) (*Attendance, string, error) {
	now := s.now().UTC()
	if params.eventType == TypeOut && open != nil {
		open.ClockOutAt = &eventUTC
		open.ClockOutEnteredAt = &now
		open.ClockOutGPS = gps
		open.ClockOutMocked = params.mocked
		if open.Status == StatusPending || status == StatusPending {
			open.Status = StatusPending
		} else {
			open.Status = status
		}
		breakMin, err := ComputeBreak(ctx, s.policy, open, open.BreakMinutes)
		if err != nil {
			return nil, "", err
		}
		open.BreakMinutes = breakMin
		if err := s.records.Update(ctx, open); err != nil {
			return nil, "", err
		}
		return open, audit.ActionClockOut, nil
	}
	id, err := core.NewID()
	if err != nil {
		return nil, "", fmt.Errorf("generating attendance id: %w", err)
	}
	record := &Attendance{
		ID:        id,
		WorkerID:  params.worker.ID,
		Status:    status,
		Source:    params.source,
		Reason:    params.reason,
		CreatedBy: params.actor.ID,
		CreatedAt: now,
	}
	if params.sh != nil {
		record.ShiftID = &params.sh.ID
	}
	action := audit.ActionClockIn
	if params.eventType == TypeIn {
		record.ClockInAt = &eventUTC
		record.ClockInEnteredAt = &now
		record.ClockInGPS = gps
		record.ClockInMocked = params.mocked
	} else {
		// Defensive: a clock-out with no open clock-in still leaves a
		// trace for supervisors to reconcile.
		record.ClockOutAt = &eventUTC
		record.ClockOutEnteredAt = &now
		record.ClockOutGPS = gps
		record.ClockOutMocked = params.mocked
		action = audit.ActionClockOut
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, "", err
	}
	return record, action, nil
}

func (s *Service) notifyOutcome(
	ctx context.Context,
	params *ingestParams,
	record *Attendance,
	eventUTC time.Time,
	loc *time.Location,
) error {
	payload := map[string]any{
		"attendance_id": record.ID.String(),
		"status":        record.Status,
		"date":          eventUTC.In(loc).Format(timeutil.DateLayout),
	}
	if record.Status == StatusApproved {
		return s.notifier.Push(ctx, params.worker, notify.TemplateAttendanceApproved, payload)
	}
	if err := s.notifier.Push(ctx, params.worker, notify.TemplateAttendancePending, payload); err != nil {
		return err
	}
	return s.seedPendingApproval(ctx, params.worker, record, eventUTC.In(loc).Format(timeutil.DateLayout))
}

// seedPendingApproval notifies the worker's direct supervisor and opens
// the approval task item.
func (s *Service) seedPendingApproval(
	ctx context.Context,
	worker *user.User,
	record *Attendance,
	localDate string,
) error {
	if err := s.tasks.SeedAttendanceApproval(ctx, record.ID, worker.ManagerUserID, worker.DisplayName(), localDate); err != nil {
		return err
	}
	if worker.ManagerUserID == nil {
		return nil
	}
	supervisor, err := s.users.GetByID(ctx, *worker.ManagerUserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			logger.FromContext(ctx).Warn("Worker's manager not found, skipping pending push",
				"worker_id", worker.ID, "manager_id", *worker.ManagerUserID)
			return nil
		}
		return err
	}
	return s.notifier.Push(ctx, supervisor, notify.TemplateAttendancePending, map[string]any{
		"attendance_id": record.ID.String(),
		"worker_name":   worker.DisplayName(),
		"date":          localDate,
	})
}

func (s *Service) loadShift(ctx context.Context, shiftID core.ID) (*shift.Shift, *project.Project, error) {
	if shiftID.IsZero() {
		return nil, nil, core.Validationf("shift_id is required")
	}
	sh, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, shift.ErrNotFound) {
			return nil, nil, core.NotFoundf("shift %s not found", shiftID)
		}
		return nil, nil, err
	}
	p, err := s.projects.GetByID(ctx, sh.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading shift project: %w", err)
	}
	return sh, p, nil
}

func (s *Service) locationFor(ctx context.Context, p *project.Project) *time.Location {
	if p != nil {
		return timeutil.LoadZone(ctx, p.Timezone)
	}
	return timeutil.LoadZone(ctx, s.cfg.DefaultTimezone)
}

func (s *Service) auditContext(record *Attendance, sh *shift.Shift) map[string]any {
	out := map[string]any{"worker_id": record.WorkerID.String()}
	if sh != nil {
		out["project_id"] = sh.ProjectID.String()
		out["shift_id"] = sh.ID.String()
	}
	return out
}

func recordFields(a *Attendance) map[string]any {
	fields := map[string]any{
		"status":        a.Status,
		"source":        a.Source,
		"break_minutes": a.BreakMinutes,
	}
	if !a.IsDirect() {
		fields["shift_id"] = a.ShiftID.String()
	}
	if a.ClockInAt != nil {
		fields["clock_in_at"] = a.ClockInAt.Format(time.RFC3339)
	}
	if a.ClockOutAt != nil {
		fields["clock_out_at"] = a.ClockOutAt.Format(time.RFC3339)
	}
	if a.Reason != nil {
		fields["reason"] = *a.Reason
	}
	return fields
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
