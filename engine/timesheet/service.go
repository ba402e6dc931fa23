package timesheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/dispatch/engine/attendance"
	"github.com/fieldops/dispatch/engine/audit"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/perm"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/fieldops/dispatch/engine/shift"
	"github.com/fieldops/dispatch/engine/timeutil"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const clockLayout = "15:04"

// Config carries the aggregator's policy constants.
type Config struct {
	DefaultTimezone string
}

// TxRunner opens one database transaction around a unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Service is the timesheet aggregator: the read-side project and weekly
// views over attendance plus manual entries, manual entry CRUD with
// approvals, and the delete cascades back into attendance.
type Service struct {
	txr      TxRunner
	entries  Repository
	logs     LogRepository
	records  attendance.Repository
	shifts   shift.Repository
	projects project.Repository
	users    user.Repository
	gate     *perm.Gate
	auditor  *audit.Writer
	audits   audit.Repository
	cfg      Config
	now      func() time.Time
}

var _ attendance.Materializer = (*Service)(nil)

// NewService creates the timesheet aggregator.
func NewService(
	txr TxRunner,
	entries Repository,
	logs LogRepository,
	records attendance.Repository,
	shifts shift.Repository,
	projects project.Repository,
	users user.Repository,
	gate *perm.Gate,
	auditor *audit.Writer,
	audits audit.Repository,
	cfg Config,
) *Service {
	return &Service{
		txr:      txr,
		entries:  entries,
		logs:     logs,
		records:  records,
		shifts:   shifts,
		projects: projects,
		users:    users,
		gate:     gate,
		auditor:  auditor,
		audits:   audits,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// withTx binds every transactional collaborator to tx, so entries,
// logs, attendance resets and the audit rows commit or roll back
// together.
func (s *Service) withTx(tx pgx.Tx) *Service {
	c := *s
	c.entries = s.entries.WithTx(tx)
	c.logs = s.logs.WithTx(tx)
	c.records = s.records.WithTx(tx)
	c.shifts = s.shifts.WithTx(tx)
	c.auditor = s.auditor.WithTx(tx)
	return &c
}

// WithTx returns the aggregator bound to the transaction. The
// attendance engine uses it to fold materialisation into its own unit
// of work.
func (s *Service) WithTx(tx pgx.Tx) attendance.Materializer {
	return s.withTx(tx)
}

// run executes op inside one transaction on a tx-bound service copy.
func (s *Service) run(ctx context.Context, op func(svc *Service) (*Entry, error)) (*Entry, error) {
	var out *Entry
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

// MaterializeFromAttendance creates or refreshes the timesheet entry an
// approved, shift-bound attendance sources. The entry is keyed by the
// weak source reference; the first touch creates it, later touches
// update the end time and minutes. It runs on the caller's
// transaction; the attendance engine binds the aggregator via WithTx.
func (s *Service) MaterializeFromAttendance(
	ctx context.Context,
	a *attendance.Attendance,
	sh *shift.Shift,
	loc *time.Location,
) error {
	start := sh.StartTime
	if a.ClockInAt != nil {
		start = a.ClockInAt.In(loc).Format(clockLayout)
	}
	var end *string
	if a.ClockOutAt != nil {
		v := a.ClockOutAt.In(loc).Format(clockLayout)
		end = &v
	}
	existing, err := s.entries.GetBySourceAttendance(ctx, a.ID)
	switch {
	case err == nil:
		existing.StartTime = start
		existing.EndTime = end
		existing.Minutes = a.NetMinutes()
		return s.entries.Update(ctx, existing)
	case errors.Is(err, ErrNotFound):
	default:
		return err
	}
	id, err := core.NewID()
	if err != nil {
		return fmt.Errorf("generating timesheet entry id: %w", err)
	}
	now := s.now().UTC()
	sourceID := a.ID
	entry := &Entry{
		ID:                 id,
		ProjectID:          sh.ProjectID,
		UserID:             a.WorkerID,
		WorkDate:           sh.WorkDate,
		StartTime:          start,
		EndTime:            end,
		Minutes:            a.NetMinutes(),
		Notes:              systemNotes,
		CreatedBy:          a.CreatedBy,
		CreatedAt:          now,
		SourceAttendanceID: &sourceID,
		IsApproved:         true,
		ApprovedAt:         a.ApprovedAt,
		ApprovedBy:         a.ApprovedBy,
	}
	if entry.ApprovedAt == nil {
		entry.ApprovedAt = &now
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("Timesheet entry materialised",
		"entry_id", entry.ID, "attendance_id", a.ID)
	return nil
}

// CreateManualInput carries a hand-entered timesheet entry.
type CreateManualInput struct {
	UserID    core.ID `json:"user_id"`
	WorkDate  string  `json:"work_date"`
	StartTime string  `json:"start_time"`
	EndTime   *string `json:"end_time,omitempty"`
	Minutes   *int    `json:"minutes,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// CreateManual records a manual timesheet entry. Manual entries carry no
// attendance reference and may coexist with attendance-derived rows on
// the same day. The entry, its audit row and its log line commit in one
// transaction.
func (s *Service) CreateManual(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	input *CreateManualInput,
) (*Entry, error) {
	return s.run(ctx, func(svc *Service) (*Entry, error) {
		return svc.createManual(ctx, actor, projectID, input)
	})
}

func (s *Service) createManual(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	input *CreateManualInput,
) (*Entry, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return nil, core.NotFoundf("project %s not found", projectID)
		}
		return nil, err
	}
	owner, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, core.NotFoundf("user %s not found", input.UserID)
		}
		return nil, err
	}
	if actor.ID != owner.ID {
		if err := s.gate.CanApproveTimesheet(actor, owner); err != nil {
			return nil, err
		}
	}
	workDate, err := timeutil.ParseDate(input.WorkDate)
	if err != nil {
		return nil, core.Validationf("%v", err)
	}
	minutes, err := resolveMinutes(input.StartTime, input.EndTime, input.Minutes)
	if err != nil {
		return nil, err
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("generating timesheet entry id: %w", err)
	}
	entry := &Entry{
		ID:        id,
		ProjectID: projectID,
		UserID:    owner.ID,
		WorkDate:  workDate,
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		Minutes:   minutes,
		Notes:     input.Notes,
		CreatedBy: actor.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.auditor.Record(ctx, audit.EntityTimesheetEntry, entry.ID, audit.ActionCreate,
		audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, SourceManual,
		map[string]any{"after": entryFields(entry)}, entryContext(entry)); err != nil {
		return nil, err
	}
	if err := s.appendLog(ctx, entry.ProjectID, &entry.ID, audit.ActionCreate, actor.ID,
		entryFields(entry)); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateInput carries the editable fields of a timesheet row.
type UpdateInput struct {
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Minutes   *int    `json:"minutes,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// Update edits a timesheet row. A plain id edits the manual entry; an
// "attendance_" prefixed id rewrites the clock times of the underlying
// attendance and refreshes the materialised entry. Either path runs in
// one transaction.
func (s *Service) Update(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	rowID string,
	input *UpdateInput,
) (*Entry, error) {
	return s.run(ctx, func(svc *Service) (*Entry, error) {
		return svc.updateRow(ctx, actor, projectID, rowID, input)
	})
}

func (s *Service) updateRow(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	rowID string,
	input *UpdateInput,
) (*Entry, error) {
	if attID, ok := parseAttendanceRowID(rowID); ok {
		return s.updateAttendanceRow(ctx, actor, projectID, attID, input)
	}
	id, err := core.ParseID(rowID)
	if err != nil {
		return nil, core.Validationf("invalid timesheet entry id: %v", err)
	}
	entry, err := s.loadProjectEntry(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if !entry.IsManual() {
		return nil, core.Validationf("entry %s is attendance-derived; edit it via its attendance_ row id", id)
	}
	if err := s.canTouchEntry(ctx, actor, entry); err != nil {
		return nil, err
	}
	before := entryFields(entry)
	if input.StartTime != nil {
		entry.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		entry.EndTime = input.EndTime
	}
	if input.Notes != nil {
		entry.Notes = *input.Notes
	}
	timesChanged := input.StartTime != nil || input.EndTime != nil
	switch {
	case input.Minutes != nil:
		entry.Minutes = *input.Minutes
	case timesChanged:
		minutes, err := resolveMinutes(entry.StartTime, entry.EndTime, nil)
		if err != nil {
			return nil, err
		}
		entry.Minutes = minutes
	}
	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, err
	}
	if diff := audit.Diff(before, entryFields(entry)); diff != nil {
		if err := s.auditor.Record(ctx, audit.EntityTimesheetEntry, entry.ID, audit.ActionUpdate,
			audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, SourceManual,
			diff, entryContext(entry)); err != nil {
			return nil, err
		}
		if err := s.appendLog(ctx, entry.ProjectID, &entry.ID, audit.ActionUpdate, actor.ID, diff); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// updateAttendanceRow rewrites the clock endpoints of the attendance
// behind a synthetic row. The new times land on the shift's work date
// in the project zone; the materialised entry follows.
func (s *Service) updateAttendanceRow(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	attID core.ID,
	input *UpdateInput,
) (*Entry, error) {
	if err := s.gate.CanApproveAttendance(actor, nil); err != nil {
		return nil, err
	}
	record, err := s.records.GetByID(ctx, attID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			return nil, core.NotFoundf("attendance %s not found", attID)
		}
		return nil, err
	}
	if record.IsDirect() {
		return nil, core.Validationf("attendance %s is not bound to a shift", attID)
	}
	sh, err := s.shifts.GetByID(ctx, *record.ShiftID)
	if err != nil {
		return nil, err
	}
	if sh.ProjectID != projectID {
		return nil, core.NotFoundf("attendance %s not found in this project", attID)
	}
	p, err := s.projects.GetByID(ctx, sh.ProjectID)
	if err != nil {
		return nil, err
	}
	loc := timeutil.LoadZone(ctx, p.Timezone)
	if input.StartTime != nil {
		at, err := clockOnDate(sh.WorkDate, *input.StartTime, loc)
		if err != nil {
			return nil, err
		}
		record.ClockInAt = &at
	}
	if input.EndTime != nil {
		at, err := clockOnDate(sh.WorkDate, *input.EndTime, loc)
		if err != nil {
			return nil, err
		}
		if record.ClockInAt != nil && !at.After(*record.ClockInAt) {
			at = at.Add(24 * time.Hour)
		}
		record.ClockOutAt = &at
	}
	if err := s.records.Update(ctx, record); err != nil {
		return nil, err
	}
	var entry *Entry
	if record.Status == attendance.StatusApproved {
		if err := s.MaterializeFromAttendance(ctx, record, sh, loc); err != nil {
			return nil, err
		}
		entry, err = s.entries.GetBySourceAttendance(ctx, record.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	changes := map[string]any{"after": map[string]any{}}
	after := changes["after"].(map[string]any)
	if record.ClockInAt != nil {
		after["clock_in_at"] = record.ClockInAt.Format(time.RFC3339)
	}
	if record.ClockOutAt != nil {
		after["clock_out_at"] = record.ClockOutAt.Format(time.RFC3339)
	}
	auditCtx := map[string]any{
		"attendance_id": attID.String(),
		"project_id":    sh.ProjectID.String(),
		"worker_id":     record.WorkerID.String(),
	}
	entityID := attID
	if entry != nil {
		entityID = entry.ID
	}
	if err := s.auditor.Record(ctx, audit.EntityTimesheetEntry, entityID, audit.ActionUpdate,
		audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, SourceAttendance,
		changes, auditCtx); err != nil {
		return nil, err
	}
	var entryID *core.ID
	if entry != nil {
		entryID = &entry.ID
	}
	if err := s.appendLog(ctx, sh.ProjectID, entryID, audit.ActionUpdate, actor.ID, after); err != nil {
		return nil, err
	}
	return entry, nil
}

// Approve approves or unapproves a manual timesheet entry.
func (s *Service) Approve(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	rowID string,
	approve bool,
) (*Entry, error) {
	return s.run(ctx, func(svc *Service) (*Entry, error) {
		return svc.approveRow(ctx, actor, projectID, rowID, approve)
	})
}

func (s *Service) approveRow(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	rowID string,
	approve bool,
) (*Entry, error) {
	if _, ok := parseAttendanceRowID(rowID); ok {
		return nil, core.Validationf("attendance-derived rows are approved through the attendance endpoints")
	}
	id, err := core.ParseID(rowID)
	if err != nil {
		return nil, core.Validationf("invalid timesheet entry id: %v", err)
	}
	entry, err := s.loadProjectEntry(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if !entry.IsManual() {
		return nil, core.Validationf("entry %s is attendance-derived; approve its attendance instead", id)
	}
	owner, err := s.users.GetByID(ctx, entry.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanApproveTimesheet(actor, owner); err != nil {
		return nil, err
	}
	action := audit.ActionApprove
	if approve {
		if entry.IsApproved {
			return nil, core.Statef("entry %s is already approved", id)
		}
		now := s.now().UTC()
		entry.IsApproved = true
		entry.ApprovedAt = &now
		entry.ApprovedBy = &actor.ID
	} else {
		if !entry.IsApproved {
			return nil, core.Statef("entry %s is not approved", id)
		}
		entry.IsApproved = false
		entry.ApprovedAt = nil
		entry.ApprovedBy = nil
		action = audit.ActionUnapprove
	}
	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.auditor.Record(ctx, audit.EntityTimesheetEntry, entry.ID, action,
		audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, SourceManual,
		map[string]any{"after": map[string]any{"is_approved": entry.IsApproved}},
		entryContext(entry)); err != nil {
		return nil, err
	}
	if err := s.appendLog(ctx, entry.ProjectID, &entry.ID, action, actor.ID,
		map[string]any{"is_approved": entry.IsApproved}); err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes a timesheet row. Deleting a manual entry resets any
// approved attendance on the same (project, worker, date) back to
// pending; deleting an attendance-backed row removes the attendance
// itself together with its materialised entry, in the same
// transaction.
func (s *Service) Delete(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	rowID string,
) error {
	return s.txr.WithTx(ctx, func(tx pgx.Tx) error {
		return s.withTx(tx).deleteRow(ctx, actor, projectID, rowID)
	})
}

func (s *Service) deleteRow(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	rowID string,
) error {
	if attID, ok := parseAttendanceRowID(rowID); ok {
		return s.deleteAttendanceRow(ctx, actor, projectID, attID)
	}
	id, err := core.ParseID(rowID)
	if err != nil {
		return core.Validationf("invalid timesheet entry id: %v", err)
	}
	entry, err := s.loadProjectEntry(ctx, projectID, id)
	if err != nil {
		return err
	}
	if err := s.canTouchEntry(ctx, actor, entry); err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, entry.ID); err != nil {
		return err
	}
	if err := s.auditor.Record(ctx, audit.EntityTimesheetEntry, entry.ID, audit.ActionDelete,
		audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, SourceManual,
		map[string]any{"before": entryFields(entry)}, entryContext(entry)); err != nil {
		return err
	}
	if err := s.appendLog(ctx, entry.ProjectID, &entry.ID, audit.ActionDelete, actor.ID,
		entryFields(entry)); err != nil {
		return err
	}
	return s.resetApprovedAttendance(ctx, actor, entry)
}

// resetApprovedAttendance flips approved attendances on the deleted
// entry's (project, worker, date) back to pending for re-review.
func (s *Service) resetApprovedAttendance(ctx context.Context, actor *user.User, entry *Entry) error {
	approved, err := s.records.ListApprovedForProjectUserDate(ctx, entry.ProjectID, entry.UserID, entry.WorkDate)
	if err != nil {
		return err
	}
	for _, record := range approved {
		record.Status = attendance.StatusPending
		record.ApprovedAt = nil
		record.ApprovedBy = nil
		if err := s.records.Update(ctx, record); err != nil {
			return err
		}
		if err := s.auditor.Record(ctx, audit.EntityAttendance, record.ID, audit.ActionReset,
			audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, SourceManual,
			map[string]any{
				"before": map[string]any{"status": attendance.StatusApproved},
				"after":  map[string]any{"status": attendance.StatusPending},
			},
			map[string]any{
				"project_id": entry.ProjectID.String(),
				"worker_id":  record.WorkerID.String(),
			}); err != nil {
			return err
		}
		logger.FromContext(ctx).Info("Attendance reset to pending after entry delete",
			"attendance_id", record.ID, "entry_id", entry.ID)
	}
	return nil
}

func (s *Service) deleteAttendanceRow(
	ctx context.Context,
	actor *user.User,
	projectID core.ID,
	attID core.ID,
) error {
	if err := s.gate.CanApproveAttendance(actor, nil); err != nil {
		return err
	}
	record, err := s.records.GetByID(ctx, attID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			return core.NotFoundf("attendance %s not found", attID)
		}
		return err
	}
	entry, err := s.findPairedEntry(ctx, record)
	if err != nil {
		return err
	}
	if entry != nil {
		if err := s.entries.Delete(ctx, entry.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	if err := s.records.Delete(ctx, record.ID); err != nil {
		return err
	}
	entityID := attID
	auditCtx := map[string]any{
		"attendance_id": attID.String(),
		"worker_id":     record.WorkerID.String(),
		"project_id":    projectID.String(),
	}
	if entry != nil {
		entityID = entry.ID
	}
	if err := s.auditor.Record(ctx, audit.EntityTimesheetEntry, entityID, audit.ActionDelete,
		audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, SourceAttendance,
		map[string]any{"source": SourceAttendance}, auditCtx); err != nil {
		return err
	}
	var entryID *core.ID
	if entry != nil {
		entryID = &entry.ID
	}
	if err := s.appendLog(ctx, projectID, entryID, audit.ActionDelete, actor.ID,
		map[string]any{"attendance_id": attID.String()}); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Attendance and paired entry deleted",
		"attendance_id", attID, "actor_id", actor.ID)
	return nil
}

// findPairedEntry resolves the entry an attendance materialised: by the
// weak reference first, then by (project, worker, date) plus the
// system-notes marker when the reference was nulled.
func (s *Service) findPairedEntry(ctx context.Context, record *attendance.Attendance) (*Entry, error) {
	entry, err := s.entries.GetBySourceAttendance(ctx, record.ID)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if record.IsDirect() {
		return nil, nil
	}
	sh, err := s.shifts.GetByID(ctx, *record.ShiftID)
	if err != nil {
		if errors.Is(err, shift.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	candidates, err := s.entries.ListForProjectWindow(ctx, sh.ProjectID, sh.WorkDate, sh.WorkDate, record.WorkerID)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if strings.Contains(candidate.Notes, "attendance system") {
			return candidate, nil
		}
	}
	return nil, nil
}

// Logs returns the project's timesheet change log, newest first.
func (s *Service) Logs(ctx context.Context, projectID core.ID, limit, offset int) ([]*Log, error) {
	return s.logs.ListForProject(ctx, projectID, limit, offset)
}

func (s *Service) loadProjectEntry(ctx context.Context, projectID, id core.ID) (*Entry, error) {
	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, core.NotFoundf("timesheet entry %s not found", id)
		}
		return nil, err
	}
	if entry.ProjectID != projectID {
		return nil, core.NotFoundf("timesheet entry %s not found in this project", id)
	}
	return entry, nil
}

// canTouchEntry allows the entry owner or anyone in the approval chain.
func (s *Service) canTouchEntry(ctx context.Context, actor *user.User, entry *Entry) error {
	if actor.ID == entry.UserID {
		return nil
	}
	owner, err := s.users.GetByID(ctx, entry.UserID)
	if err != nil {
		return err
	}
	return s.gate.CanApproveTimesheet(actor, owner)
}

func (s *Service) appendLog(
	ctx context.Context,
	projectID core.ID,
	entryID *core.ID,
	action string,
	actorID core.ID,
	details map[string]any,
) error {
	id, err := core.NewID()
	if err != nil {
		return fmt.Errorf("generating timesheet log id: %w", err)
	}
	return s.logs.Append(ctx, &Log{
		ID:        id,
		ProjectID: projectID,
		EntryID:   entryID,
		Action:    action,
		ActorID:   actorID,
		Details:   details,
		CreatedAt: s.now().UTC(),
	})
}

func parseAttendanceRowID(rowID string) (core.ID, bool) {
	raw, ok := strings.CutPrefix(rowID, AttendanceRowPrefix)
	if !ok {
		return "", false
	}
	id, err := core.ParseID(raw)
	if err != nil {
		return "", false
	}
	return id, true
}

// resolveMinutes derives the entry duration: an explicit value wins,
// else end − start with a single midnight normalisation.
func resolveMinutes(startTime string, endTime *string, explicit *int) (int, error) {
	if explicit != nil {
		if *explicit < 0 {
			return 0, core.Validationf("minutes must not be negative")
		}
		return *explicit, nil
	}
	startMin, err := timeutil.ParseClock(startTime)
	if err != nil {
		return 0, core.Validationf("%v", err)
	}
	if endTime == nil {
		return 0, core.Validationf("either minutes or end_time is required")
	}
	endMin, err := timeutil.ParseClock(*endTime)
	if err != nil {
		return 0, core.Validationf("%v", err)
	}
	if endMin <= startMin {
		endMin += 24 * 60
	}
	return endMin - startMin, nil
}

// clockOnDate attaches an HH:MM local clock value to a calendar date
// and returns the UTC instant.
func clockOnDate(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	minutes, err := timeutil.ParseClock(clock)
	if err != nil {
		return time.Time{}, core.Validationf("%v", err)
	}
	return timeutil.Combine(date, minutes, loc), nil
}

func entryFields(e *Entry) map[string]any {
	fields := map[string]any{
		"work_date":   e.WorkDate.Format(timeutil.DateLayout),
		"start_time":  e.StartTime,
		"minutes":     e.Minutes,
		"notes":       e.Notes,
		"is_approved": e.IsApproved,
		"user_id":     e.UserID.String(),
	}
	if e.EndTime != nil {
		fields["end_time"] = *e.EndTime
	}
	return fields
}

func entryContext(e *Entry) map[string]any {
	return map[string]any{
		"project_id": e.ProjectID.String(),
		"worker_id":  e.UserID.String(),
	}
}
