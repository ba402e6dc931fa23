package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fieldops/dispatch/engine/audit"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/geo"
	"github.com/fieldops/dispatch/engine/notify"
	"github.com/fieldops/dispatch/engine/perm"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/fieldops/dispatch/engine/shift"
	"github.com/fieldops/dispatch/engine/timeutil"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/fieldops/dispatch/pkg/logger"
)

// Approve transitions a pending attendance to approved, closes its
// approval tasks and materialises the timesheet entry when a shift is
// attached. The transition, its audit row and the notifications commit
// in one transaction.
func (s *Service) Approve(ctx context.Context, actor *user.User, id core.ID, note string) (*Attendance, error) {
	return s.run(ctx, func(svc *Service) (*Attendance, error) {
		return svc.approve(ctx, actor, id, note)
	})
}

func (s *Service) approve(ctx context.Context, actor *user.User, id core.ID, note string) (*Attendance, error) {
	record, sh, p, err := s.loadForDecision(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanApproveAttendance(actor, p); err != nil {
		return nil, err
	}
	if record.Status != StatusPending {
		return nil, core.Statef("attendance %s is %s, only pending records can be approved", id, record.Status)
	}
	now := s.now().UTC()
	record.Status = StatusApproved
	record.ApprovedAt = &now
	record.ApprovedBy = &actor.ID
	if err := s.records.Update(ctx, record); err != nil {
		return nil, err
	}
	if err := s.tasks.CompleteAttendanceApproval(ctx, record.ID); err != nil {
		return nil, err
	}
	if sh != nil {
		loc := s.locationFor(ctx, p)
		if err := s.materialize.MaterializeFromAttendance(ctx, record, sh, loc); err != nil {
			return nil, err
		}
	}
	auditCtx := s.auditContext(record, sh)
	auditCtx["approved_by"] = actor.ID.String()
	changes := map[string]any{"before": map[string]any{"status": StatusPending}, "after": map[string]any{"status": StatusApproved}}
	if strings.TrimSpace(note) != "" {
		changes["note"] = note
	}
	if err := s.auditor.Record(ctx, audit.EntityAttendance, record.ID, audit.ActionApprove,
		audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, SourceApp, changes, auditCtx); err != nil {
		return nil, err
	}
	if err := s.notifyDecision(ctx, record, notify.TemplateAttendanceApproved); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Attendance approved", "attendance_id", id, "actor_id", actor.ID)
	return record, nil
}

// Reject transitions a pending attendance to rejected with a mandatory
// reason. No timesheet entry is materialised.
func (s *Service) Reject(ctx context.Context, actor *user.User, id core.ID, reason string) (*Attendance, error) {
	return s.run(ctx, func(svc *Service) (*Attendance, error) {
		return svc.reject(ctx, actor, id, reason)
	})
}

func (s *Service) reject(ctx context.Context, actor *user.User, id core.ID, reason string) (*Attendance, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, core.Validationf("a rejection reason is required")
	}
	record, sh, p, err := s.loadForDecision(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanApproveAttendance(actor, p); err != nil {
		return nil, err
	}
	if record.Status != StatusPending {
		return nil, core.Statef("attendance %s is %s, only pending records can be rejected", id, record.Status)
	}
	now := s.now().UTC()
	record.Status = StatusRejected
	record.RejectedAt = &now
	record.RejectedBy = &actor.ID
	record.RejectionReason = &reason
	if err := s.records.Update(ctx, record); err != nil {
		return nil, err
	}
	if err := s.tasks.CompleteAttendanceApproval(ctx, record.ID); err != nil {
		return nil, err
	}
	if err := s.auditor.Record(ctx, audit.EntityAttendance, record.ID, audit.ActionReject,
		audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, SourceApp,
		map[string]any{
			"before": map[string]any{"status": StatusPending},
			"after":  map[string]any{"status": StatusRejected, "rejection_reason": reason},
		},
		s.auditContext(record, sh)); err != nil {
		return nil, err
	}
	if err := s.notifyDecision(ctx, record, notify.TemplateAttendanceRejected); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Attendance rejected", "attendance_id", id, "actor_id", actor.ID)
	return record, nil
}

// UpdatePendingInput carries the fields editable while an attendance
// is pending.
type UpdatePendingInput struct {
	ClockInLocal  *string     `json:"clock_in_local,omitempty"`
	ClockOutLocal *string     `json:"clock_out_local,omitempty"`
	GPS           *geo.Sample `json:"gps,omitempty"`
	Reason        *string     `json:"reason_text,omitempty"`
}

// UpdatePending edits a pending attendance's times, location or reason.
// The record stays pending; re-approval is required. A back-dated
// result demands a reason of policy-minimum length.
func (s *Service) UpdatePending(ctx context.Context, actor *user.User, id core.ID, input *UpdatePendingInput) (*Attendance, error) {
	return s.run(ctx, func(svc *Service) (*Attendance, error) {
		return svc.updatePending(ctx, actor, id, input)
	})
}

func (s *Service) updatePending(ctx context.Context, actor *user.User, id core.ID, input *UpdatePendingInput) (*Attendance, error) {
	record, sh, p, err := s.loadForDecision(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canEditPending(ctx, actor, record, p); err != nil {
		return nil, err
	}
	if record.Status != StatusPending {
		return nil, core.Statef("attendance %s is %s, only pending records can be edited", id, record.Status)
	}
	before := recordFields(record)
	loc := s.locationFor(ctx, p)
	if err := s.applyPendingEdit(record, input, loc); err != nil {
		return nil, err
	}
	if record.IsComplete() && !record.ClockOutAt.After(*record.ClockInAt) {
		return nil, core.Validationf("clock-out must be after clock-in")
	}
	if err := s.recheckOverlap(ctx, record, loc); err != nil {
		return nil, err
	}
	if err := s.requireReasonWhenBackdated(ctx, record, loc); err != nil {
		return nil, err
	}
	breakMin, err := ComputeBreak(ctx, s.policy, record, nil)
	if err != nil {
		return nil, err
	}
	record.BreakMinutes = breakMin
	if err := s.records.Update(ctx, record); err != nil {
		return nil, err
	}
	if diff := audit.Diff(before, recordFields(record)); diff != nil {
		if err := s.auditor.Record(ctx, audit.EntityAttendance, record.ID, audit.ActionUpdate,
			audit.Actor{ID: actor.ID, Role: perm.PrimaryRole(actor)}, SourceApp,
			diff, s.auditContext(record, sh)); err != nil {
			return nil, err
		}
	}
	return record, nil
}

func (s *Service) applyPendingEdit(record *Attendance, input *UpdatePendingInput, loc *time.Location) error {
	if input.ClockInLocal != nil {
		selected, err := timeutil.ParseLocalDateTime(*input.ClockInLocal, loc)
		if err != nil {
			return core.Validationf("%v", err)
		}
		rounded := timeutil.RoundTo5Min(selected).UTC()
		record.ClockInAt = &rounded
		if input.GPS != nil {
			record.ClockInGPS = &GPS{Lat: input.GPS.Lat, Lng: input.GPS.Lng, AccuracyM: input.GPS.AccuracyM}
		}
	}
	if input.ClockOutLocal != nil {
		selected, err := timeutil.ParseLocalDateTime(*input.ClockOutLocal, loc)
		if err != nil {
			return core.Validationf("%v", err)
		}
		rounded := timeutil.RoundTo5Min(selected).UTC()
		record.ClockOutAt = &rounded
		if input.GPS != nil && input.ClockInLocal == nil {
			record.ClockOutGPS = &GPS{Lat: input.GPS.Lat, Lng: input.GPS.Lng, AccuracyM: input.GPS.AccuracyM}
		}
	}
	if input.Reason != nil {
		record.Reason = input.Reason
	}
	return nil
}

func (s *Service) recheckOverlap(ctx context.Context, record *Attendance, loc *time.Location) error {
	anchor := record.ClockInAt
	if anchor == nil {
		anchor = record.ClockOutAt
	}
	existing, err := s.records.ListForWorkerWindow(ctx, record.WorkerID,
		anchor.Add(-overlapLookback), anchor.Add(overlapLookback))
	if err != nil {
		return err
	}
	return CheckOverlap(&Proposed{
		WorkerID:  record.WorkerID,
		In:        record.ClockInAt,
		Out:       record.ClockOutAt,
		ExcludeID: record.ID,
	}, existing, loc)
}

func (s *Service) requireReasonWhenBackdated(ctx context.Context, record *Attendance, loc *time.Location) error {
	anchor := record.ClockInAt
	if anchor == nil {
		anchor = record.ClockOutAt
	}
	if anchor == nil || timeutil.SameDayLocal(*anchor, s.now(), loc) {
		return nil
	}
	reason := ""
	if record.Reason != nil {
		reason = *record.Reason
	}
	if len(strings.TrimSpace(reason)) < s.gate.ReasonMinChars {
		return core.Validationf(
			"a reason of at least %d characters is required for a day other than today",
			s.gate.ReasonMinChars,
		)
	}
	return nil
}

// canEditPending allows the worker themself or anyone who could clock
// on the worker's behalf.
func (s *Service) canEditPending(ctx context.Context, actor *user.User, record *Attendance, p *project.Project) error {
	if actor.ID == record.WorkerID {
		return nil
	}
	worker, err := s.users.GetByID(ctx, record.WorkerID)
	if err != nil {
		return err
	}
	if perm.HasPermission(actor.Roles, perm.PermClockOnBehalf) ||
		perm.IsWorkerSupervisorOf(actor, worker) || perm.IsOnsiteLead(actor, p) {
		return nil
	}
	return core.Forbiddenf("not allowed to edit this attendance")
}

func (s *Service) loadForDecision(ctx context.Context, id core.ID) (*Attendance, *shift.Shift, *project.Project, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, nil, core.NotFoundf("attendance %s not found", id)
		}
		return nil, nil, nil, err
	}
	if record.IsDirect() {
		return record, nil, nil, nil
	}
	sh, err := s.shifts.GetByID(ctx, *record.ShiftID)
	if err != nil {
		if errors.Is(err, shift.ErrNotFound) {
			return record, nil, nil, nil
		}
		return nil, nil, nil, err
	}
	p, err := s.projects.GetByID(ctx, sh.ProjectID)
	if err != nil {
		return nil, nil, nil, err
	}
	return record, sh, p, nil
}

func (s *Service) notifyDecision(ctx context.Context, record *Attendance, template string) error {
	worker, err := s.users.GetByID(ctx, record.WorkerID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.notifier.Push(ctx, worker, template, map[string]any{
		"attendance_id": record.ID.String(),
		"status":        record.Status,
	})
}
