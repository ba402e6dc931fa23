package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/timeutil"
	"github.com/fieldops/dispatch/engine/user"
)

// Get fetches one attendance record.
func (s *Service) Get(ctx context.Context, id core.ID) (*Attendance, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, core.NotFoundf("attendance %s not found", id)
		}
		return nil, err
	}
	return record, nil
}

// ListPending returns the approval queue. Restricted to users who can
// approve attendance.
func (s *Service) ListPending(ctx context.Context, actor *user.User) ([]*Attendance, error) {
	if err := s.gate.CanApproveAttendance(actor, nil); err != nil {
		return nil, err
	}
	return s.records.ListPending(ctx)
}

// ListByShift returns a shift's clock events.
func (s *Service) ListByShift(ctx context.Context, shiftID core.ID) ([]*Attendance, error) {
	return s.records.ListByShift(ctx, shiftID)
}

// DirectDay returns the acting worker's direct attendance for the
// local calendar date, interpreted in the system default timezone.
func (s *Service) DirectDay(ctx context.Context, actor *user.User, dateStr string) ([]*Attendance, error) {
	date, err := timeutil.ParseDate(dateStr)
	if err != nil {
		return nil, core.Validationf("%v", err)
	}
	loc := timeutil.LoadZone(ctx, s.cfg.DefaultTimezone)
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc).UTC()
	return s.records.ListDirectForWorkerDay(ctx, actor.ID, dayStart, dayStart.Add(24*time.Hour))
}
