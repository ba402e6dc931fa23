package timesheet

import (
	"context"
	"time"

	"github.com/fieldops/dispatch/engine/attendance"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/perm"
	"github.com/fieldops/dispatch/engine/timeutil"
	"github.com/fieldops/dispatch/engine/user"
)

// WeeklySummary renders the acting user's Sunday-anchored week of
// attendance. weekStart is "YYYY-MM-DD" and is snapped back to the
// preceding Sunday; empty means the current week.
func (s *Service) WeeklySummary(
	ctx context.Context,
	actor *user.User,
	weekStart string,
) (*WeekSummary, error) {
	loc := timeutil.LoadZone(ctx, s.cfg.DefaultTimezone)
	anchor := timeutil.LocalDate(s.now(), loc)
	if weekStart != "" {
		parsed, err := timeutil.ParseDate(weekStart)
		if err != nil {
			return nil, core.Validationf("%v", err)
		}
		anchor = parsed
	}
	sunday := anchor.AddDate(0, 0, -int(anchor.Weekday()))
	startInstant := time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 0, 0, 0, 0, loc).UTC()
	endInstant := time.Date(sunday.Year(), sunday.Month(), sunday.Day()+7, 0, 0, 0, 0, loc).UTC()
	records, err := s.records.ListForWorkerWindow(ctx, actor.ID, startInstant, endInstant)
	if err != nil {
		return nil, err
	}

	summary := &WeekSummary{WeekStart: sunday.Format(timeutil.DateLayout)}
	dayByDate := make(map[string]*DaySummary, 7)
	for i := range 7 {
		day := &DaySummary{Date: sunday.AddDate(0, 0, i).Format(timeutil.DateLayout)}
		summary.Days = append(summary.Days, day)
		dayByDate[day.Date] = day
	}
	for _, record := range records {
		if record.Status == attendance.StatusRejected {
			continue
		}
		event := weekEvent(record, loc)
		anchorAt := record.ClockInAt
		if anchorAt == nil {
			anchorAt = record.ClockOutAt
		}
		day, ok := dayByDate[anchorAt.In(loc).Format(timeutil.DateLayout)]
		if !ok {
			continue
		}
		day.Events = append(day.Events, event)
		day.RegMinutes += event.GrossMinutes
		if event.BreakMinutes != nil {
			day.BreakMinutes += *event.BreakMinutes
		}
	}
	for _, day := range summary.Days {
		day.TotalMinutes = max(0, day.RegMinutes-day.BreakMinutes)
		summary.RegMinutes += day.RegMinutes
		summary.BreakMinutes += day.BreakMinutes
		summary.TotalMinutes += day.TotalMinutes
	}
	return summary, nil
}

// weekEvent renders one attendance for the weekly view. Hours-worked
// entries carry their duration in the reason text instead of clock
// times.
func weekEvent(record *attendance.Attendance, loc *time.Location) *WeekEvent {
	event := &WeekEvent{
		AttendanceID: record.ID,
		BreakMinutes: record.BreakMinutes,
		Status:       record.Status,
	}
	if record.Reason != nil {
		if parsed, err := attendance.ParseDirectReason(*record.Reason); err == nil {
			event.JobType = parsed.JobType
			if parsed.HoursWorked != nil && !record.IsComplete() {
				event.HoursOnly = true
				event.GrossMinutes = int(*parsed.HoursWorked * 60)
			}
		}
	}
	if !event.HoursOnly {
		if record.ClockInAt != nil {
			v := record.ClockInAt.In(loc).Format(clockLayout)
			event.ClockIn = &v
		}
		if record.ClockOutAt != nil {
			v := record.ClockOutAt.In(loc).Format(clockLayout)
			event.ClockOut = &v
		}
		event.GrossMinutes = record.TotalMinutes()
	}
	event.NetMinutes = event.GrossMinutes
	if record.BreakMinutes != nil {
		event.NetMinutes = max(0, event.GrossMinutes-*record.BreakMinutes)
	}
	return event
}

// Summary aggregates entry minutes per project over the month.
func (s *Service) Summary(ctx context.Context, month string) ([]*ProjectSummary, error) {
	loc := timeutil.LoadZone(ctx, s.cfg.DefaultTimezone)
	from, to, err := monthWindow(month, s.now(), loc)
	if err != nil {
		return nil, err
	}
	totals, err := s.entries.SumByProject(ctx, from, to)
	if err != nil {
		return nil, err
	}
	ids := make([]core.ID, 0, len(totals))
	for _, total := range totals {
		ids = append(ids, total.ProjectID)
	}
	projects, err := s.projects.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*ProjectSummary, 0, len(totals))
	for _, total := range totals {
		line := &ProjectSummary{
			ProjectID: total.ProjectID,
			Minutes:   total.Minutes,
			Entries:   total.Entries,
		}
		if p, ok := projects[total.ProjectID]; ok {
			line.ProjectName = p.Name
		}
		out = append(out, line)
	}
	return out, nil
}

// UserEntries lists a worker's entries across projects for the month.
// Viewing someone else's entries requires admin or supervisor.
func (s *Service) UserEntries(
	ctx context.Context,
	actor *user.User,
	userID core.ID,
	month string,
) ([]*Entry, error) {
	if userID.IsZero() {
		userID = actor.ID
	}
	if userID != actor.ID && !perm.IsAdmin(actor) && !perm.IsSupervisor(actor) {
		return nil, core.Forbiddenf("not allowed to view another worker's timesheet")
	}
	loc := timeutil.LoadZone(ctx, s.cfg.DefaultTimezone)
	from, to, err := monthWindow(month, s.now(), loc)
	if err != nil {
		return nil, err
	}
	return s.entries.ListForUserWindow(ctx, userID, from, to)
}
