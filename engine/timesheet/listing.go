package timesheet

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/fieldops/dispatch/engine/attendance"
	"github.com/fieldops/dispatch/engine/audit"
	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/project"
	"github.com/fieldops/dispatch/engine/shift"
	"github.com/fieldops/dispatch/engine/timeutil"
	"github.com/fieldops/dispatch/engine/user"
)

// ListQuery narrows the project timesheet listing. Month is "YYYY-MM";
// empty means the current month in the project's zone.
type ListQuery struct {
	Month  string
	UserID core.ID
}

// ListProject renders the project's timesheet for the month: one
// synthetic row per shift-bound attendance, plus manual entries whose
// (user, date) the attendance rows do not already cover. Times are in
// the project's local zone.
func (s *Service) ListProject(
	ctx context.Context,
	projectID core.ID,
	q *ListQuery,
) ([]*Row, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return nil, core.NotFoundf("project %s not found", projectID)
		}
		return nil, err
	}
	loc := timeutil.LoadZone(ctx, p.Timezone)
	from, to, err := monthWindow(q.Month, s.now(), loc)
	if err != nil {
		return nil, err
	}
	shifts, err := s.shifts.ListForProject(ctx, projectID, from, to)
	if err != nil {
		return nil, err
	}
	shiftByID := make(map[core.ID]*shift.Shift, len(shifts))
	shiftIDs := make([]core.ID, 0, len(shifts))
	for _, sh := range shifts {
		if !q.UserID.IsZero() && sh.WorkerID != q.UserID {
			continue
		}
		shiftByID[sh.ID] = sh
		shiftIDs = append(shiftIDs, sh.ID)
	}
	fromInstant := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc).UTC()
	toInstant := time.Date(to.Year(), to.Month(), to.Day()+1, 0, 0, 0, 0, loc).UTC()
	records, err := s.records.ListByShiftIDs(ctx, shiftIDs, fromInstant, toInstant)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListForProjectWindow(ctx, projectID, from, to, q.UserID)
	if err != nil {
		return nil, err
	}
	deletions, err := s.shiftDeletions(ctx, shifts)
	if err != nil {
		return nil, err
	}
	names, err := s.resolveNames(ctx, records, entries, deletions)
	if err != nil {
		return nil, err
	}

	rows := make([]*Row, 0, len(records)+len(entries))
	type userDate struct {
		userID core.ID
		date   string
	}
	covered := make(map[userDate]struct{})
	for _, record := range records {
		if record.Status == attendance.StatusRejected {
			continue
		}
		sh := shiftByID[*record.ShiftID]
		row := attendanceRow(record, sh, loc, names)
		if deletion, ok := deletions[sh.ID]; ok {
			row.ShiftDeleted = true
			row.ShiftDeletedBy = displayName(names, deletion.ActorID)
			ts := deletion.Timestamp
			row.ShiftDeletedAt = &ts
		}
		rows = append(rows, row)
		covered[userDate{record.WorkerID, row.WorkDate}] = struct{}{}
	}
	for _, entry := range entries {
		if !entry.IsManual() {
			continue
		}
		date := entry.WorkDate.Format(timeutil.DateLayout)
		if _, ok := covered[userDate{entry.UserID, date}]; ok {
			continue
		}
		rows = append(rows, &Row{
			ID:         entry.ID.String(),
			ProjectID:  entry.ProjectID,
			UserID:     entry.UserID,
			WorkerName: displayName(names, entry.UserID),
			WorkDate:   date,
			StartTime:  entry.StartTime,
			EndTime:    entry.EndTime,
			Minutes:    entry.Minutes,
			IsApproved: entry.IsApproved,
			Source:     SourceManual,
			Notes:      entry.Notes,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].WorkDate != rows[j].WorkDate {
			return rows[i].WorkDate < rows[j].WorkDate
		}
		return rows[i].StartTime < rows[j].StartTime
	})
	return rows, nil
}

func attendanceRow(
	record *attendance.Attendance,
	sh *shift.Shift,
	loc *time.Location,
	names map[core.ID]*user.User,
) *Row {
	start := sh.StartTime
	if record.ClockInAt != nil {
		start = record.ClockInAt.In(loc).Format(clockLayout)
	}
	var end *string
	if record.ClockOutAt != nil {
		v := record.ClockOutAt.In(loc).Format(clockLayout)
		end = &v
	}
	return &Row{
		ID:           AttendanceRowPrefix + record.ID.String(),
		ProjectID:    sh.ProjectID,
		UserID:       record.WorkerID,
		WorkerName:   displayName(names, record.WorkerID),
		WorkDate:     sh.WorkDate.Format(timeutil.DateLayout),
		StartTime:    start,
		EndTime:      end,
		Minutes:      record.NetMinutes(),
		BreakMinutes: record.BreakMinutes,
		IsApproved:   record.Status == attendance.StatusApproved,
		Source:       SourceAttendance,
		Status:       record.Status,
	}
}

// shiftDeletions looks up the most recent delete audit entry for every
// deleted shift in the listing window.
func (s *Service) shiftDeletions(
	ctx context.Context,
	shifts []*shift.Shift,
) (map[core.ID]*audit.Entry, error) {
	out := make(map[core.ID]*audit.Entry)
	for _, sh := range shifts {
		if sh.Status != shift.StatusDeleted {
			continue
		}
		entry, err := s.audits.LatestByEntityAction(ctx, audit.EntityShift, sh.ID, audit.ActionDelete)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			out[sh.ID] = entry
		}
	}
	return out, nil
}

func (s *Service) resolveNames(
	ctx context.Context,
	records []*attendance.Attendance,
	entries []*Entry,
	deletions map[core.ID]*audit.Entry,
) (map[core.ID]*user.User, error) {
	seen := make(map[core.ID]struct{})
	var ids []core.ID
	add := func(id core.ID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, record := range records {
		add(record.WorkerID)
	}
	for _, entry := range entries {
		add(entry.UserID)
	}
	for _, deletion := range deletions {
		add(deletion.ActorID)
	}
	if len(ids) == 0 {
		return map[core.ID]*user.User{}, nil
	}
	return s.users.GetByIDs(ctx, ids)
}

func displayName(names map[core.ID]*user.User, id core.ID) string {
	if u, ok := names[id]; ok {
		return u.DisplayName()
	}
	return ""
}

// monthWindow resolves a "YYYY-MM" month to its first and last calendar
// dates (UTC-midnight values, comparable against DATE columns).
func monthWindow(month string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	var year int
	var m time.Month
	if month == "" {
		year, m, _ = now.In(loc).Date()
	} else {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return time.Time{}, time.Time{}, core.Validationf("invalid month %q (want YYYY-MM)", month)
		}
		year, m, _ = parsed.Date()
	}
	from := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, -1), nil
}
