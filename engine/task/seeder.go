package task

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// Seeder emits task items when pending approvals arise. The external
// task board consumes them; the core only opens and closes them.
type Seeder struct {
	repo Repository
	now  func() time.Time
}

// NewSeeder creates a task seeder.
func NewSeeder(repo Repository) *Seeder {
	return &Seeder{repo: repo, now: time.Now}
}

// WithTx returns a seeder bound to the transaction, so task items
// commit or roll back with the mutation that seeded them.
func (s *Seeder) WithTx(tx pgx.Tx) *Seeder {
	return &Seeder{repo: s.repo.WithTx(tx), now: s.now}
}

// SeedAttendanceApproval opens an approval task for a pending
// attendance, assigned to the worker's direct supervisor.
func (s *Seeder) SeedAttendanceApproval(
	ctx context.Context,
	attendanceID core.ID,
	supervisorID *core.ID,
	workerName string,
	workDate string,
) error {
	id, err := core.NewID()
	if err != nil {
		return fmt.Errorf("generating task id: %w", err)
	}
	item := &Item{
		ID:         id,
		Title:      fmt.Sprintf("Approve attendance for %s – %s", workerName, workDate),
		AssigneeID: supervisorID,
		OriginType: OriginSystemAttendance,
		OriginID:   attendanceID,
		Status:     StatusOpen,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("Attendance approval task seeded",
		"attendance_id", attendanceID, "task_id", item.ID)
	return nil
}

// CompleteAttendanceApproval closes any open approval tasks for the
// attendance. Safe to call when none exist.
func (s *Seeder) CompleteAttendanceApproval(ctx context.Context, attendanceID core.ID) error {
	completed, err := s.repo.CompleteByOrigin(ctx, OriginSystemAttendance, attendanceID)
	if err != nil {
		return err
	}
	if completed > 0 {
		logger.FromContext(ctx).Debug("Attendance approval tasks completed",
			"attendance_id", attendanceID, "count", completed)
	}
	return nil
}
