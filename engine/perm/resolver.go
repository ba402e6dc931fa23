package perm

import (
	"strings"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/user"
)

// ProjectScope is the slice of project state the permission checks
// read. Satisfied by *project.Project; a nil scope means the action
// carries no project context.
type ProjectScope interface {
	IsOnsiteLead(userID core.ID) bool
	IsGeneral() bool
}

// IsAdmin reports whether the user carries the admin role.
func IsAdmin(u *user.User) bool {
	return u.HasRole(user.RoleAdmin)
}

// IsSupervisor reports whether the user carries the supervisor role.
// Project-specific membership is not enforced yet; the role alone
// suffices for project-scoped checks.
func IsSupervisor(u *user.User) bool {
	return u.HasRole(user.RoleSupervisor)
}

// IsWorkerSupervisorOf reports whether the worker's employee profile
// names the given user as direct manager.
func IsWorkerSupervisorOf(supervisor, worker *user.User) bool {
	return worker.ManagerUserID != nil && *worker.ManagerUserID == supervisor.ID
}

// IsOnsiteLead reports whether the user is the project's on-site lead,
// directly or through a division assignment.
func IsOnsiteLead(u *user.User, p ProjectScope) bool {
	return p != nil && p.IsOnsiteLead(u.ID)
}

// PrimaryRole returns the role recorded on audit rows for the user:
// the highest built-in role they hold, else their first role.
func PrimaryRole(u *user.User) string {
	switch {
	case IsAdmin(u):
		return user.RoleAdmin
	case IsSupervisor(u):
		return user.RoleSupervisor
	case u.HasRole(user.RoleWorker):
		return user.RoleWorker
	case len(u.Roles) > 0:
		return u.Roles[0]
	default:
		return ""
	}
}

// Gate evaluates action permissions for the shift and attendance flows.
// The static layer comes from the role catalogue; the dynamic layer
// folds the manager chain and on-site lead assignments on top.
type Gate struct {
	// ReasonMinChars is the minimum reason length for clocking on
	// behalf of another worker.
	ReasonMinChars int
}

// NewGate builds a permission gate with the given policy constants.
func NewGate(reasonMinChars int) *Gate {
	return &Gate{ReasonMinChars: reasonMinChars}
}

// CanCreateShiftFor gates shift creation. Scheduling a shift for someone
// else needs the schedule grant; a worker may create their own shift
// only in the sentinel General project.
func (g *Gate) CanCreateShiftFor(actor *user.User, workerID core.ID, p ProjectScope) error {
	if HasPermission(actor.Roles, PermShiftSchedule) {
		return nil
	}
	if actor.ID == workerID && p != nil && p.IsGeneral() && HasPermission(actor.Roles, PermShiftCreate) {
		return nil
	}
	return core.Forbiddenf("not allowed to create shifts for this worker")
}

// CanModifyShift gates shift update and delete.
func (g *Gate) CanModifyShift(actor, worker *user.User, p ProjectScope) error {
	if HasPermission(actor.Roles, PermShiftModify) ||
		IsWorkerSupervisorOf(actor, worker) || IsOnsiteLead(actor, p) {
		return nil
	}
	return core.Forbiddenf("not allowed to modify this shift")
}

// CanClockOwn gates a worker clocking their own shift.
func (g *Gate) CanClockOwn(actor *user.User, shiftWorkerID core.ID) error {
	if actor.ID == shiftWorkerID {
		return nil
	}
	return core.Forbiddenf("shift belongs to another worker")
}

// CanClockOnBehalf gates clocking for another worker and enforces the
// minimum reason length.
func (g *Gate) CanClockOnBehalf(actor, worker *user.User, p ProjectScope, reason string) error {
	allowed := HasPermission(actor.Roles, PermClockOnBehalf) ||
		IsWorkerSupervisorOf(actor, worker) || IsOnsiteLead(actor, p)
	if !allowed {
		return core.Forbiddenf("not allowed to clock on behalf of this worker")
	}
	if len(strings.TrimSpace(reason)) < g.ReasonMinChars {
		return core.Validationf("a reason of at least %d characters is required when clocking on behalf of a worker", g.ReasonMinChars)
	}
	return nil
}

// CanApproveAttendance gates attendance approval and rejection.
func (g *Gate) CanApproveAttendance(actor *user.User, _ ProjectScope) error {
	if HasPermission(actor.Roles, PermAttendanceApprove) {
		return nil
	}
	return core.Forbiddenf("not allowed to approve attendance")
}

// CanApproveTimesheet gates manual timesheet entry approval: the
// approval grant, or the entry owner's direct manager.
func (g *Gate) CanApproveTimesheet(actor, entryOwner *user.User) error {
	if HasPermission(actor.Roles, PermTimesheetApprove) || IsWorkerSupervisorOf(actor, entryOwner) {
		return nil
	}
	return core.Forbiddenf("not allowed to approve timesheet entries")
}
