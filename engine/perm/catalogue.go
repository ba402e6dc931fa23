package perm

import (
	"slices"

	"github.com/fieldops/dispatch/engine/user"
)

// Permission names granted through the built-in roles. The catalogue is
// the static layer of the gates below, which fold the manager chain and
// on-site lead assignments on top of these grants.
const (
	PermShiftView           = "shift:view"
	PermShiftCreate         = "shift:create"
	PermShiftSchedule       = "shift:schedule"
	PermShiftModify         = "shift:modify"
	PermClockOwn            = "attendance:clock_own"
	PermClockOnBehalf       = "attendance:clock_on_behalf"
	PermAttendanceApprove   = "attendance:approve"
	PermTimesheetView       = "timesheet:view"
	PermTimesheetEdit       = "timesheet:edit"
	PermTimesheetApprove    = "timesheet:approve"
	PermSettingsManage      = "settings:manage"
	PermProjectCoordsUpdate = "project:update_coordinates"
)

var workerPermissions = []string{
	PermShiftView,
	PermShiftCreate, // own shifts in the General sentinel only
	PermClockOwn,
	PermTimesheetView,
	PermTimesheetEdit, // own entries only
}

var supervisorPermissions = append([]string{
	PermShiftSchedule,
	PermClockOnBehalf,
	PermAttendanceApprove,
	PermTimesheetApprove,
}, workerPermissions...)

var adminPermissions = append([]string{
	PermShiftModify, // any shift; others modify via the manager chain or lead assignment
	PermSettingsManage,
	PermProjectCoordsUpdate,
}, supervisorPermissions...)

// RolePermissions maps each built-in role to its grants.
var RolePermissions = map[string][]string{
	user.RoleAdmin:      adminPermissions,
	user.RoleSupervisor: supervisorPermissions,
	user.RoleWorker:     workerPermissions,
}

// PermissionsForRoles folds the grants of every held role, deduplicated.
func PermissionsForRoles(roles []string) []string {
	var out []string
	for _, role := range roles {
		for _, perm := range RolePermissions[role] {
			if !slices.Contains(out, perm) {
				out = append(out, perm)
			}
		}
	}
	return out
}

// HasPermission reports whether any of the roles grants the permission.
func HasPermission(roles []string, permission string) bool {
	return slices.Contains(PermissionsForRoles(roles), permission)
}
