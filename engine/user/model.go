package user

import (
	"slices"
	"strings"
	"time"

	"github.com/fieldops/dispatch/engine/core"
)

// Built-in role names. Role membership is owned by the identity
// collaborator; the core only reads it.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleWorker     = "worker"
)

// User is the read-side projection of an account the core consumes:
// roles, division memberships, the employee manager chain and the
// notification preferences.
type User struct {
	ID             core.ID    `db:"id"`
	Username       string     `db:"username"`
	Email          string     `db:"email"`
	FirstName      string     `db:"first_name"`
	LastName       string     `db:"last_name"`
	PreferredName  *string    `db:"preferred_name"`
	Roles          []string   `db:"roles"`
	Divisions      []string   `db:"divisions"`
	ManagerUserID  *core.ID   `db:"manager_user_id"`
	LegacyDivision *string    `db:"legacy_division"`
	Timezone       string     `db:"timezone"`
	PushEnabled    bool       `db:"push_enabled"`
	EmailEnabled   bool       `db:"email_enabled"`
	QuietStart     *string    `db:"quiet_start"`
	QuietEnd       *string    `db:"quiet_end"`
	AvatarID       *string    `db:"avatar_id"`
	CreatedAt      time.Time  `db:"created_at"`
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// DisplayName resolves the human-facing name: preferred name, then
// first+last, then username.
func (u *User) DisplayName() string {
	if u.PreferredName != nil && *u.PreferredName != "" {
		return *u.PreferredName
	}
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.Username
}
