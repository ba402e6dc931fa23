package user_test

import (
	"testing"

	"github.com/fieldops/dispatch/engine/user"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestUser_DisplayName(t *testing.T) {
	t.Run("Should prefer preferred name", func(t *testing.T) {
		u := &user.User{Username: "jdoe", FirstName: "Jordan", LastName: "Doe", PreferredName: strPtr("JD")}
		assert.Equal(t, "JD", u.DisplayName())
	})
	t.Run("Should fall back to first and last name", func(t *testing.T) {
		u := &user.User{Username: "jdoe", FirstName: "Jordan", LastName: "Doe"}
		assert.Equal(t, "Jordan Doe", u.DisplayName())
	})
	t.Run("Should fall back to username when names are empty", func(t *testing.T) {
		u := &user.User{Username: "jdoe", PreferredName: strPtr("")}
		assert.Equal(t, "jdoe", u.DisplayName())
	})
}

func TestUser_HasRole(t *testing.T) {
	t.Run("Should match exact role name", func(t *testing.T) {
		u := &user.User{Roles: []string{user.RoleWorker, user.RoleSupervisor}}
		assert.True(t, u.HasRole(user.RoleSupervisor))
		assert.False(t, u.HasRole(user.RoleAdmin))
	})
}
