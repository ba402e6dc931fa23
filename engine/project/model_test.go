package project

import (
	"context"
	"testing"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectScope(t *testing.T) {
	t.Run("Should match the direct lead and any division lead", func(t *testing.T) {
		leadID := core.MustNewID()
		direct := &Project{ID: core.MustNewID(), Code: "HARBOUR", OnsiteLeadID: &leadID}
		assert.True(t, direct.IsOnsiteLead(leadID))
		division := &Project{
			ID:                  core.MustNewID(),
			DivisionOnsiteLeads: map[string]core.ID{"Civil": leadID},
		}
		assert.True(t, division.IsOnsiteLead(leadID))
		assert.False(t, division.IsOnsiteLead(core.MustNewID()))
	})
	t.Run("Should recognize the General sentinel", func(t *testing.T) {
		assert.True(t, (&Project{Code: CodeGeneral}).IsGeneral())
		assert.False(t, (&Project{Code: "HARBOUR"}).IsGeneral())
	})
	t.Run("Should answer false on a nil project", func(t *testing.T) {
		var p *Project
		assert.False(t, p.IsGeneral())
		assert.False(t, p.IsOnsiteLead(core.MustNewID()))
	})
}

func TestNameLookup(t *testing.T) {
	t.Run("Should resolve a project id to its name", func(t *testing.T) {
		id := core.MustNewID()
		repo := &memRepo{projects: map[core.ID]*Project{id: {ID: id, Name: "Harbour Tower"}}}
		name, err := NameLookup{Repo: repo}.ProjectName(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "Harbour Tower", name)
	})
	t.Run("Should surface the registry's not-found error", func(t *testing.T) {
		repo := &memRepo{projects: map[core.ID]*Project{}}
		_, err := NameLookup{Repo: repo}.ProjectName(context.Background(), core.MustNewID())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
