package audit

import (
	"testing"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *Entry {
	return &Entry{
		EntityType: EntityShift,
		EntityID:   core.ID("2PzE3fVgWqKj7NrTmXbYcDh1Aa0"),
		Action:     ActionCreate,
		ActorID:    core.ID("2PzE3hJkLmNoPqRsTuVwXyZa1B2"),
		ActorRole:  "admin",
		Source:     "app",
		Timestamp:  time.Date(2025, 3, 10, 16, 5, 0, 0, time.UTC),
		Changes:    map[string]any{"after": map[string]any{"start_time": "08:00"}},
		Context:    map[string]any{"project_id": "2PzE3kQrStUvWxYzAbCdEfGh3C4"},
	}
}

func TestComputeHash(t *testing.T) {
	t.Run("Should be reproducible for identical entries", func(t *testing.T) {
		first, err := ComputeHash(testEntry(), "secret")
		require.NoError(t, err)
		second, err := ComputeHash(testEntry(), "secret")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Len(t, first, 64)
	})
	t.Run("Should change when the secret changes", func(t *testing.T) {
		first, err := ComputeHash(testEntry(), "secret")
		require.NoError(t, err)
		second, err := ComputeHash(testEntry(), "other-secret")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
	t.Run("Should change when a covered field changes", func(t *testing.T) {
		base, err := ComputeHash(testEntry(), "secret")
		require.NoError(t, err)
		mutated := testEntry()
		mutated.Action = ActionDelete
		changed, err := ComputeHash(mutated, "secret")
		require.NoError(t, err)
		assert.NotEqual(t, base, changed)
	})
	t.Run("Should ignore null-valued keys", func(t *testing.T) {
		base, err := ComputeHash(testEntry(), "secret")
		require.NoError(t, err)
		padded := testEntry()
		padded.Context["worker_id"] = nil
		withNil, err := ComputeHash(padded, "secret")
		require.NoError(t, err)
		assert.Equal(t, base, withNil)
	})
}

func TestDiff(t *testing.T) {
	t.Run("Should report only changed keys", func(t *testing.T) {
		before := map[string]any{"start_time": "08:00", "end_time": "16:00"}
		after := map[string]any{"start_time": "08:00", "end_time": "17:00"}
		diff := Diff(before, after)
		require.NotNil(t, diff)
		assert.Equal(t, map[string]any{"end_time": "16:00"}, diff["before"])
		assert.Equal(t, map[string]any{"end_time": "17:00"}, diff["after"])
	})
	t.Run("Should return nil when nothing changed", func(t *testing.T) {
		fields := map[string]any{"start_time": "08:00"}
		assert.Nil(t, Diff(fields, map[string]any{"start_time": "08:00"}))
	})
}
