package attendance

import (
	"testing"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(hour, min int) *time.Time {
	t := time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
	return &t
}

func interval(t *testing.T, in, out *time.Time, status string) *Attendance {
	t.Helper()
	id, err := core.NewID()
	require.NoError(t, err)
	return &Attendance{ID: id, ClockInAt: in, ClockOutAt: out, Status: status}
}

func TestCheckOverlap(t *testing.T) {
	t.Run("Should allow touching boundaries", func(t *testing.T) {
		existing := []*Attendance{interval(t, ts(8, 0), ts(12, 0), StatusApproved)}
		err := CheckOverlap(&Proposed{In: ts(12, 0), Out: ts(16, 0)}, existing, time.UTC)
		assert.NoError(t, err)
	})
	t.Run("Should reject a strict overlap", func(t *testing.T) {
		existing := []*Attendance{interval(t, ts(8, 0), ts(12, 0), StatusApproved)}
		err := CheckOverlap(&Proposed{In: ts(11, 0), Out: ts(15, 0)}, existing, time.UTC)
		require.Error(t, err)
		assert.Equal(t, core.CodeConflict, core.CodeOf(err))
	})
	t.Run("Should reject a bare clock-in landing inside an open pair", func(t *testing.T) {
		existing := []*Attendance{interval(t, ts(8, 0), ts(12, 0), StatusApproved)}
		err := CheckOverlap(&Proposed{In: ts(10, 0)}, existing, time.UTC)
		assert.Error(t, err)
	})
	t.Run("Should reject a clock-in within the hour before another start", func(t *testing.T) {
		existing := []*Attendance{interval(t, ts(13, 0), ts(17, 0), StatusApproved)}
		err := CheckOverlap(&Proposed{In: ts(12, 30)}, existing, time.UTC)
		require.Error(t, err)
		assert.Equal(t, core.CodeConflict, core.CodeOf(err))
	})
	t.Run("Should allow a clock-in exactly one hour before another start", func(t *testing.T) {
		existing := []*Attendance{interval(t, ts(13, 0), ts(17, 0), StatusApproved)}
		err := CheckOverlap(&Proposed{In: ts(12, 0)}, existing, time.UTC)
		assert.NoError(t, err)
	})
	t.Run("Should skip rejected records", func(t *testing.T) {
		existing := []*Attendance{interval(t, ts(8, 0), ts(12, 0), StatusRejected)}
		err := CheckOverlap(&Proposed{In: ts(9, 0), Out: ts(10, 0)}, existing, time.UTC)
		assert.NoError(t, err)
	})
	t.Run("Should skip the excluded record when re-checking an edit", func(t *testing.T) {
		self := interval(t, ts(8, 0), ts(12, 0), StatusPending)
		err := CheckOverlap(&Proposed{In: ts(8, 0), Out: ts(13, 0), ExcludeID: self.ID}, []*Attendance{self}, time.UTC)
		assert.NoError(t, err)
	})
	t.Run("Should treat an open clock-in as a point against the proposal", func(t *testing.T) {
		existing := []*Attendance{interval(t, ts(10, 0), nil, StatusPending)}
		err := CheckOverlap(&Proposed{In: ts(9, 0), Out: ts(11, 0)}, existing, time.UTC)
		assert.Error(t, err)
	})
}
