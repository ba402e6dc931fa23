package attendance

import (
	"context"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/policy"
)

// breakEligibilityMinutes is the minimum gross duration before the
// policy default break auto-deducts.
const breakEligibilityMinutes = 300

// BreakPolicy reads the settings the break computation depends on.
type BreakPolicy interface {
	DefaultBreakMinutes(ctx context.Context) (*int, error)
	BreakEligibleEmployees(ctx context.Context) (map[core.ID]struct{}, error)
}

var _ BreakPolicy = (*policy.Service)(nil)

// ComputeBreak resolves the break minutes for an attendance: a manual
// override always wins; otherwise the policy default applies when both
// endpoints are present, the gross duration reaches five hours and the
// worker is in the eligibility set; otherwise nil.
func ComputeBreak(
	ctx context.Context,
	pol BreakPolicy,
	a *Attendance,
	manualOverride *int,
) (*int, error) {
	if manualOverride != nil && *manualOverride >= 0 {
		return manualOverride, nil
	}
	if !a.IsComplete() || a.TotalMinutes() < breakEligibilityMinutes {
		return nil, nil
	}
	eligible, err := pol.BreakEligibleEmployees(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := eligible[a.WorkerID]; !ok {
		return nil, nil
	}
	return pol.DefaultBreakMinutes(ctx)
}
