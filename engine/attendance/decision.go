package attendance

// DecisionInput captures the facts the status decision depends on.
type DecisionInput struct {
	// SameDay is true when the selected instant falls on today's local
	// calendar date in the project timezone.
	SameDay bool
	// OnsiteLead is true when the acting user is the project's on-site
	// lead (directly or per division).
	OnsiteLead bool
	// WorkerSupervisor is true when the acting user is the worker's
	// direct manager.
	WorkerSupervisor bool
	// OnBehalf is true when the actor is not the worker being clocked.
	OnBehalf bool
}

// DecideStatus applies the approval decision table. An on-site lead is
// trusted unconditionally; anyone else is auto-approved only for
// same-day events, except a direct manager clocking on behalf, who is
// trusted like a lead. Everything else lands pending.
func DecideStatus(in DecisionInput) string {
	if in.OnsiteLead {
		return StatusApproved
	}
	if in.OnBehalf && in.WorkerSupervisor {
		return StatusApproved
	}
	if in.SameDay {
		return StatusApproved
	}
	return StatusPending
}
