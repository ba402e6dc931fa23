package project

import (
	"time"

	"github.com/fieldops/dispatch/engine/core"
)

// Sentinel project codes. "General" hosts job-typed work that is not
// bound to a client project; "System Internal" shifts are hidden from
// every business query.
const (
	CodeGeneral        = "GENERAL"
	CodeSystemInternal = "SYSTEM_INTERNAL"
)

// Project is the read-side projection the core consumes from the
// project registry. Coordinates are either both present or both absent.
type Project struct {
	ID                  core.ID            `db:"id"`
	Name                string             `db:"name"`
	Code                string             `db:"code"`
	ClientID            *core.ID           `db:"client_id"`
	Timezone            string             `db:"timezone"`
	Lat                 *float64           `db:"lat"`
	Lng                 *float64           `db:"lng"`
	OnsiteLeadID        *core.ID           `db:"onsite_lead_id"`
	DivisionOnsiteLeads map[string]core.ID `db:"division_onsite_leads"`
	Status              string             `db:"status"`
	CreatedAt           time.Time          `db:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at"`
}

// HasCoordinates reports whether the project carries a site location.
func (p *Project) HasCoordinates() bool {
	return p.Lat != nil && p.Lng != nil
}

// IsGeneral reports whether this is the sentinel General project. Safe
// on a nil receiver: permission checks pass project scope that may be
// absent.
func (p *Project) IsGeneral() bool {
	return p != nil && p.Code == CodeGeneral
}

// IsOnsiteLead reports whether userID is the project's on-site lead,
// either directly or through any division assignment. Safe on a nil
// receiver.
func (p *Project) IsOnsiteLead(userID core.ID) bool {
	if p == nil {
		return false
	}
	if p.OnsiteLeadID != nil && *p.OnsiteLeadID == userID {
		return true
	}
	for _, leadID := range p.DivisionOnsiteLeads {
		if leadID == userID {
			return true
		}
	}
	return false
}
