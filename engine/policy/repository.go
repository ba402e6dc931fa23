package policy

import (
	"context"
	"encoding/json"
	"errors"
)

// List and item labels the core reads.
const (
	ListTimesheet            = "timesheet"
	ItemDefaultBreakMinutes  = "default_break_minutes"
	ItemBreakEligibleWorkers = "break_eligible_employees"
)

// ErrItemNotFound is returned when a settings item is absent.
var ErrItemNotFound = errors.New("setting item not found")

// Repository reads and writes the settings store, keyed by list name
// and item label. Values are free-form JSON.
type Repository interface {
	GetItemValue(ctx context.Context, listName, label string) (json.RawMessage, error)
	UpsertItem(ctx context.Context, listName, label string, value json.RawMessage) error
}
