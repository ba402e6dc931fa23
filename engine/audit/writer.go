package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// Actor identifies who performed a mutation. Role is the highest role
// the actor held at the time, recorded for forensic value.
type Actor struct {
	ID   core.ID
	Role string
}

// Writer appends hash-chained audit entries. A write failure fails the
// surrounding transaction: a mutation without its paper trail must not
// commit.
type Writer struct {
	repo   Repository
	secret string
	now    func() time.Time
}

// NewWriter creates an audit writer. The secret is the process-wide
// token-signing secret; the hash is reproducible only with it.
func NewWriter(repo Repository, secret string) *Writer {
	return &Writer{repo: repo, secret: secret, now: time.Now}
}

// WithClock overrides the writer's time source. Intended for tests.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// WithTx returns a writer bound to the transaction, so the audit row
// commits or rolls back with the mutation it describes.
func (w *Writer) WithTx(tx pgx.Tx) *Writer {
	return &Writer{repo: w.repo.WithTx(tx), secret: w.secret, now: w.now}
}

// Record appends one audit entry for a state transition.
func (w *Writer) Record(
	ctx context.Context,
	entityType string,
	entityID core.ID,
	action string,
	actor Actor,
	source string,
	changes map[string]any,
	auditCtx map[string]any,
) error {
	id, err := core.NewID()
	if err != nil {
		return fmt.Errorf("generating audit id: %w", err)
	}
	entry := &Entry{
		ID:         id,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Source:     source,
		Timestamp:  w.now().UTC(),
		Changes:    changes,
		Context:    auditCtx,
	}
	hash, err := ComputeHash(entry, w.secret)
	if err != nil {
		return err
	}
	entry.IntegrityHash = hash
	if err := w.repo.Append(ctx, entry); err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("Audit entry recorded",
		"entity_type", entityType, "entity_id", entityID, "action", action)
	return nil
}

// Diff builds a {before, after} change set restricted to keys whose
// values differ. Both maps use the same field names.
func Diff(before, after map[string]any) map[string]any {
	changedBefore := make(map[string]any)
	changedAfter := make(map[string]any)
	for key, newValue := range after {
		oldValue, existed := before[key]
		if !existed || fmt.Sprintf("%v", oldValue) != fmt.Sprintf("%v", newValue) {
			changedBefore[key] = oldValue
			changedAfter[key] = newValue
		}
	}
	if len(changedAfter) == 0 {
		return nil
	}
	return map[string]any{"before": changedBefore, "after": changedAfter}
}
