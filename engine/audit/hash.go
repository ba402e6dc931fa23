package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// ComputeHash derives the integrity hash of an entry. The hash covers
// the canonical JSON of the entry's identity, actor, timestamp, changes
// and context with null-valued keys removed and keys sorted, joined to
// the server secret with ":". Reproducing it requires both the row and
// the secret, which makes silent tampering detectable.
func ComputeHash(e *Entry, secret string) (string, error) {
	payload := map[string]any{
		"entity_type":   e.EntityType,
		"entity_id":     e.EntityID.String(),
		"action":        e.Action,
		"actor_id":      e.ActorID.String(),
		"actor_role":    e.ActorRole,
		"source":        e.Source,
		"timestamp_utc": e.Timestamp.UTC().Format(time.RFC3339),
	}
	if changes := pruneNils(e.Changes); len(changes) > 0 {
		payload["changes"] = changes
	}
	if context := pruneNils(e.Context); len(context) > 0 {
		payload["context"] = context
	}
	// encoding/json marshals map keys in sorted order, which is the
	// canonical form the hash depends on.
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalizing audit entry: %w", err)
	}
	sum := sha256.Sum256(append(append(canonical, ':'), secret...))
	return hex.EncodeToString(sum[:]), nil
}

func pruneNils(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if pruned := pruneNils(nested); len(pruned) > 0 {
				out[k] = pruned
			}
			continue
		}
		out[k] = v
	}
	return out
}
