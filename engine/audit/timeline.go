package audit

import (
	"context"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/user"
)

// ProjectNamer resolves a project's display name. Implemented by the
// project registry at wiring time; the indirection keeps this package
// free of a project dependency.
type ProjectNamer interface {
	ProjectName(ctx context.Context, id core.ID) (string, error)
}

// Timeline builds enriched per-project audit views. Display names are
// resolved from the user and project registries with per-call
// memoisation only; nothing is cached across requests.
type Timeline struct {
	repo     Repository
	users    user.Repository
	projects ProjectNamer
}

// NewTimeline creates a timeline reader.
func NewTimeline(repo Repository, users user.Repository, projects ProjectNamer) *Timeline {
	return &Timeline{repo: repo, users: users, projects: projects}
}

// ForProject returns the project's audit timeline, optionally filtered
// by section and month, enriched with display names.
func (t *Timeline) ForProject(ctx context.Context, q *TimelineQuery) ([]*TimelineEntry, error) {
	entries, err := t.repo.ListProjectTimeline(ctx, q)
	if err != nil {
		return nil, err
	}
	names := newNameResolver(t.users)
	out := make([]*TimelineEntry, 0, len(entries))
	for _, e := range entries {
		enriched := &TimelineEntry{Entry: *e}
		if actor, err := names.resolve(ctx, e.ActorID); err == nil && actor != nil {
			enriched.ActorName = actor.DisplayName()
			enriched.ActorAvatarID = actor.AvatarID
		}
		enriched.AffectedUserName = names.displayName(ctx, contextID(e.Context, "user_id"))
		enriched.WorkerName = names.displayName(ctx, contextID(e.Context, "worker_id"))
		enriched.ApprovedByName = names.displayName(ctx, contextID(e.Context, "approved_by"))
		enriched.ProjectName = t.projectName(ctx, e)
		out = append(out, enriched)
	}
	return out, nil
}

func (t *Timeline) projectName(ctx context.Context, e *Entry) string {
	pid := contextID(e.Context, "project_id")
	if pid.IsZero() && e.EntityType == EntityProject {
		pid = e.EntityID
	}
	if pid.IsZero() {
		return ""
	}
	name, err := t.projects.ProjectName(ctx, pid)
	if err != nil {
		return ""
	}
	return name
}

func contextID(m map[string]any, key string) core.ID {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return core.ID(s)
	}
	return ""
}

// nameResolver memoises user lookups for the duration of one call.
type nameResolver struct {
	users user.Repository
	seen  map[core.ID]*user.User
}

func newNameResolver(users user.Repository) *nameResolver {
	return &nameResolver{users: users, seen: make(map[core.ID]*user.User)}
}

func (r *nameResolver) resolve(ctx context.Context, id core.ID) (*user.User, error) {
	if id.IsZero() {
		return nil, nil
	}
	if u, ok := r.seen[id]; ok {
		return u, nil
	}
	u, err := r.users.GetByID(ctx, id)
	if err != nil {
		// Deleted accounts still appear in old audit rows.
		r.seen[id] = nil
		return nil, err
	}
	r.seen[id] = u
	return u, nil
}

func (r *nameResolver) displayName(ctx context.Context, id core.ID) string {
	u, err := r.resolve(ctx, id)
	if err != nil || u == nil {
		return ""
	}
	return u.DisplayName()
}
