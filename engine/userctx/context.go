package userctx

import (
	"context"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/user"
)

type ctxKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the authenticated user, or a Forbidden error
// when the request carries none.
func UserFromContext(ctx context.Context) (*user.User, error) {
	u, ok := ctx.Value(ctxKey{}).(*user.User)
	if !ok || u == nil {
		return nil, core.Forbiddenf("authentication required")
	}
	return u, nil
}
