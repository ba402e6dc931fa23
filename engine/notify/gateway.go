package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/timeutil"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// Gateway decides whether a user should be notified and enqueues
// pending delivery rows. Delivery itself is handled by the Dispatcher.
type Gateway struct {
	repo        Repository
	pushEnabled bool
	mailEnabled bool
	now         func() time.Time
}

// NewGateway creates a notification gateway. The two flags are the
// global channel switches.
func NewGateway(repo Repository, pushEnabled, emailEnabled bool) *Gateway {
	return &Gateway{
		repo:        repo,
		pushEnabled: pushEnabled,
		mailEnabled: emailEnabled,
		now:         time.Now,
	}
}

// WithClock overrides the gateway's time source. Intended for tests.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// WithTx returns a gateway whose pending rows land on the transaction,
// so notifications commit or roll back with the mutation.
func (g *Gateway) WithTx(tx pgx.Tx) *Gateway {
	c := *g
	c.repo = g.repo.WithTx(tx)
	return &c
}

// ShouldSend reports whether the channel is open for the user right
// now: the channel must be globally enabled, the user must not have
// opted out, and the current instant in the user's timezone must fall
// outside their quiet-hours window.
func (g *Gateway) ShouldSend(ctx context.Context, u *user.User, channel string) bool {
	switch channel {
	case ChannelPush:
		if !g.pushEnabled || !u.PushEnabled {
			return false
		}
	case ChannelEmail:
		if !g.mailEnabled || !u.EmailEnabled {
			return false
		}
	default:
		return false
	}
	return !g.inQuietHours(ctx, u)
}

func (g *Gateway) inQuietHours(ctx context.Context, u *user.User) bool {
	if u.QuietStart == nil || u.QuietEnd == nil {
		return false
	}
	start, err := timeutil.ParseClock(*u.QuietStart)
	if err != nil {
		return false
	}
	end, err := timeutil.ParseClock(*u.QuietEnd)
	if err != nil {
		return false
	}
	if start == end {
		return false
	}
	loc := timeutil.LoadZone(ctx, u.Timezone)
	nowMin := timeutil.MinutesOfDay(g.now(), loc)
	if start < end {
		return nowMin >= start && nowMin < end
	}
	// Window wraps midnight, e.g. 22:00 to 07:00.
	return nowMin >= start || nowMin < end
}

// Send enqueues a pending notification for the user on the channel,
// unless the gateway's preference checks veto it. A vetoed send is not
// an error.
func (g *Gateway) Send(
	ctx context.Context,
	u *user.User,
	channel string,
	templateKey string,
	payload map[string]any,
) error {
	if !g.ShouldSend(ctx, u, channel) {
		logger.FromContext(ctx).Debug("Notification suppressed",
			"user_id", u.ID, "channel", channel, "template", templateKey)
		return nil
	}
	id, err := core.NewID()
	if err != nil {
		return fmt.Errorf("generating notification id: %w", err)
	}
	return g.repo.Create(ctx, &Notification{
		ID:          id,
		UserID:      u.ID,
		Channel:     channel,
		TemplateKey: templateKey,
		Payload:     payload,
		Status:      StatusPending,
		CreatedAt:   g.now().UTC(),
	})
}

// Push is shorthand for Send on the push channel.
func (g *Gateway) Push(ctx context.Context, u *user.User, templateKey string, payload map[string]any) error {
	return g.Send(ctx, u, ChannelPush, templateKey, payload)
}
