package notify

import (
	"context"
	"time"

	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/sethvargo/go-retry"
)

const (
	dispatchBatchSize = 100
	dispatchInterval  = 15 * time.Second
	senderMaxRetries  = 3
	senderBaseBackoff = 500 * time.Millisecond
)

// Sender pushes one notification out on its channel. Implementations
// wrap the push provider and the SMTP relay; both live outside the
// core.
type Sender interface {
	Deliver(ctx context.Context, n *Notification) error
}

// NopSender drops notifications. Used when no provider is configured.
type NopSender struct{}

func (NopSender) Deliver(context.Context, *Notification) error { return nil }

// Dispatcher drains pending notification rows and hands them to the
// sender. Delivery is best-effort: transient failures retry with
// capped exponential backoff, terminal failures mark the row failed
// and never surface to user-facing flows.
type Dispatcher struct {
	repo   Repository
	sender Sender
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(repo Repository, sender Sender) *Dispatcher {
	if sender == nil {
		sender = NopSender{}
	}
	return &Dispatcher{repo: repo, sender: sender}
}

// Run drains the queue on a fixed interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil {
				logger.FromContext(ctx).Error("Notification dispatch cycle failed", "error", err)
			}
		}
	}
}

// DispatchPending delivers one batch of pending notifications.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	pending, err := d.repo.ListPending(ctx, dispatchBatchSize)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	for _, n := range pending {
		if err := d.deliverWithRetry(ctx, n); err != nil {
			log.Warn("Notification delivery failed",
				"notification_id", n.ID, "channel", n.Channel, "error", err)
			if err := d.repo.UpdateStatus(ctx, n.ID, StatusFailed); err != nil {
				return err
			}
			continue
		}
		if err := d.repo.UpdateStatus(ctx, n.ID, StatusSent); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, n *Notification) error {
	backoff := retry.WithMaxRetries(senderMaxRetries, retry.NewExponential(senderBaseBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := d.sender.Deliver(ctx, n); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
