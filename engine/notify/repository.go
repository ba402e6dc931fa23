package notify

import (
	"context"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/jackc/pgx/v5"
)

// Repository persists notification rows.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListPending(ctx context.Context, limit int) ([]*Notification, error)
	UpdateStatus(ctx context.Context, id core.ID, status string) error
	// WithTx returns a repository bound to the transaction.
	WithTx(tx pgx.Tx) Repository
}
