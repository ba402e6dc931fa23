package task

import (
	"context"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/jackc/pgx/v5"
)

// Repository persists task items.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	ListOpenByOrigin(ctx context.Context, originType string, originID core.ID) ([]*Item, error)
	// CompleteByOrigin marks every open item for the origin completed
	// and returns how many rows changed.
	CompleteByOrigin(ctx context.Context, originType string, originID core.ID) (int, error)
	// WithTx returns a repository bound to the transaction.
	WithTx(tx pgx.Tx) Repository
}
