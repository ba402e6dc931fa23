package user

import (
	"context"
	"errors"

	"github.com/fieldops/dispatch/engine/core"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// Repository defines the read-side access the core needs from the user
// registry, plus the create used by bootstrap seeding.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id core.ID) (*User, error)
	GetByIDs(ctx context.Context, ids []core.ID) (map[core.ID]*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
