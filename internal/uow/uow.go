package uow

import (
	"context"

	postgres "github.com/okonomi/yoyaku-go/internal/repository/postgres"
)

// AfterCommit is a function that runs after a successful transaction commit.
// Side-effect enqueueing and cache invalidation ride on these hooks so they
// can never roll back a committed transition.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work keyed on (resource, date) calendar slots.
type UoW struct {
	store *postgres.Store
}

func NewUoW(store *postgres.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside a transaction serialized on the given calendar slots.
// After a successful commit, it executes all after-commit hooks in order.
func (u *UoW) Do(
	ctx context.Context,
	keys []postgres.DateKey,
	fn func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.store.RunKeyed(ctx, keys, func(ctx context.Context, tx postgres.DB) error {
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
