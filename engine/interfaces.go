package engine

import (
	"context"

	"rewardkit/core"
)

// Ledger abstracts the per-user progress store.
//
// AddXP must be implemented as a single atomic increment at the
// persistence layer — never an application-level read-then-write — and
// must persist the level derived from the post-increment total in the
// same atomic unit, so concurrent grants to one user cannot lose updates
// or leave a stale level behind. A missing user yields
// core.ErrUserNotFound with no mutation.
type Ledger interface {
	CreateUser(ctx context.Context, user core.UserID) error
	GetProgress(ctx context.Context, user core.UserID) (core.Progress, error)
	AddXP(ctx context.Context, user core.UserID, delta int64) (core.Progress, error)
}

// MarkerStore persists idempotency markers, one per (kind, user, scope)
// triple. PutIfAbsent must be a single atomic insert-if-absent backed by
// a uniqueness constraint; a concurrent duplicate insert reports
// inserted=false, identical to an existing marker.
type MarkerStore interface {
	PutIfAbsent(ctx context.Context, kind core.ScopeKind, user core.UserID, scope core.ScopeID) (inserted bool, err error)
}

// Storage combines everything the reward service persists.
type Storage interface {
	Ledger
	MarkerStore
}
