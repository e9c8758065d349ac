package engine

import (
	"context"
	"log/slog"
	"time"

	"rewardkit/core"
)

// RewardService is the grant-issuing API the platform's routes call.
// Reward failures are reported, never raised, so a failed grant can never
// roll back or block the primary action it rewards; that decision stays
// with the caller.
type RewardService struct {
	storage  Storage
	catalog  *core.Catalog
	bus      *EventBus
	cooldown *Cooldown
	logger   *slog.Logger
}

func NewRewardService(storage Storage, catalog *core.Catalog, bus *EventBus, cooldown *Cooldown, logger *slog.Logger) *RewardService {
	if storage == nil || catalog == nil || bus == nil || cooldown == nil {
		panic("NewRewardService requires non-nil storage, catalog, bus, and cooldown")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RewardService{storage: storage, catalog: catalog, bus: bus, cooldown: cooldown, logger: logger}
}

// Subscribe convenience method.
func (s *RewardService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubscribeAll convenience method.
func (s *RewardService) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return s.bus.SubscribeAll(handler)
}

// Catalog exposes the immutable action catalog.
func (s *RewardService) Catalog() *core.Catalog { return s.catalog }

// CreateUser provisions a fresh ledger record (xp=0, level=1). Called
// once at account creation; grants never create users implicitly.
func (s *RewardService) CreateUser(ctx context.Context, user core.UserID) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	return s.storage.CreateUser(ctx, normalized)
}

// Progress returns the user's current ledger snapshot.
func (s *RewardService) Progress(ctx context.Context, user core.UserID) (core.Progress, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Progress{}, err
	}
	return s.storage.GetProgress(ctx, normalized)
}

// Grant adds a fixed positive amount of XP to the user's ledger. The
// reason label is observability-only; it rides on the emitted event and
// never affects correctness.
func (s *RewardService) Grant(ctx context.Context, user core.UserID, amount int64, reason string) (core.Grant, error) {
	if amount <= 0 {
		return core.Grant{}, core.ErrInvalidAmount
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Grant{}, err
	}
	return s.apply(ctx, normalized, "", reason, amount)
}

// GrantForAction looks the amount up from the catalog.
func (s *RewardService) GrantForAction(ctx context.Context, user core.UserID, action core.ActionID) (core.Grant, error) {
	amount, ok := s.catalog.Value(action)
	if !ok {
		return core.Grant{}, core.ErrUnknownAction
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Grant{}, err
	}
	return s.apply(ctx, normalized, action, string(action), amount)
}

// GrantOncePerScope grants a catalog amount at most once per (user,
// scope) pair. The marker insert is the sole authority on "already
// granted": it is a storage-level insert-if-absent, so two concurrent
// identical requests cannot both proceed. A duplicate is a success with
// Granted=false, not an error.
//
// The marker is written before the XP update; a crash in between loses
// the grant for that scope permanently. Accepted at-most-once tradeoff.
func (s *RewardService) GrantOncePerScope(ctx context.Context, user core.UserID, action core.ActionID, kind core.ScopeKind, scope core.ScopeID) (core.Grant, error) {
	amount, ok := s.catalog.Value(action)
	if !ok {
		return core.Grant{}, core.ErrUnknownAction
	}
	if err := core.ValidateScope(kind, scope); err != nil {
		return core.Grant{}, err
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Grant{}, err
	}

	// Resolve the user before writing the marker so a grant against a
	// non-existent user leaves no trace behind.
	current, err := s.storage.GetProgress(ctx, normalized)
	if err != nil {
		return core.Grant{}, err
	}

	inserted, err := s.storage.PutIfAbsent(ctx, kind, normalized, scope)
	if err != nil {
		return core.Grant{}, err
	}
	if !inserted {
		s.bus.Publish(ctx, core.NewGrantSuppressed(normalized, action, kind, scope, core.SuppressDuplicate))
		return suppressedGrant(current), nil
	}

	res, err := s.apply(ctx, normalized, action, string(action), amount)
	if err != nil {
		// Marker exists but no XP was applied: the documented
		// at-most-once gap. Surface it loudly for operators.
		s.logger.Warn("reward lost after marker write",
			"user", normalized, "action", action,
			"scope_kind", kind, "scope_id", scope, "error", err)
		return core.Grant{}, err
	}
	return res, nil
}

// GrantThrottled grants a catalog amount no more than once per window for
// a (user, scope) pair. Suppression is best-effort and process-local: a
// restart or a second instance may re-permit a grant, accepted because
// the amounts are small. A suppressed call succeeds with Amount=0.
func (s *RewardService) GrantThrottled(ctx context.Context, user core.UserID, action core.ActionID, kind core.ScopeKind, scope core.ScopeID, window time.Duration) (core.Grant, error) {
	amount, ok := s.catalog.Value(action)
	if !ok {
		return core.Grant{}, core.ErrUnknownAction
	}
	if err := core.ValidateScope(kind, scope); err != nil {
		return core.Grant{}, err
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Grant{}, err
	}

	current, err := s.storage.GetProgress(ctx, normalized)
	if err != nil {
		return core.Grant{}, err
	}

	if !s.cooldown.Allow(kind, normalized, scope, window) {
		s.bus.Publish(ctx, core.NewGrantSuppressed(normalized, action, kind, scope, core.SuppressThrottled))
		return suppressedGrant(current), nil
	}

	res, err := s.apply(ctx, normalized, action, string(action), amount)
	if err != nil {
		// Release the slot so a retry within the window can still grant.
		s.cooldown.Forget(kind, normalized, scope)
		return core.Grant{}, err
	}
	return res, nil
}

// apply performs the atomic increment and emits events. The previous
// level is derived from the post-increment total rather than a separate
// read, so LeveledUp is race-free under concurrent grants.
func (s *RewardService) apply(ctx context.Context, user core.UserID, action core.ActionID, reason string, amount int64) (core.Grant, error) {
	p, err := s.storage.AddXP(ctx, user, amount)
	if err != nil {
		return core.Grant{}, err
	}

	leveledUp := p.Level > core.LevelForXP(p.XP-amount)
	res := core.Grant{
		Granted:        true,
		Amount:         amount,
		XP:             p.XP,
		Level:          p.Level,
		LeveledUp:      leveledUp,
		CurrentLevelXP: core.MinXPForLevel(p.Level),
		NextLevelXP:    core.MinXPForNextLevel(p.Level),
	}

	s.bus.Publish(ctx, core.NewXPGranted(user, action, reason, amount, p.XP, p.Level))
	if leveledUp {
		s.bus.Publish(ctx, core.NewLevelUp(user, p.XP, p.Level))
	}
	return res, nil
}

func suppressedGrant(p core.Progress) core.Grant {
	return core.Grant{
		Granted:        false,
		Amount:         0,
		XP:             p.XP,
		Level:          p.Level,
		CurrentLevelXP: core.MinXPForLevel(p.Level),
		NextLevelXP:    core.MinXPForNextLevel(p.Level),
	}
}

// Close releases the bus workers and the cooldown sweeper.
func (s *RewardService) Close() {
	s.bus.Close()
	s.cooldown.Close()
}
