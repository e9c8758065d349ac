// Package rewardkit assembles the reward engine with sensible defaults.
// Library users call New with options; the server binary wires the same
// pieces from configuration instead.
package rewardkit

import (
	"context"
	"log/slog"

	"rewardkit/adapters/memory"
	"rewardkit/core"
	"rewardkit/engine"
	"rewardkit/realtime"
)

// Option configures the service builder.
type Option func(*builder)

type builder struct {
	storage  engine.Storage
	catalog  *core.Catalog
	mode     engine.DispatchMode
	hub      *realtime.Hub
	cooldown []engine.CooldownOption
	logger   *slog.Logger
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(b *builder) { b.storage = s } }

// WithCatalog replaces the built-in action catalog.
func WithCatalog(c *core.Catalog) Option { return func(b *builder) { b.catalog = c } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(b *builder) { b.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(b *builder) { b.hub = h } }

// WithCooldownOptions tunes the throttle tracker.
func WithCooldownOptions(opts ...engine.CooldownOption) Option {
	return func(b *builder) { b.cooldown = opts }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(b *builder) { b.logger = l } }

// New builds a configured RewardService. Defaults when not provided:
//   - storage: in-memory
//   - catalog: the built-in action catalog
//   - dispatch: async
func New(opts ...Option) *engine.RewardService {
	b := &builder{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(b)
	}
	if b.storage == nil {
		b.storage = memory.New()
	}
	if b.catalog == nil {
		b.catalog = core.DefaultCatalog()
	}
	bus := engine.NewEventBus(b.mode)
	cd := engine.NewCooldown(b.cooldown...)
	svc := engine.NewRewardService(b.storage, b.catalog, bus, cd, b.logger)
	if b.hub != nil {
		svc.SubscribeAll(func(ctx context.Context, e core.Event) { b.hub.Broadcast(ctx, e) })
	}
	return svc
}
