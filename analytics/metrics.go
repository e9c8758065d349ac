package analytics

import (
	"context"

	"rewardkit/core"
	"rewardkit/engine"
)

// BridgeHook fans an event out to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// Attach subscribes the hook to every service event. Returns the
// unsubscribe func.
func Attach(svc *engine.RewardService, h Hook) func() {
	return svc.SubscribeAll(func(_ context.Context, e core.Event) {
		h.OnEvent(e)
	})
}
