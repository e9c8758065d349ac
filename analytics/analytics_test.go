package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "rewardkit/adapters/memory"
	"rewardkit/core"
	"rewardkit/engine"
)

func TestGrantStatsOnEvent(t *testing.T) {
	stats := NewGrantStats()

	now := time.Now().UTC()
	day := Day(now)

	stats.OnEvent(core.Event{Type: core.EventXPGranted, UserID: "u1", Time: now, Action: core.ActionVideoUpload, Amount: 15, Total: 15, Level: 1})
	stats.OnEvent(core.Event{Type: core.EventXPGranted, UserID: "u1", Time: now, Action: core.ActionVideoUpload, Amount: 15, Total: 30, Level: 1})
	stats.OnEvent(core.Event{Type: core.EventXPGranted, UserID: "u2", Time: now, Reason: "backfill", Amount: 120, Total: 120, Level: 2})
	stats.OnEvent(core.Event{Type: core.EventLevelUp, UserID: "u2", Time: now, Total: 120, Level: 2})
	stats.OnEvent(core.Event{Type: core.EventGrantSuppressed, UserID: "u1", Time: now, Suppress: core.SuppressDuplicate})
	stats.OnEvent(core.Event{Type: core.EventGrantSuppressed, UserID: "u1", Time: now, Suppress: core.SuppressThrottled})
	stats.OnEvent(core.Event{Type: core.EventGrantSuppressed, UserID: "u2", Time: now, Suppress: core.SuppressThrottled})

	assert.Equal(t, int64(150), stats.XPAwarded(day))
	assert.Equal(t, int64(30), stats.XPByAction(core.ActionVideoUpload))
	assert.Equal(t, int64(2), stats.Grants(core.ActionVideoUpload))
	assert.Equal(t, int64(1), stats.Suppressed(core.SuppressDuplicate))
	assert.Equal(t, int64(2), stats.Suppressed(core.SuppressThrottled))
	assert.Equal(t, int64(1), stats.LevelUps(day))
	assert.Equal(t, int64(1), stats.LevelReached(2))
}

func TestDAUCountsDistinctUsers(t *testing.T) {
	dau := NewDAU()
	now := time.Now().UTC()

	dau.OnEvent(core.Event{Type: core.EventXPGranted, UserID: "a", Time: now})
	dau.OnEvent(core.Event{Type: core.EventXPGranted, UserID: "a", Time: now})
	dau.OnEvent(core.Event{Type: core.EventXPGranted, UserID: "b", Time: now})
	// Suppressions are not engagement.
	dau.OnEvent(core.Event{Type: core.EventGrantSuppressed, UserID: "c", Time: now})

	assert.Equal(t, 2, dau.Count(Day(now)))
}

func TestAttachFeedsHooksFromService(t *testing.T) {
	svc := engine.NewRewardService(mem.New(), core.DefaultCatalog(), engine.NewEventBus(engine.DispatchSync), engine.NewCooldown(), nil)
	defer svc.Close()

	stats := NewGrantStats()
	dau := NewDAU()
	off := Attach(svc, NewBridge(stats, dau))
	defer off()

	ctx := context.Background()
	require.NoError(t, svc.CreateUser(ctx, "alice"))

	_, err := svc.GrantForAction(ctx, "alice", core.ActionCommunityComment)
	require.NoError(t, err)

	day := Day(time.Now())
	assert.Equal(t, int64(5), stats.XPByAction(core.ActionCommunityComment))
	assert.Equal(t, int64(5), stats.XPAwarded(day))
	assert.Equal(t, 1, dau.Count(day))
}
