package leaderboard

import (
	"context"

	"rewardkit/core"
	"rewardkit/engine"
)

// Entry is one user's position: lifetime XP and current level.
type Entry struct {
	User  core.UserID `json:"user_id"`
	XP    int64       `json:"xp"`
	Level int         `json:"level"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(user core.UserID, xp int64, level int)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
}

// Follow keeps the board current from the service's grant events.
// Returns the unsubscribe func. Positions only ever move up, since XP is
// monotone; events deliver the post-grant total, so replays and
// out-of-order delivery are harmless for the final position.
func Follow(svc *engine.RewardService, board Board) func() {
	return svc.Subscribe(core.EventXPGranted, func(_ context.Context, e core.Event) {
		if cur, ok := board.Get(e.UserID); ok && cur.XP >= e.Total {
			return
		}
		board.Update(e.UserID, e.Total, e.Level)
	})
}
