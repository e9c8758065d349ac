package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a user in the reward domain.
type UserID string

// ScopeKind names the entity class that bounds an idempotent reward,
// e.g. "post" for one-comment-reward-per-post or "day" for daily login.
type ScopeKind string

// ScopeID identifies one entity within a scope kind (a post id, a date).
type ScopeID string

// Progress is a snapshot of a user's reward ledger: lifetime XP and the
// level derived from it. XP is monotonically non-decreasing; Level equals
// LevelForXP(XP) after every successful grant.
type Progress struct {
	UserID  UserID    `json:"user_id"`
	XP      int64     `json:"xp"`
	Level   int       `json:"level"`
	Updated time.Time `json:"updated"`
}

// Grant reports the outcome of a single grant operation.
//
// Granted is false when an idempotency marker already existed for the
// scope; Amount is zero when a throttle window suppressed the reward.
// Both are successful outcomes, not errors.
type Grant struct {
	Granted        bool  `json:"granted"`
	Amount         int64 `json:"xp_awarded"`
	XP             int64 `json:"xp"`
	Level          int   `json:"level"`
	LeveledUp      bool  `json:"leveled_up"`
	CurrentLevelXP int64 `json:"current_level_xp"`
	NextLevelXP    int64 `json:"next_level_xp"`
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// ValidateScope ensures both scope parts are non-empty with a simple
// charset check, so composed marker keys stay unambiguous.
func ValidateScope(kind ScopeKind, id ScopeID) error {
	if err := validateScopePart(string(kind)); err != nil {
		return errors.New("invalid scope kind: " + err.Error())
	}
	if err := validateScopePart(string(id)); err != nil {
		return errors.New("invalid scope id: " + err.Error())
	}
	return nil
}

func validateScopePart(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("empty")
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return errors.New("disallowed character")
	}
	return nil
}
