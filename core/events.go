package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventXPGranted       EventType = "xp_granted"
	EventLevelUp         EventType = "level_up"
	EventGrantSuppressed EventType = "grant_suppressed"
)

// SuppressReason distinguishes why a grant was suppressed.
type SuppressReason string

const (
	SuppressDuplicate SuppressReason = "duplicate"
	SuppressThrottled SuppressReason = "throttled"
)

// Event represents an immutable domain event.
type Event struct {
	Type      EventType      `json:"type"`
	Time      time.Time      `json:"time"`
	UserID    UserID         `json:"user_id"`
	Action    ActionID       `json:"action,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Amount    int64          `json:"amount,omitempty"`
	Total     int64          `json:"total,omitempty"`
	Level     int            `json:"level,omitempty"`
	ScopeKind ScopeKind      `json:"scope_kind,omitempty"`
	ScopeID   ScopeID        `json:"scope_id,omitempty"`
	Suppress  SuppressReason `json:"suppress,omitempty"`
}

func NewXPGranted(user UserID, action ActionID, reason string, amount, total int64, level int) Event {
	return Event{Type: EventXPGranted, Time: time.Now().UTC(), UserID: user, Action: action, Reason: reason, Amount: amount, Total: total, Level: level}
}

func NewLevelUp(user UserID, total int64, level int) Event {
	return Event{Type: EventLevelUp, Time: time.Now().UTC(), UserID: user, Total: total, Level: level}
}

func NewGrantSuppressed(user UserID, action ActionID, kind ScopeKind, id ScopeID, why SuppressReason) Event {
	return Event{Type: EventGrantSuppressed, Time: time.Now().UTC(), UserID: user, Action: action, ScopeKind: kind, ScopeID: id, Suppress: why}
}
