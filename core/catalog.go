package core

import (
	"errors"
	"sort"
	"strings"
)

// ActionID names a rewardable platform action.
type ActionID string

// Built-in actions for the short-video platform surface.
const (
	ActionVideoWatch       ActionID = "video_watch"
	ActionVideoUpload      ActionID = "video_upload"
	ActionCommunityComment ActionID = "community_comment"
	ActionCommunityPost    ActionID = "community_post"
	ActionAnswerAccepted   ActionID = "answer_accepted"
	ActionDailyLogin       ActionID = "daily_login"
	ActionProfileCompleted ActionID = "profile_completed"
)

// Catalog is a fixed mapping from action id to a positive XP value.
// It is configuration, not data: built once, never mutated at runtime.
type Catalog struct {
	values map[ActionID]int64
}

// DefaultCatalog returns the platform's built-in action values.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(map[ActionID]int64{
		ActionVideoWatch:       3,
		ActionVideoUpload:      15,
		ActionCommunityComment: 5,
		ActionCommunityPost:    20,
		ActionAnswerAccepted:   50,
		ActionDailyLogin:       10,
		ActionProfileCompleted: 25,
	})
	return c
}

// NewCatalog builds a catalog from the given mapping. Every value must be
// a positive integer and every action id non-empty.
func NewCatalog(values map[ActionID]int64) (*Catalog, error) {
	if len(values) == 0 {
		return nil, errors.New("catalog cannot be empty")
	}
	m := make(map[ActionID]int64, len(values))
	for id, v := range values {
		if strings.TrimSpace(string(id)) == "" {
			return nil, errors.New("catalog contains empty action id")
		}
		if v <= 0 {
			return nil, errors.New("catalog value for " + string(id) + " must be positive")
		}
		m[id] = v
	}
	return &Catalog{values: m}, nil
}

// Merge returns a new catalog with overrides applied on top of c. An
// override with a non-positive value is rejected rather than dropped.
func (c *Catalog) Merge(overrides map[ActionID]int64) (*Catalog, error) {
	merged := make(map[ActionID]int64, len(c.values)+len(overrides))
	for id, v := range c.values {
		merged[id] = v
	}
	for id, v := range overrides {
		merged[id] = v
	}
	return NewCatalog(merged)
}

// Value looks up the XP value for an action.
func (c *Catalog) Value(id ActionID) (int64, bool) {
	v, ok := c.values[id]
	return v, ok
}

// Actions returns all known action ids in stable order.
func (c *Catalog) Actions() []ActionID {
	out := make([]ActionID, 0, len(c.values))
	for id := range c.values {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
