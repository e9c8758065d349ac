package analytics

import (
	"sync"
	"time"

	"rewardkit/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks users who earned XP on a given day.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	if e.Type != core.EventXPGranted {
		return
	}
	day := e.Time.UTC().Format("2006-01-02")
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// GrantStats aggregates grant outcomes for reporting.
type GrantStats struct {
	mu sync.RWMutex

	xpByDay        map[string]int64
	xpByAction     map[core.ActionID]int64
	grantsByAction map[core.ActionID]int64

	suppressedByReason map[core.SuppressReason]int64

	levelUpsByDay     map[string]int64
	levelDistribution map[int]int64 // level -> users that reached it
}

func NewGrantStats() *GrantStats {
	return &GrantStats{
		xpByDay:            make(map[string]int64),
		xpByAction:         make(map[core.ActionID]int64),
		grantsByAction:     make(map[core.ActionID]int64),
		suppressedByReason: make(map[core.SuppressReason]int64),
		levelUpsByDay:      make(map[string]int64),
		levelDistribution:  make(map[int]int64),
	}
}

func (g *GrantStats) OnEvent(e core.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := e.Time.UTC().Format("2006-01-02")

	switch e.Type {
	case core.EventXPGranted:
		g.xpByDay[day] += e.Amount
		if e.Action != "" {
			g.xpByAction[e.Action] += e.Amount
			g.grantsByAction[e.Action]++
		}
	case core.EventLevelUp:
		g.levelUpsByDay[day]++
		g.levelDistribution[e.Level]++
	case core.EventGrantSuppressed:
		g.suppressedByReason[e.Suppress]++
	}
}

// XPAwarded returns the total XP granted on a day.
func (g *GrantStats) XPAwarded(day string) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.xpByDay[day]
}

// XPByAction returns the total XP granted for an action.
func (g *GrantStats) XPByAction(action core.ActionID) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.xpByAction[action]
}

// Grants returns the number of grants recorded for an action.
func (g *GrantStats) Grants(action core.ActionID) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.grantsByAction[action]
}

// Suppressed returns how many grants were suppressed for a reason.
func (g *GrantStats) Suppressed(why core.SuppressReason) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.suppressedByReason[why]
}

// LevelUps returns how many level-ups happened on a day.
func (g *GrantStats) LevelUps(day string) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.levelUpsByDay[day]
}

// LevelReached returns how many times a level was reached.
func (g *GrantStats) LevelReached(level int) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.levelDistribution[level]
}

// Day formats t as the day key used by the aggregators.
func Day(t time.Time) string { return t.UTC().Format("2006-01-02") }
