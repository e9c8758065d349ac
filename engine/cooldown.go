package engine

import (
	"sync"
	"time"

	"rewardkit/core"
)

// Cooldown is a process-local, best-effort rate limit on repeat rewards,
// keyed by (kind, user, scope). It is explicitly NOT an idempotency
// mechanism: state is volatile, never shared across processes, and a
// restart silently permits a fresh grant.
//
// Growth is bounded two ways: a background sweep drops entries older than
// their window allows, and inserts past the capacity evict the oldest
// entry. Both keep the map small without affecting correctness, since
// losing an entry only re-permits a small reward.
type Cooldown struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	capacity int

	sweepEvery time.Duration
	maxAge     time.Duration
	done       chan struct{}
	closeOnce  sync.Once

	now func() time.Time
}

const (
	defaultCooldownCapacity = 100_000
	defaultSweepInterval    = 10 * time.Minute
	defaultMaxEntryAge      = time.Hour
)

// CooldownOption tunes the tracker.
type CooldownOption func(*Cooldown)

// WithCapacity bounds the number of tracked (user, scope) pairs.
func WithCapacity(n int) CooldownOption {
	return func(c *Cooldown) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithSweep sets the sweep interval and the age after which an entry is
// unconditionally dropped.
func WithSweep(every, maxAge time.Duration) CooldownOption {
	return func(c *Cooldown) {
		if every > 0 {
			c.sweepEvery = every
		}
		if maxAge > 0 {
			c.maxAge = maxAge
		}
	}
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) CooldownOption {
	return func(c *Cooldown) { c.now = now }
}

// NewCooldown creates a tracker and starts its sweeper.
func NewCooldown(opts ...CooldownOption) *Cooldown {
	c := &Cooldown{
		seen:       make(map[string]time.Time),
		capacity:   defaultCooldownCapacity,
		sweepEvery: defaultSweepInterval,
		maxAge:     defaultMaxEntryAge,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	go c.sweeper()
	return c
}

// Close stops the sweeper.
func (c *Cooldown) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Allow reports whether a grant for the key may proceed now: true when no
// timestamp is tracked or the window has elapsed, recording now in either
// case. A false return suppresses the reward without error.
func (c *Cooldown) Allow(kind core.ScopeKind, user core.UserID, scope core.ScopeID, window time.Duration) bool {
	key := cooldownKey(kind, user, scope)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.seen[key]; ok && now.Sub(last) < window {
		return false
	}
	if len(c.seen) >= c.capacity {
		c.evictOldestLocked()
	}
	c.seen[key] = now
	return true
}

// Forget drops a key, re-permitting a grant. Used when the grant that
// claimed the slot failed at the store.
func (c *Cooldown) Forget(kind core.ScopeKind, user core.UserID, scope core.ScopeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, cooldownKey(kind, user, scope))
}

// Len reports the number of tracked entries.
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cooldown) sweeper() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

func (c *Cooldown) sweep() {
	cutoff := c.now().Add(-c.maxAge)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, ts := range c.seen {
		if ts.Before(cutoff) {
			delete(c.seen, k)
		}
	}
}

func (c *Cooldown) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, ts := range c.seen {
		if oldestKey == "" || ts.Before(oldest) {
			oldestKey = k
			oldest = ts
		}
	}
	if oldestKey != "" {
		delete(c.seen, oldestKey)
	}
}

func cooldownKey(kind core.ScopeKind, user core.UserID, scope core.ScopeID) string {
	return string(kind) + ":" + string(user) + ":" + string(scope)
}
