package rooms

import "time"

// cooldownTracker enforces a minimum interval between accepted suggestions
// per member. Entries are pruned lazily on access; the clock is injected so
// the window is testable without sleeping.
type cooldownTracker struct {
	window time.Duration
	last   map[string]time.Time
}

func newCooldownTracker(window time.Duration) *cooldownTracker {
	return &cooldownTracker{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// allow reports whether the member may suggest now and, if so, starts a
// fresh window for it.
func (c *cooldownTracker) allow(memberID string, now time.Time) bool {
	c.prune(now)
	if last, ok := c.last[memberID]; ok && now.Sub(last) < c.window {
		return false
	}
	c.last[memberID] = now
	return true
}

func (c *cooldownTracker) remaining(memberID string, now time.Time) time.Duration {
	last, ok := c.last[memberID]
	if !ok {
		return 0
	}
	left := c.window - now.Sub(last)
	if left < 0 {
		return 0
	}
	return left
}

func (c *cooldownTracker) prune(now time.Time) {
	for id, last := range c.last {
		if now.Sub(last) >= c.window {
			delete(c.last, id)
		}
	}
}
