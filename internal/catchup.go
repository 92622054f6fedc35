package internal

// CatchupTracker counts received messages against a server-declared
// backlog and turns them into a 0-100 progress percentage. Progress within
// one episode never decreases.
type CatchupTracker struct {
	target      int
	caughtUp    int
	lastPercent int
}

// Begin starts a new catch-up episode with the declared backlog size and
// returns the initial percentage: 0, or 100 for a non-positive target.
func (c *CatchupTracker) Begin(target int) int {
	c.caughtUp = 0
	if target <= 0 {
		c.target = 0
		c.lastPercent = 100
	} else {
		c.target = target
		c.lastPercent = 0
	}
	return c.lastPercent
}

// Active reports whether a catch-up episode is in progress.
func (c *CatchupTracker) Active() bool {
	return c.target > 0
}

// Add records n received messages. It returns the current percentage,
// whether it changed since the last report, and whether the episode just
// completed. Completion clears the target.
func (c *CatchupTracker) Add(n int) (percent int, changed bool, done bool) {
	if c.target <= 0 {
		return c.lastPercent, false, false
	}
	c.caughtUp += n
	if c.caughtUp >= c.target {
		c.target = 0
		c.lastPercent = 100
		return 100, true, true
	}
	percent = 100 * c.caughtUp / c.target
	if percent != c.lastPercent {
		c.lastPercent = percent
		return percent, true, false
	}
	return percent, false, false
}

// Reset clears all counters, as at the start of a connection attempt.
func (c *CatchupTracker) Reset() {
	c.target = 0
	c.caughtUp = 0
	c.lastPercent = 0
}
