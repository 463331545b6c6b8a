package scheduler

// virtualClock holds the GPS virtual time V. Not safe for concurrent use;
// the scheduler's lock guards it.
type virtualClock struct {
	v float64
}

func (c *virtualClock) Now() float64 {
	return c.v
}

// Advance moves V forward by d. Negative deltas are ignored so that V stays
// non-decreasing outside explicit skip jumps.
func (c *virtualClock) Advance(d float64) {
	if d > 0 {
		c.v += d
	}
}

// Set jumps V to t. Used at startup (max arrival time) and on skip
// (removed packet's finish time).
func (c *virtualClock) Set(t float64) {
	c.v = t
}
