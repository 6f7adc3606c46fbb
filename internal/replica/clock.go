package replica

import "sync/atomic"

// Clock is the monotonic logical clock that versions snapshots.
//
// Every applied event stamps its snapshot with a strictly increasing
// version. Versions are local to one replica and carry no wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though only the replica's single writer calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next version and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current version without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
