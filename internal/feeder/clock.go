package feeder

import (
	"sync"
	"time"
)

// Clock abstracts the two clocks the Replay Feeder can drive C4/C7/C8 from
// (spec section 4.6): wall-clock for live runs, sim-clock for backtest and
// replay runs where equivalence depends on the clock being fed entirely by
// the stream rather than the wall.
type Clock interface {
	NowMs() int64
}

// WallClock reads the system clock, used for live feeds.
type WallClock struct{}

// NowMs returns the current wall-clock time in epoch milliseconds.
func (WallClock) NowMs() int64 { return time.Now().UnixMilli() }

// SimClock is a monotonic counter advanced by the feeder as it consumes
// FeatureRows; it never reads the wall clock. This is the only clock C7/C8
// consult during backtest runs (spec section 4.6), so a replay is
// reproducible independent of how long it actually took to run.
type SimClock struct {
	mu      sync.Mutex
	current int64
}

// NewSimClock constructs a sim-clock starting at 0 (before the first
// Advance, NowMs reports 0).
func NewSimClock() *SimClock {
	return &SimClock{}
}

// Advance moves the sim-clock forward to tsMs if tsMs is later than the
// current value; a tsMs at or behind the current value is a no-op, since
// the stream is expected to be non-decreasing but individual symbols may
// interleave out of lockstep.
func (c *SimClock) Advance(tsMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tsMs > c.current {
		c.current = tsMs
	}
}

// NowMs returns the latest timestamp the sim-clock has been advanced to.
func (c *SimClock) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
