package system

import (
	"sync/atomic"

	"github.com/stationgo/server/internal/core/ecs"
)

// Clock is the monotonically increasing tick counter. The game loop is the
// only writer; the atomic lets transport goroutines read the current tick
// when stamping outbound envelopes.
type Clock struct {
	tick atomic.Uint64
}

func (c *Clock) Current() ecs.Tick {
	return ecs.Tick(c.tick.Load())
}

// Advance moves to the next tick and returns it.
func (c *Clock) Advance() ecs.Tick {
	return ecs.Tick(c.tick.Add(1))
}
