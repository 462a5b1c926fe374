package world

import (
	"expvar"
	"sync/atomic"
)

// EntityGauge is the live entity count readout, updated once per tick after
// the deletion drain.
type EntityGauge struct {
	v atomic.Int64
}

func (g *EntityGauge) Set(n int64)  { g.v.Store(n) }
func (g *EntityGauge) Value() int64 { return g.v.Load() }

// Publish exposes the gauge under the given expvar name. Call at most once
// per name per process.
func (g *EntityGauge) Publish(name string) {
	expvar.Publish(name, expvar.Func(func() any { return g.v.Load() }))
}
