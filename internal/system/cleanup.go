package system

import (
	"time"

	"github.com/stationgo/server/internal/core/ecs"
	coresys "github.com/stationgo/server/internal/core/system"
	"github.com/stationgo/server/internal/world"
)

// CleanupSystem closes the tick: drain the deferred deletion queue, cull
// stale component rows, refresh the live entity gauge.
type CleanupSystem struct {
	world *ecs.World
	gauge *world.EntityGauge
}

func NewCleanupSystem(w *ecs.World, gauge *world.EntityGauge) *CleanupSystem {
	return &CleanupSystem{world: w, gauge: gauge}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.world.DrainDeletions()
	s.world.CullStale()
	if s.gauge != nil {
		s.gauge.Set(int64(s.world.LiveCount()))
	}
}
