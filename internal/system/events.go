package system

import (
	"time"

	"github.com/stationgo/server/internal/core/event"
	coresys "github.com/stationgo/server/internal/core/system"
)

// EventDispatchSystem delivers events queued during the previous tick, right
// after reconciliation and before simulation logic.
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.DispatchQueued()
}
