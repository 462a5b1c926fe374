package system

import (
	"time"

	coresys "github.com/stationgo/server/internal/core/system"
)

// Flusher is the slice of the hub the output system needs.
type Flusher interface {
	Flush()
}

// OutputSystem pushes buffered outbound frames to the writer goroutines.
type OutputSystem struct {
	hub Flusher
}

func NewOutputSystem(hub Flusher) *OutputSystem {
	return &OutputSystem{hub: hub}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	if s.hub != nil {
		s.hub.Flush()
	}
}
