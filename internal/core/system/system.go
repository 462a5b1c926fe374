package system

import "time"

// Phase defines execution ordering within a single tick slice.
type Phase int

const (
	PhaseInput      Phase = iota // 0: release due network messages
	PhasePreUpdate               // 1: dispatch queued events
	PhaseUpdate                  // 2: simulation logic
	PhasePostUpdate              // 3: derived state
	PhaseOutput                  // 4: flush outbound frames
	PhaseCleanup                 // 5: deletion drain + stale cull
)

// System is implemented by everything the runner ticks.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
