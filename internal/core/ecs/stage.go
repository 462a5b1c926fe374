package ecs

import "fmt"

// Stage is the lifecycle stage of an entity. Stages only move forward; the
// terminal branch Terminating→Deleted is reachable from any non-deleted
// stage, including straight from Allocated.
type Stage uint8

const (
	StageAllocated Stage = iota
	StageInitializing
	StageInitialized
	StageStarting
	StageStarted
	StageMapInitialized
	StageTerminating
	StageDeleted
)

func (s Stage) String() string {
	switch s {
	case StageAllocated:
		return "Allocated"
	case StageInitializing:
		return "Initializing"
	case StageInitialized:
		return "Initialized"
	case StageStarting:
		return "Starting"
	case StageStarted:
		return "Started"
	case StageMapInitialized:
		return "MapInitialized"
	case StageTerminating:
		return "Terminating"
	case StageDeleted:
		return "Deleted"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}
