package ecs

// Metadata is one of the two mandatory components. It exists from allocation
// until it is the very last component removed on deletion, and its final
// value is snapshotted so diagnostics keep working for dead entities.
type Metadata struct {
	Stage        Stage
	Deleted      bool
	Paused       bool
	LastModified Tick
	Prototype    string
	Name         string
	Description  string
}
