package ecs

// Lifecycle events raised by the world. The bus lives in core/event; the
// world only sees the EventSink below, which keeps the import direction
// one-way (event imports ecs, never the reverse).

type EntityAdded struct {
	Entity EntityID
}

type EntityInitialized struct {
	Entity EntityID
}

type EntityStarted struct {
	Entity EntityID
}

// EntityMapInit is raised at most once per entity, to the entity only.
type EntityMapInit struct {
	Entity EntityID
}

type EntityQueuedForDeletion struct {
	Entity EntityID
}

// EntityTerminating is delivered to each entity in a doomed subtree during
// the flag phase, before anything is torn down.
type EntityTerminating struct {
	Entity EntityID
}

// EntityDeleted carries the final metadata snapshot: the component itself is
// gone by the time handlers run. The network binding is still resolvable
// inside handlers and is released right after dispatch.
type EntityDeleted struct {
	Entity EntityID
	Meta   Metadata
}

type EntityDirtied struct {
	Entity EntityID
	Tick   Tick
}

type EntityParentChanged struct {
	Entity    EntityID
	OldParent EntityID
	NewParent EntityID
}

type ComponentAdded struct {
	Entity EntityID
	Type   TypeID
}

type ComponentRemoved struct {
	Entity EntityID
	Type   TypeID
}

// EventSink is the world's view of the event bus.
type EventSink interface {
	// Raise dispatches synchronously to global subscribers.
	Raise(ev any)
	// RaiseLocal dispatches synchronously to the entity's subscribers first,
	// then to global subscribers.
	RaiseLocal(e EntityID, ev any)
	// DropEntity discards the entity's per-entity subscriptions.
	DropEntity(e EntityID)
}

type nopSink struct{}

func (nopSink) Raise(any)                {}
func (nopSink) RaiseLocal(EntityID, any) {}
func (nopSink) DropEntity(EntityID)      {}
