package ecs

import "fmt"

// EntityID is an opaque, process-local entity identifier. Ids are issued from
// a monotonic counter and never reused; 0 means "no entity" and doubles as
// the root sentinel in transform parent links.
type EntityID uint64

// NetworkID is the globally stable identifier used on the wire. It is mapped
// 1:1 to a local EntityID while the entity lives and returns to a free pool
// on deletion, so unlike EntityID it may be reused.
type NetworkID uint32

// Tick is the discrete simulation time unit.
type Tick uint64

// Allocator issues entity and network identifiers and owns the bidirectional
// binding between them. Game-loop goroutine only.
type Allocator struct {
	nextEntity EntityID
	nextNet    NetworkID
	freeNet    []NetworkID
	netByEnt   map[EntityID]NetworkID
	entByNet   map[NetworkID]EntityID
}

func NewAllocator() *Allocator {
	return &Allocator{
		freeNet:  make([]NetworkID, 0, 256),
		netByEnt: make(map[EntityID]NetworkID, 1024),
		entByNet: make(map[NetworkID]EntityID, 1024),
	}
}

// AllocEntityID returns a fresh entity id. Ids are strictly increasing.
func (a *Allocator) AllocEntityID() EntityID {
	a.nextEntity++
	return a.nextEntity
}

// AllocNetworkID returns a network id, preferring the free pool.
func (a *Allocator) AllocNetworkID() NetworkID {
	if n := len(a.freeNet); n > 0 {
		id := a.freeNet[n-1]
		a.freeNet = a.freeNet[:n-1]
		return id
	}
	a.nextNet++
	return a.nextNet
}

// Bind associates an entity id with a network id. Neither side may already
// be bound: two live entities must never share a network id.
func (a *Allocator) Bind(e EntityID, n NetworkID) error {
	if _, ok := a.netByEnt[e]; ok {
		return fmt.Errorf("bind entity %d: already bound", e)
	}
	if other, ok := a.entByNet[n]; ok {
		return fmt.Errorf("bind network id %d: already bound to entity %d", n, other)
	}
	a.netByEnt[e] = n
	a.entByNet[n] = e
	return nil
}

// EntityByNetwork resolves a network id to its live entity.
func (a *Allocator) EntityByNetwork(n NetworkID) (EntityID, error) {
	e, ok := a.entByNet[n]
	if !ok {
		return 0, fmt.Errorf("network id %d: %w", n, ErrUnknownID)
	}
	return e, nil
}

// NetworkByEntity resolves an entity to its network id.
func (a *Allocator) NetworkByEntity(e EntityID) (NetworkID, error) {
	n, ok := a.netByEnt[e]
	if !ok {
		return 0, fmt.Errorf("entity %d: %w", e, ErrUnknownID)
	}
	return n, nil
}

// Release drops the entity's network binding and returns the network id to
// the free pool. No-op if the entity was never bound.
func (a *Allocator) Release(e EntityID) {
	n, ok := a.netByEnt[e]
	if !ok {
		return
	}
	delete(a.netByEnt, e)
	delete(a.entByNet, n)
	a.freeNet = append(a.freeNet, n)
}
