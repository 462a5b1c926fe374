package ecs

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// ClockSource is the external tick counter. Read-only to this package.
type ClockSource interface {
	Current() Tick
}

// ComponentLoader supplies prototype components during allocation. A failure
// aborts creation: the world rolls the half-built entity back with Delete
// before surfacing the error.
type ComponentLoader interface {
	LoadComponents(w *World, e EntityID, prototype string) error
}

// MapService answers whether a map has finished its own init, which decides
// whether InitAndStart also runs the one-shot map init.
type MapService interface {
	IsMapInitialized(mapID int32) bool
}

// World owns entity identity, the component store, the lifecycle state
// machine, the transform hierarchy, and the deferred deletion queue.
// Single-threaded: only the game loop goroutine may call into it.
type World struct {
	clock  ClockSource
	sink   EventSink
	alloc  *Allocator
	store  *Store
	loader ComponentLoader
	maps   MapService

	// strict turns tolerated misuse (re-entrant deletion) into a hard error
	// instead of an error log. One flag, checked in one place.
	strict bool
	log    *zap.Logger

	live      map[EntityID]struct{}
	delQueue  []EntityID
	delQueued map[EntityID]struct{}
	lastMeta  map[EntityID]Metadata
}

func NewWorld(clock ClockSource, sink EventSink, strict bool, log *zap.Logger) *World {
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		clock:     clock,
		sink:      sink,
		alloc:     NewAllocator(),
		store:     NewStore(),
		strict:    strict,
		log:       log,
		live:      make(map[EntityID]struct{}, 1024),
		delQueue:  make([]EntityID, 0, 64),
		delQueued: make(map[EntityID]struct{}, 64),
		lastMeta:  make(map[EntityID]Metadata, 256),
	}
}

func (w *World) Store() *Store         { return w.store }
func (w *World) Allocator() *Allocator { return w.alloc }

func (w *World) SetLoader(l ComponentLoader) { w.loader = l }
func (w *World) SetMapService(m MapService)  { w.maps = m }

// Alloc creates an entity in StageAllocated with its two mandatory
// components, binds a network id, and raises EntityAdded before any
// prototype component is attached. If the loader fails the entity is
// deleted again and ErrEntityCreation is returned.
func (w *World) Alloc(prototype string) (EntityID, error) {
	e := w.alloc.AllocEntityID()
	n := w.alloc.AllocNetworkID()
	if err := w.alloc.Bind(e, n); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEntityCreation, err)
	}
	w.live[e] = struct{}{}

	meta := &Metadata{Stage: StageAllocated, Prototype: prototype}
	if err := w.store.Add(e, TypeMetadata, meta); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEntityCreation, err)
	}
	if err := w.store.Add(e, TypeTransform, &Transform{}); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEntityCreation, err)
	}

	// Subscribers observing addition must never see a half-built entity.
	w.sink.Raise(EntityAdded{Entity: e})

	if prototype != "" && w.loader != nil {
		if err := w.loader.LoadComponents(w, e, prototype); err != nil {
			if derr := w.Delete(e); derr != nil {
				w.log.Error("rollback delete failed",
					zap.String("entity", w.Describe(e)), zap.Error(derr))
			}
			return 0, fmt.Errorf("%w: prototype %q: %w", ErrEntityCreation, prototype, err)
		}
	}
	return e, nil
}

// Exists reports whether the entity is live (allocated and not yet deleted).
func (w *World) Exists(e EntityID) bool {
	_, ok := w.live[e]
	return ok
}

// LiveCount is the gauge readout: number of live entities.
func (w *World) LiveCount() int {
	return len(w.live)
}

// Meta resolves the entity's metadata component.
func (w *World) Meta(e EntityID) (*Metadata, error) {
	c, ok := w.store.TryGet(e, TypeMetadata)
	if !ok {
		return nil, fmt.Errorf("entity %d: %w", e, ErrUnknownID)
	}
	return c.(*Metadata), nil
}

// TransformOf resolves the entity's transform component.
func (w *World) TransformOf(e EntityID) (*Transform, error) {
	c, ok := w.store.TryGet(e, TypeTransform)
	if !ok {
		return nil, fmt.Errorf("entity %d: %w", e, ErrUnknownID)
	}
	return c.(*Transform), nil
}

// Init runs every component's init hook, dependencies first, then raises
// EntityInitialized. Hook failures abort creation: the entity is deleted and
// ErrEntityCreation returned.
func (w *World) Init(e EntityID) error {
	meta, err := w.Meta(e)
	if err != nil {
		return err
	}
	if meta.Stage != StageAllocated {
		return fmt.Errorf("init entity %d in stage %s: %w", e, meta.Stage, ErrInvalidTransition)
	}
	meta.Stage = StageInitializing
	for t, c := range w.store.InitOrder(e) {
		h, ok := c.(Initializer)
		if !ok {
			continue
		}
		if err := h.OnInit(e); err != nil {
			name := w.store.TypeName(t)
			if derr := w.Delete(e); derr != nil {
				w.log.Error("rollback delete failed",
					zap.String("entity", w.Describe(e)), zap.Error(derr))
			}
			return fmt.Errorf("%w: init %s: %w", ErrEntityCreation, name, err)
		}
	}
	meta.Stage = StageInitialized
	w.sink.Raise(EntityInitialized{Entity: e})
	return nil
}

// Start runs start hooks in init order and raises EntityStarted.
func (w *World) Start(e EntityID) error {
	meta, err := w.Meta(e)
	if err != nil {
		return err
	}
	if meta.Stage != StageInitialized {
		return fmt.Errorf("start entity %d in stage %s: %w", e, meta.Stage, ErrInvalidTransition)
	}
	meta.Stage = StageStarting
	for t, c := range w.store.InitOrder(e) {
		h, ok := c.(Starter)
		if !ok {
			continue
		}
		if err := h.OnStart(e); err != nil {
			name := w.store.TypeName(t)
			if derr := w.Delete(e); derr != nil {
				w.log.Error("rollback delete failed",
					zap.String("entity", w.Describe(e)), zap.Error(derr))
			}
			return fmt.Errorf("%w: start %s: %w", ErrEntityCreation, name, err)
		}
	}
	meta.Stage = StageStarted
	w.sink.Raise(EntityStarted{Entity: e})
	return nil
}

// RunMapInit raises the one-shot map init event to the entity only. Calling
// it on an already map-initialized entity is a no-op, not an error.
func (w *World) RunMapInit(e EntityID) error {
	meta, err := w.Meta(e)
	if err != nil {
		return err
	}
	if meta.Stage == StageMapInitialized {
		return nil
	}
	if meta.Stage != StageStarted {
		return fmt.Errorf("map-init entity %d in stage %s: %w", e, meta.Stage, ErrInvalidTransition)
	}
	meta.Stage = StageMapInitialized
	w.sink.RaiseLocal(e, EntityMapInit{Entity: e})
	return nil
}

// InitAndStart drives a fresh entity through Init and Start, then RunMapInit
// if the entity's map has already finished its own init.
func (w *World) InitAndStart(e EntityID, mapID int32) error {
	if err := w.Init(e); err != nil {
		return err
	}
	if err := w.Start(e); err != nil {
		return err
	}
	if w.maps != nil && w.maps.IsMapInitialized(mapID) {
		return w.RunMapInit(e)
	}
	return nil
}

// MarkDirty stamps the metadata's last-modified tick, at most once per tick,
// and raises EntityDirtied. Mutation during construction (Initializing and
// earlier) is not replication-relevant and is ignored.
func (w *World) MarkDirty(e EntityID) {
	meta, err := w.Meta(e)
	if err != nil {
		return
	}
	if meta.Stage < StageInitialized || meta.Stage >= StageTerminating {
		return
	}
	now := w.clock.Current()
	if meta.LastModified == now {
		return
	}
	meta.LastModified = now
	w.sink.Raise(EntityDirtied{Entity: e, Tick: now})
}

// SetPaused flips the metadata paused flag and reports it as a mutation.
func (w *World) SetPaused(e EntityID, paused bool) error {
	meta, err := w.Meta(e)
	if err != nil {
		return err
	}
	if meta.Paused == paused {
		return nil
	}
	meta.Paused = paused
	w.MarkDirty(e)
	return nil
}

// SetParent reparents child under parent (0 detaches to root). Both sides of
// the link change before any event fires, so handlers always see a
// consistent forest.
func (w *World) SetParent(child, parent EntityID) error {
	xf, err := w.TransformOf(child)
	if err != nil {
		return err
	}
	if parent == child {
		return fmt.Errorf("entity %d cannot parent itself: %w", child, ErrStructuralInconsistency)
	}
	if parent != 0 {
		if !w.Exists(parent) {
			return fmt.Errorf("parent %d: %w", parent, ErrUnknownID)
		}
		// Forest invariant: the new parent must not descend from the child.
		for a := parent; a != 0; {
			axf, err := w.TransformOf(a)
			if err != nil {
				return err
			}
			if axf.Parent == child {
				return fmt.Errorf("entity %d is an ancestor of %d: %w",
					child, parent, ErrStructuralInconsistency)
			}
			a = axf.Parent
		}
	}
	old := xf.Parent
	if old == parent {
		return nil
	}
	if old != 0 {
		if oxf, err := w.TransformOf(old); err == nil {
			oxf.removeChild(child)
		}
	}
	xf.Parent = parent
	if parent != 0 {
		pxf, _ := w.TransformOf(parent)
		pxf.addChild(child)
	}
	w.sink.RaiseLocal(child, EntityParentChanged{Entity: child, OldParent: old, NewParent: parent})
	w.MarkDirty(child)
	return nil
}

// QueueDelete marks the entity for the end-of-tick deletion drain. Repeat
// calls, and calls on dead entities, are no-ops; the queued notification
// fires exactly once.
func (w *World) QueueDelete(e EntityID) {
	if !w.Exists(e) {
		return
	}
	if _, ok := w.delQueued[e]; ok {
		return
	}
	w.delQueued[e] = struct{}{}
	w.delQueue = append(w.delQueue, e)
	w.sink.Raise(EntityQueuedForDeletion{Entity: e})
}

// DrainDeletions deletes everything queued this tick, in FIFO order, and
// clears the dedup set. Entities already torn down as descendants of an
// earlier queue entry are skipped. Returns how many entities were deleted
// directly (descendants not counted).
func (w *World) DrainDeletions() int {
	n := 0
	for _, e := range w.delQueue {
		if !w.Exists(e) {
			continue
		}
		if err := w.Delete(e); err != nil {
			w.log.Error("queued deletion failed",
				zap.String("entity", w.Describe(e)), zap.Error(err))
			continue
		}
		n++
	}
	w.delQueue = w.delQueue[:0]
	clear(w.delQueued)
	return n
}

// Delete tears down the entity and its transform subtree. Two phases: a
// pre-order flag walk marking every node Terminating (with the terminating
// notification), then a post-order delete walk. Deleting an entity that is
// already Terminating is programmer error; whether that is tolerated or hard
// depends on the strict flag.
func (w *World) Delete(e EntityID) error {
	meta, err := w.Meta(e)
	if err != nil {
		return err
	}
	if meta.Stage == StageTerminating {
		if w.strict {
			return fmt.Errorf("re-entrant delete of entity %d: %w", e, ErrInvalidTransition)
		}
		w.log.Error("re-entrant delete ignored", zap.String("entity", w.Describe(e)))
		return nil
	}
	if meta.Deleted {
		return fmt.Errorf("entity %d already deleted: %w", e, ErrUnknownID)
	}
	w.flagTermination(e)
	w.deleteRecursive(e)
	return nil
}

// flagTermination is the pre-order walk: mark Terminating, notify the
// entity, repair any child reference that points at an already-dead entity,
// recurse into the survivors.
func (w *World) flagTermination(e EntityID) {
	meta, err := w.Meta(e)
	if err != nil {
		return
	}
	meta.Stage = StageTerminating
	w.sink.RaiseLocal(e, EntityTerminating{Entity: e})

	xf, err := w.TransformOf(e)
	if err != nil {
		return
	}
	kept := xf.Children[:0]
	for _, c := range xf.Children {
		cm, ok := w.store.TryGet(c, TypeMetadata)
		if !ok || cm.(*Metadata).Deleted {
			// Defensive repair, not a sanctioned steady state.
			w.log.Error("dropping child reference to dead entity",
				zap.Uint64("parent", uint64(e)), zap.Uint64("child", uint64(c)),
				zap.Error(ErrStructuralInconsistency))
			continue
		}
		kept = append(kept, c)
		w.flagTermination(c)
	}
	xf.Children = kept
}

// deleteRecursive is the post-order walk. The node detaches its own parent
// link first so ancestor lookups stay valid while descendants go down, then
// children, then components in safe order, then the bookkeeping: deleted
// event with the final metadata snapshot, subscription drop, live-set
// removal, and the network binding released last of all.
func (w *World) deleteRecursive(e EntityID) {
	meta, err := w.Meta(e)
	if err != nil {
		return
	}
	xf, err := w.TransformOf(e)
	if err != nil {
		return
	}

	if xf.Parent != 0 {
		if pxf, perr := w.TransformOf(xf.Parent); perr == nil {
			pxf.removeChild(e)
		}
		xf.Parent = 0
	}

	for _, c := range slices.Clone(xf.Children) {
		if w.Exists(c) {
			w.deleteRecursive(c)
		}
	}
	xf.Children = nil

	for t, c := range w.store.All(e) {
		if t == TypeMetadata {
			continue
		}
		w.shutdownComponent(e, t, c)
		if err := w.store.Remove(e, t); err != nil {
			w.log.Error("component remove failed during delete",
				zap.String("entity", w.Describe(e)), zap.Error(err))
		}
	}

	meta.Stage = StageDeleted
	meta.Deleted = true
	snap := *meta
	if err := w.store.Remove(e, TypeMetadata); err != nil {
		w.log.Error("metadata remove failed during delete",
			zap.Uint64("entity", uint64(e)), zap.Error(err))
	}
	w.lastMeta[e] = snap

	w.sink.Raise(EntityDeleted{Entity: e, Meta: snap})
	w.sink.DropEntity(e)
	delete(w.live, e)
	w.alloc.Release(e)
}

// shutdownComponent runs a teardown hook with the tolerant policy: errors
// and panics are logged with full context and never stop the teardown.
func (w *World) shutdownComponent(e EntityID, t TypeID, c Component) {
	h, ok := c.(ShutdownHook)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("component shutdown panicked",
				zap.String("entity", w.Describe(e)),
				zap.String("component", w.store.TypeName(t)),
				zap.Any("panic", r))
		}
	}()
	if err := h.OnShutdown(e); err != nil {
		w.log.Error("component shutdown failed",
			zap.String("entity", w.Describe(e)),
			zap.String("component", w.store.TypeName(t)),
			zap.Error(err))
	}
}

// CullStale sweeps store rows belonging to dead entities. Run once per tick
// after the deletion drain; a nonzero count means something mutated the
// store behind the state machine's back.
func (w *World) CullStale() int {
	n := w.store.Cull(w.Exists)
	if n > 0 {
		w.log.Error("culled stale component rows",
			zap.Int("count", n), zap.Error(ErrStructuralInconsistency))
	}
	return n
}

// Describe renders a diagnostic string for the entity. Works for deleted
// entities too, off the last metadata snapshot.
func (w *World) Describe(e EntityID) string {
	meta, err := w.Meta(e)
	if err != nil {
		if snap, ok := w.lastMeta[e]; ok {
			meta = &snap
		} else {
			return fmt.Sprintf("entity %d (unknown)", e)
		}
	}
	name := meta.Name
	if name == "" {
		name = "unnamed"
	}
	s := fmt.Sprintf("entity %d %q stage=%s", e, name, meta.Stage)
	if meta.Prototype != "" {
		s += " proto=" + meta.Prototype
	}
	if n, err := w.alloc.NetworkByEntity(e); err == nil {
		s += fmt.Sprintf(" net=%d", n)
	}
	return s
}
