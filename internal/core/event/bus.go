package event

import (
	"fmt"
	"reflect"

	"github.com/stationgo/server/internal/core/ecs"
	"go.uber.org/zap"
)

// Bus is the in-process pub/sub hub. Dispatch is synchronous and
// single-threaded (game loop only); Queue defers delivery to the next tick
// boundary. Handlers are stored as func(any) adapters built by the generic
// Subscribe helpers, so dispatch never touches reflect.Call.
type Bus struct {
	log      *zap.Logger
	describe func(ecs.EntityID) string

	seq     int
	global  map[reflect.Type][]*handler
	local   map[ecs.EntityID]map[reflect.Type][]*handler
	present map[ecs.TypeID]map[ecs.EntityID]struct{}
	queue   []queuedEvent
}

type handler struct {
	label  string
	before []string
	after  []string
	seq    int
	gate   func(e ecs.EntityID) bool
	fn     func(any)
}

type queuedEvent struct {
	entity ecs.EntityID
	local  bool
	ev     any
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		log:     log,
		global:  make(map[reflect.Type][]*handler, 32),
		local:   make(map[ecs.EntityID]map[reflect.Type][]*handler, 256),
		present: make(map[ecs.TypeID]map[ecs.EntityID]struct{}, 16),
		queue:   make([]queuedEvent, 0, 128),
	}
}

// SetDescriber installs the entity-to-string resolver used when logging
// handler failures. Normally wired to World.Describe.
func (b *Bus) SetDescriber(fn func(ecs.EntityID) string) {
	b.describe = fn
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func adapt[T any](fn func(T)) func(any) {
	return func(ev any) { fn(ev.(T)) }
}

// Subscribe registers a global handler for events of type T. Handlers fire
// in subscription order (or the computed order, see CalcOrdering).
func Subscribe[T any](b *Bus, fn func(T)) {
	b.add(typeKey[T](), &handler{fn: adapt(fn)})
}

// SubscribeOrdered registers a global handler with a label and declared
// before/after constraints against other labels of the same event type.
// CalcOrdering resolves the constraints once at startup.
func SubscribeOrdered[T any](b *Bus, label string, before, after []string, fn func(T)) {
	b.add(typeKey[T](), &handler{label: label, before: before, after: after, fn: adapt(fn)})
}

// SubscribeLocal registers a handler scoped to one entity. Local handlers
// run before global ones and are dropped when the entity is deleted.
func SubscribeLocal[T any](b *Bus, e ecs.EntityID, fn func(T)) {
	t := typeKey[T]()
	m, ok := b.local[e]
	if !ok {
		m = make(map[reflect.Type][]*handler, 4)
		b.local[e] = m
	}
	b.seq++
	m[t] = append(m[t], &handler{seq: b.seq, fn: adapt(fn)})
}

// SubscribeComponent registers a global handler that only fires for local
// events whose source entity currently carries the given component type,
// using the per-type index maintained by the store's change hook.
func SubscribeComponent[T any](b *Bus, comp ecs.TypeID, fn func(T)) {
	b.add(typeKey[T](), &handler{
		gate: func(e ecs.EntityID) bool {
			if e == 0 {
				return false
			}
			_, ok := b.present[comp][e]
			return ok
		},
		fn: adapt(fn),
	})
}

func (b *Bus) add(t reflect.Type, h *handler) {
	b.seq++
	h.seq = b.seq
	b.global[t] = append(b.global[t], h)
}

// OnComponentChanged is the store change hook: it keeps the per-type entity
// index current and queues the component add/remove notifications for the
// next tick boundary.
func (b *Bus) OnComponentChanged(e ecs.EntityID, t ecs.TypeID, added bool) {
	if added {
		set, ok := b.present[t]
		if !ok {
			set = make(map[ecs.EntityID]struct{}, 256)
			b.present[t] = set
		}
		set[e] = struct{}{}
		b.QueueLocal(e, ecs.ComponentAdded{Entity: e, Type: t})
		return
	}
	delete(b.present[t], e)
	b.QueueLocal(e, ecs.ComponentRemoved{Entity: e, Type: t})
}

// Raise dispatches synchronously to global subscribers.
func (b *Bus) Raise(ev any) {
	b.dispatch(0, ev, b.global[reflect.TypeOf(ev)])
}

// RaiseLocal dispatches to the entity's subscribers first, then global
// subscribers, each set in order.
func (b *Bus) RaiseLocal(e ecs.EntityID, ev any) {
	t := reflect.TypeOf(ev)
	if m, ok := b.local[e]; ok {
		b.dispatch(e, ev, m[t])
	}
	b.dispatch(e, ev, b.global[t])
}

// Queue defers a global event to the next DispatchQueued.
func (b *Bus) Queue(ev any) {
	b.queue = append(b.queue, queuedEvent{ev: ev})
}

// QueueLocal defers an entity-scoped event to the next DispatchQueued.
func (b *Bus) QueueLocal(e ecs.EntityID, ev any) {
	b.queue = append(b.queue, queuedEvent{entity: e, local: true, ev: ev})
}

// DispatchQueued drains the deferred queue, including events queued by the
// handlers it runs, and returns how many events were delivered.
func (b *Bus) DispatchQueued() int {
	n := 0
	for len(b.queue) > 0 {
		batch := b.queue
		b.queue = make([]queuedEvent, 0, 32)
		for _, q := range batch {
			if q.local {
				b.RaiseLocal(q.entity, q.ev)
			} else {
				b.Raise(q.ev)
			}
			n++
		}
	}
	return n
}

// DropEntity discards the entity's local subscriptions. Called by the world
// after the deleted notification has fired.
func (b *Bus) DropEntity(e ecs.EntityID) {
	delete(b.local, e)
}

func (b *Bus) dispatch(e ecs.EntityID, ev any, hs []*handler) {
	for _, h := range hs {
		if h.gate != nil && !h.gate(e) {
			continue
		}
		b.call(e, ev, h)
	}
}

// call isolates one handler: a panic is recovered and logged with the source
// entity's descriptive string, and the remaining handlers still run.
func (b *Bus) call(e ecs.EntityID, ev any, h *handler) {
	defer func() {
		if r := recover(); r != nil {
			src := fmt.Sprintf("entity %d", e)
			if b.describe != nil {
				src = b.describe(e)
			}
			b.log.Error("event handler panicked",
				zap.String("event", reflect.TypeOf(ev).String()),
				zap.String("source", src),
				zap.Any("panic", r))
		}
	}()
	h.fn(ev)
}
