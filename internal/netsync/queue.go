package netsync

import (
	"container/heap"
	"reflect"
	"sync"

	"github.com/stationgo/server/internal/core/ecs"
	"go.uber.org/zap"
)

// Envelope is an inbound entity-mutation message with the ordering fields
// reconciliation needs. The queue owns it until dispatch.
type Envelope struct {
	SourceTick ecs.Tick
	Sequence   uint32
	Session    uint64
	Payload    any
}

// Connectivity reports whether a session's channel is still connected.
// Messages for disconnected sessions are dropped silently.
type Connectivity interface {
	Connected(session uint64) bool
}

// Queue buffers inbound messages whose source tick is ahead of the local
// clock and releases them in strict (tick, sequence) order once the clock
// catches up. Enqueue is mutex-guarded because the transport delivers off
// the simulation goroutine; dispatch happens only on the simulation
// goroutine.
type Queue struct {
	mu      sync.Mutex
	pending envHeap
	arrival uint64

	conn       Connectivity
	logLate    bool
	log        *zap.Logger
	watermarks map[uint64]uint32

	unscoped map[reflect.Type][]func(Envelope)
	scoped   map[uint64]map[reflect.Type][]func(Envelope)
}

func NewQueue(conn Connectivity, logLate bool, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		conn:       conn,
		logLate:    logLate,
		log:        log,
		watermarks: make(map[uint64]uint32, 64),
		unscoped:   make(map[reflect.Type][]func(Envelope), 16),
		scoped:     make(map[uint64]map[reflect.Type][]func(Envelope), 64),
	}
}

// OpenSession seeds the session's sequence watermark to zero.
func (q *Queue) OpenSession(session uint64) {
	q.mu.Lock()
	q.watermarks[session] = 0
	q.mu.Unlock()
}

// CloseSession removes the session's watermark and scoped subscribers.
func (q *Queue) CloseSession(session uint64) {
	q.mu.Lock()
	delete(q.watermarks, session)
	q.mu.Unlock()
	delete(q.scoped, session)
}

// Watermark returns the highest sequence processed for the session.
func (q *Queue) Watermark(session uint64) (uint32, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, ok := q.watermarks[session]
	return w, ok
}

// Subscribe registers an unscoped handler for payloads of type T.
func Subscribe[T any](q *Queue, fn func(Envelope)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	q.unscoped[t] = append(q.unscoped[t], fn)
}

// SubscribeSession registers a handler for payloads of type T arriving from
// one specific session. A dispatched message fans out to both sets.
func SubscribeSession[T any](q *Queue, session uint64, fn func(Envelope)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	m, ok := q.scoped[session]
	if !ok {
		m = make(map[reflect.Type][]func(Envelope), 4)
		q.scoped[session] = m
	}
	m[t] = append(m[t], fn)
}

// Deliver handles a message on the simulation goroutine: due messages
// dispatch immediately (logged as late when the source tick is strictly
// behind the clock, if configured), future messages are buffered.
func (q *Queue) Deliver(env Envelope, now ecs.Tick) {
	if env.SourceTick > now {
		q.Post(env)
		return
	}
	if env.SourceTick < now && q.logLate {
		q.log.Warn("late message dispatched",
			zap.Uint64("source_tick", uint64(env.SourceTick)),
			zap.Uint64("tick", uint64(now)),
			zap.Uint64("session", env.Session))
	}
	q.dispatch(env)
}

// Post buffers a message without dispatching. Safe to call from transport
// goroutines; the message is released by DrainUpTo on the simulation side.
func (q *Queue) Post(env Envelope) {
	q.mu.Lock()
	q.arrival++
	heap.Push(&q.pending, pendingEnv{env: env, arrival: q.arrival})
	q.mu.Unlock()
}

// DrainUpTo dispatches every buffered message with source tick ≤ now, in
// (tick, sequence) order, and returns the count dispatched.
func (q *Queue) DrainUpTo(now ecs.Tick) int {
	q.mu.Lock()
	due := make([]Envelope, 0, 8)
	for q.pending.Len() > 0 && q.pending[0].env.SourceTick <= now {
		due = append(due, heap.Pop(&q.pending).(pendingEnv).env)
	}
	q.mu.Unlock()

	for _, env := range due {
		q.dispatch(env)
	}
	return len(due)
}

// PendingLen reports how many messages are still buffered.
func (q *Queue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

func (q *Queue) dispatch(env Envelope) {
	if q.conn != nil && !q.conn.Connected(env.Session) {
		return
	}
	q.advanceWatermark(env)

	t := reflect.TypeOf(env.Payload)
	for _, fn := range q.unscoped[t] {
		fn(env)
	}
	if m, ok := q.scoped[env.Session]; ok {
		for _, fn := range m[t] {
			fn(env)
		}
	}
}

// advanceWatermark moves the per-session watermark forward only. An
// out-of-order message still dispatches but never moves it back.
func (q *Queue) advanceWatermark(env Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if w, ok := q.watermarks[env.Session]; ok && env.Sequence > w {
		q.watermarks[env.Session] = env.Sequence
	}
}

// pendingEnv orders the heap by (source tick, sequence), arrival order as
// the final tie-break so equal keys from different sessions stay stable.
type pendingEnv struct {
	env     Envelope
	arrival uint64
}

type envHeap []pendingEnv

func (h envHeap) Len() int { return len(h) }

func (h envHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.env.SourceTick != b.env.SourceTick {
		return a.env.SourceTick < b.env.SourceTick
	}
	if a.env.Sequence != b.env.Sequence {
		return a.env.Sequence < b.env.Sequence
	}
	return a.arrival < b.arrival
}

func (h envHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *envHeap) Push(x any) { *h = append(*h, x.(pendingEnv)) }

func (h *envHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
