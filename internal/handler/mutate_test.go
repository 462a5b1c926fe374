package handler_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stationgo/server/internal/core/ecs"
	"github.com/stationgo/server/internal/handler"
	"github.com/stationgo/server/internal/net"
	"github.com/stationgo/server/internal/netsync"
)

type tickAt struct {
	t ecs.Tick
}

func (c *tickAt) Current() ecs.Tick { return c.t }

type fixture struct {
	clock *tickAt
	world *ecs.World
	queue *netsync.Queue
	reg   *net.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock: &tickAt{t: 5},
		queue: netsync.NewQueue(nil, false, nil),
		reg:   net.NewRegistry(nil),
	}
	f.world = ecs.NewWorld(f.clock, nil, false, nil)
	handler.RegisterAll(f.reg, f.queue, f.world, nil)
	return f
}

// spawn allocates a started entity and returns it with its network id.
func (f *fixture) spawn(t *testing.T) (ecs.EntityID, ecs.NetworkID) {
	t.Helper()
	e, err := f.world.Alloc("")
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := f.world.Init(e); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := f.world.Start(e); err != nil {
		t.Fatalf("start: %v", err)
	}
	n, err := f.world.Allocator().NetworkByEntity(e)
	if err != nil {
		t.Fatalf("network id: %v", err)
	}
	return e, n
}

// decodeAndDeliver runs the full inbound path: registry decode, then queue
// dispatch at the current tick.
func (f *fixture) decodeAndDeliver(t *testing.T, msgType uint16, seq uint32, payload []byte) {
	t.Helper()
	v, err := f.reg.Decode(msgType, payload)
	if err != nil {
		t.Fatalf("decode type %d: %v", msgType, err)
	}
	f.queue.Deliver(netsync.Envelope{
		SourceTick: f.clock.t,
		Sequence:   seq,
		Session:    1,
		Payload:    v,
	}, f.clock.t)
}

func setPositionPayload(n ecs.NetworkID, x, y float64) []byte {
	p := make([]byte, 20)
	binary.LittleEndian.PutUint32(p[0:4], uint32(n))
	binary.LittleEndian.PutUint64(p[4:12], math.Float64bits(x))
	binary.LittleEndian.PutUint64(p[12:20], math.Float64bits(y))
	return p
}

func setNamePayload(n ecs.NetworkID, name string) []byte {
	p := make([]byte, 4+len(name))
	binary.LittleEndian.PutUint32(p[0:4], uint32(n))
	copy(p[4:], name)
	return p
}

func queueDeletePayload(n ecs.NetworkID) []byte {
	p := make([]byte, 4)
	binary.LittleEndian.PutUint32(p, uint32(n))
	return p
}

func TestSetPositionMovesAndDirties(t *testing.T) {
	f := newFixture(t)
	e, n := f.spawn(t)

	f.decodeAndDeliver(t, handler.MsgSetPosition, 1, setPositionPayload(n, 3.5, -7.25))

	xf, err := f.world.TransformOf(e)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if xf.LocalX != 3.5 || xf.LocalY != -7.25 {
		t.Fatalf("position = (%v, %v)", xf.LocalX, xf.LocalY)
	}
	meta, _ := f.world.Meta(e)
	if meta.LastModified != f.clock.t {
		t.Fatalf("last modified = %d, want %d", meta.LastModified, f.clock.t)
	}
}

func TestSetNameUpdatesMetadata(t *testing.T) {
	f := newFixture(t)
	e, n := f.spawn(t)

	f.decodeAndDeliver(t, handler.MsgSetName, 1, setNamePayload(n, "Airlock"))

	meta, err := f.world.Meta(e)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Name != "Airlock" {
		t.Fatalf("name = %q", meta.Name)
	}
	if meta.LastModified != f.clock.t {
		t.Fatalf("last modified = %d", meta.LastModified)
	}
}

func TestQueueDeleteDefersToDrain(t *testing.T) {
	f := newFixture(t)
	e, n := f.spawn(t)

	f.decodeAndDeliver(t, handler.MsgQueueDelete, 1, queueDeletePayload(n))

	// Deletion is deferred to the cleanup drain, not applied inline.
	if !f.world.Exists(e) {
		t.Fatal("entity deleted before drain")
	}
	if got := f.world.DrainDeletions(); got != 1 {
		t.Fatalf("drained %d", got)
	}
	if f.world.Exists(e) {
		t.Fatal("entity survived drain")
	}
	if _, err := f.world.Allocator().EntityByNetwork(n); err == nil {
		t.Fatal("network id still bound after delete")
	}
}

func TestMutationForReleasedNetworkIDIsDropped(t *testing.T) {
	f := newFixture(t)
	e, n := f.spawn(t)
	if err := f.world.Delete(e); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Must not panic or resurrect anything.
	f.decodeAndDeliver(t, handler.MsgSetPosition, 2, setPositionPayload(n, 1, 1))
	if f.world.LiveCount() != 0 {
		t.Fatalf("live = %d", f.world.LiveCount())
	}
}

func TestFutureMutationAppliesAfterDrain(t *testing.T) {
	f := newFixture(t)
	e, n := f.spawn(t)

	v, err := f.reg.Decode(handler.MsgSetPosition, setPositionPayload(n, 9, 9))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	f.queue.Deliver(netsync.Envelope{SourceTick: 8, Sequence: 1, Session: 1, Payload: v}, f.clock.t)

	xf, _ := f.world.TransformOf(e)
	if xf.LocalX != 0 {
		t.Fatal("future mutation applied early")
	}

	f.clock.t = 8
	if got := f.queue.DrainUpTo(f.clock.t); got != 1 {
		t.Fatalf("drained %d", got)
	}
	if xf.LocalX != 9 || xf.LocalY != 9 {
		t.Fatalf("position = (%v, %v)", xf.LocalX, xf.LocalY)
	}
	meta, _ := f.world.Meta(e)
	if meta.LastModified != 8 {
		t.Fatalf("last modified = %d", meta.LastModified)
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	f := newFixture(t)
	if _, err := f.reg.Decode(handler.MsgSetPosition, []byte{1, 2, 3}); err == nil {
		t.Fatal("short set_position accepted")
	}
	if _, err := f.reg.Decode(handler.MsgSetName, []byte{1}); err == nil {
		t.Fatal("short set_name accepted")
	}
	if _, err := f.reg.Decode(handler.MsgQueueDelete, make([]byte, 8)); err == nil {
		t.Fatal("oversized queue_delete accepted")
	}
}
