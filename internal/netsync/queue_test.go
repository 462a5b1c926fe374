package netsync_test

import (
	"testing"

	"github.com/stationgo/server/internal/netsync"
)

type moveMsg struct {
	X int
}

type chatMsg struct{}

type connStub struct {
	down map[uint64]bool
}

func (c *connStub) Connected(session uint64) bool {
	if c == nil {
		return true
	}
	return !c.down[session]
}

func TestFutureMessageHeldUntilClockCatchesUp(t *testing.T) {
	q := netsync.NewQueue(nil, false, nil)
	q.OpenSession(1)
	var got []netsync.Envelope
	netsync.Subscribe[moveMsg](q, func(env netsync.Envelope) { got = append(got, env) })

	q.Deliver(netsync.Envelope{SourceTick: 10, Sequence: 1, Session: 1, Payload: moveMsg{}}, 8)
	if len(got) != 0 {
		t.Fatal("future message dispatched early")
	}
	if q.DrainUpTo(9) != 0 {
		t.Fatal("released at tick 9")
	}
	if q.DrainUpTo(10) != 1 {
		t.Fatal("not released at tick 10")
	}
	if q.DrainUpTo(11) != 0 {
		t.Fatal("redispatched at tick 11")
	}
	if len(got) != 1 {
		t.Fatalf("dispatched %d times", len(got))
	}
}

func TestEqualTickDispatchesImmediately(t *testing.T) {
	q := netsync.NewQueue(nil, false, nil)
	q.OpenSession(1)
	fired := 0
	netsync.Subscribe[moveMsg](q, func(netsync.Envelope) { fired++ })

	q.Deliver(netsync.Envelope{SourceTick: 5, Sequence: 1, Session: 1, Payload: moveMsg{}}, 5)
	if fired != 1 {
		t.Fatalf("equal-tick message fired %d times", fired)
	}
	// Strictly late messages also dispatch immediately.
	q.Deliver(netsync.Envelope{SourceTick: 3, Sequence: 2, Session: 1, Payload: moveMsg{}}, 5)
	if fired != 2 {
		t.Fatalf("late message fired %d times", fired)
	}
}

func TestDrainOrderIsTickThenSequence(t *testing.T) {
	q := netsync.NewQueue(nil, false, nil)
	q.OpenSession(1)
	var got []netsync.Envelope
	netsync.Subscribe[moveMsg](q, func(env netsync.Envelope) { got = append(got, env) })

	q.Post(netsync.Envelope{SourceTick: 12, Sequence: 2, Session: 1, Payload: moveMsg{}})
	q.Post(netsync.Envelope{SourceTick: 11, Sequence: 9, Session: 1, Payload: moveMsg{}})
	q.Post(netsync.Envelope{SourceTick: 12, Sequence: 1, Session: 1, Payload: moveMsg{}})
	q.Post(netsync.Envelope{SourceTick: 11, Sequence: 3, Session: 1, Payload: moveMsg{}})

	q.DrainUpTo(12)
	want := [][2]uint64{{11, 3}, {11, 9}, {12, 1}, {12, 2}}
	if len(got) != len(want) {
		t.Fatalf("dispatched %d messages", len(got))
	}
	for i, env := range got {
		if uint64(env.SourceTick) != want[i][0] || uint64(env.Sequence) != want[i][1] {
			t.Fatalf("order[%d] = (%d,%d), want (%d,%d)",
				i, env.SourceTick, env.Sequence, want[i][0], want[i][1])
		}
	}
}

func TestWatermarkNeverDecreases(t *testing.T) {
	q := netsync.NewQueue(nil, false, nil)
	q.OpenSession(7)
	dispatched := 0
	netsync.Subscribe[moveMsg](q, func(netsync.Envelope) { dispatched++ })

	if w, ok := q.Watermark(7); !ok || w != 0 {
		t.Fatalf("fresh watermark = %d, %v", w, ok)
	}
	q.Deliver(netsync.Envelope{SourceTick: 1, Sequence: 5, Session: 7, Payload: moveMsg{}}, 1)
	q.Deliver(netsync.Envelope{SourceTick: 1, Sequence: 3, Session: 7, Payload: moveMsg{}}, 1)
	if dispatched != 2 {
		t.Fatalf("dispatched %d messages, want 2", dispatched)
	}
	if w, _ := q.Watermark(7); w != 5 {
		t.Fatalf("watermark = %d, want 5", w)
	}
}

func TestCloseSessionRemovesWatermark(t *testing.T) {
	q := netsync.NewQueue(nil, false, nil)
	q.OpenSession(7)
	q.CloseSession(7)
	if _, ok := q.Watermark(7); ok {
		t.Fatal("watermark survived disconnect")
	}
}

func TestDisconnectedSessionDroppedSilently(t *testing.T) {
	conn := &connStub{down: map[uint64]bool{2: true}}
	q := netsync.NewQueue(conn, false, nil)
	q.OpenSession(1)
	q.OpenSession(2)
	fired := 0
	netsync.Subscribe[moveMsg](q, func(netsync.Envelope) { fired++ })

	q.Deliver(netsync.Envelope{SourceTick: 1, Sequence: 1, Session: 2, Payload: moveMsg{}}, 1)
	if fired != 0 {
		t.Fatal("message for disconnected session dispatched")
	}

	// Disconnect while buffered also drops.
	q.Post(netsync.Envelope{SourceTick: 9, Sequence: 1, Session: 1, Payload: moveMsg{}})
	conn.down[1] = true
	q.DrainUpTo(9)
	if fired != 0 {
		t.Fatal("buffered message for disconnected session dispatched")
	}
}

func TestFanOutToUnscopedAndSessionScoped(t *testing.T) {
	q := netsync.NewQueue(nil, false, nil)
	q.OpenSession(1)
	q.OpenSession(2)
	unscoped, mine, theirs := 0, 0, 0
	netsync.Subscribe[moveMsg](q, func(netsync.Envelope) { unscoped++ })
	netsync.SubscribeSession[moveMsg](q, 1, func(netsync.Envelope) { mine++ })
	netsync.SubscribeSession[moveMsg](q, 2, func(netsync.Envelope) { theirs++ })

	q.Deliver(netsync.Envelope{SourceTick: 1, Sequence: 1, Session: 1, Payload: moveMsg{}}, 1)
	if unscoped != 1 || mine != 1 || theirs != 0 {
		t.Fatalf("fan-out = (%d unscoped, %d session1, %d session2)", unscoped, mine, theirs)
	}
}

func TestPayloadTypeRouting(t *testing.T) {
	q := netsync.NewQueue(nil, false, nil)
	q.OpenSession(1)
	moves, chats := 0, 0
	netsync.Subscribe[moveMsg](q, func(netsync.Envelope) { moves++ })
	netsync.Subscribe[chatMsg](q, func(netsync.Envelope) { chats++ })

	q.Deliver(netsync.Envelope{SourceTick: 1, Sequence: 1, Session: 1, Payload: chatMsg{}}, 1)
	if moves != 0 || chats != 1 {
		t.Fatalf("routing = (%d moves, %d chats)", moves, chats)
	}
}
