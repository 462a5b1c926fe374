package handler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/stationgo/server/internal/core/ecs"
	"github.com/stationgo/server/internal/net"
	"github.com/stationgo/server/internal/netsync"
	"go.uber.org/zap"
)

// Entity-mutation message surface. Payloads address entities by network id;
// the handlers resolve to local ids, apply the mutation through the
// lifecycle contracts, and stamp the dirty tick for replication.

const (
	MsgSetPosition uint16 = 1
	MsgSetName     uint16 = 2
	MsgQueueDelete uint16 = 3
)

type SetPosition struct {
	Net  ecs.NetworkID
	X, Y float64
}

type SetName struct {
	Net  ecs.NetworkID
	Name string
}

type QueueDelete struct {
	Net ecs.NetworkID
}

// RegisterAll wires decoders into the message registry and appliers into the
// reconciliation queue's unscoped subscriber set.
func RegisterAll(reg *net.Registry, q *netsync.Queue, w *ecs.World, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}

	reg.Register(MsgSetPosition, decodeSetPosition)
	reg.Register(MsgSetName, decodeSetName)
	reg.Register(MsgQueueDelete, decodeQueueDelete)

	netsync.Subscribe[SetPosition](q, func(env netsync.Envelope) {
		m := env.Payload.(SetPosition)
		e, err := w.Allocator().EntityByNetwork(m.Net)
		if err != nil {
			logStale(log, "set_position", err)
			return
		}
		xf, err := w.TransformOf(e)
		if err != nil {
			return
		}
		xf.LocalX, xf.LocalY = m.X, m.Y
		w.MarkDirty(e)
	})

	netsync.Subscribe[SetName](q, func(env netsync.Envelope) {
		m := env.Payload.(SetName)
		e, err := w.Allocator().EntityByNetwork(m.Net)
		if err != nil {
			logStale(log, "set_name", err)
			return
		}
		meta, err := w.Meta(e)
		if err != nil {
			return
		}
		meta.Name = m.Name
		w.MarkDirty(e)
	})

	netsync.Subscribe[QueueDelete](q, func(env netsync.Envelope) {
		m := env.Payload.(QueueDelete)
		e, err := w.Allocator().EntityByNetwork(m.Net)
		if err != nil {
			logStale(log, "queue_delete", err)
			return
		}
		w.QueueDelete(e)
	})
}

// logStale notes a mutation that raced an entity's deletion. Expected under
// latency, so debug level.
func logStale(log *zap.Logger, msg string, err error) {
	if errors.Is(err, ecs.ErrUnknownID) {
		log.Debug("mutation for unknown network id", zap.String("message", msg), zap.Error(err))
		return
	}
	log.Warn("mutation failed", zap.String("message", msg), zap.Error(err))
}

func decodeSetPosition(payload []byte) (any, error) {
	if len(payload) != 20 {
		return nil, fmt.Errorf("set_position: want 20 bytes, got %d", len(payload))
	}
	return SetPosition{
		Net: ecs.NetworkID(binary.LittleEndian.Uint32(payload[0:4])),
		X:   math.Float64frombits(binary.LittleEndian.Uint64(payload[4:12])),
		Y:   math.Float64frombits(binary.LittleEndian.Uint64(payload[12:20])),
	}, nil
}

func decodeSetName(payload []byte) (any, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("set_name: short payload %d", len(payload))
	}
	return SetName{
		Net:  ecs.NetworkID(binary.LittleEndian.Uint32(payload[0:4])),
		Name: string(payload[4:]),
	}, nil
}

func decodeQueueDelete(payload []byte) (any, error) {
	if len(payload) != 4 {
		return nil, fmt.Errorf("queue_delete: want 4 bytes, got %d", len(payload))
	}
	return QueueDelete{Net: ecs.NetworkID(binary.LittleEndian.Uint32(payload[0:4]))}, nil
}
