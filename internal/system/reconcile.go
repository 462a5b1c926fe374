package system

import (
	"time"

	"github.com/stationgo/server/internal/core/ecs"
	coresys "github.com/stationgo/server/internal/core/system"
	"github.com/stationgo/server/internal/net"
	"github.com/stationgo/server/internal/netsync"
	"go.uber.org/zap"
)

// Transport is the slice of the hub the reconcile system needs.
type Transport interface {
	Poll(onOpen, onClose func(session uint64))
	DrainInbound(maxPerSession int, fn func(session uint64, frame []byte))
}

// ReconcileSystem runs at the input phase: adopt/reap sessions, decode
// inbound frames into envelopes, hand them to the reconciliation queue, and
// release everything due at the current tick.
type ReconcileSystem struct {
	hub           Transport
	reg           *net.Registry
	queue         *netsync.Queue
	clock         *coresys.Clock
	maxPerSession int
	log           *zap.Logger
}

func NewReconcileSystem(hub Transport, reg *net.Registry, queue *netsync.Queue, clock *coresys.Clock, maxPerSession int, log *zap.Logger) *ReconcileSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconcileSystem{
		hub:           hub,
		reg:           reg,
		queue:         queue,
		clock:         clock,
		maxPerSession: maxPerSession,
		log:           log,
	}
}

func (s *ReconcileSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *ReconcileSystem) Update(_ time.Duration) {
	now := s.clock.Current()
	if s.hub != nil {
		s.hub.Poll(s.queue.OpenSession, s.queue.CloseSession)
		s.hub.DrainInbound(s.maxPerSession, func(session uint64, frame []byte) {
			h, payload, err := net.DecodeEnvelope(frame)
			if err != nil {
				s.log.Warn("bad envelope", zap.Uint64("session", session), zap.Error(err))
				return
			}
			msg, err := s.reg.Decode(h.MsgType, payload)
			if err != nil {
				s.log.Debug("dropping undecodable message",
					zap.Uint64("session", session), zap.Error(err))
				return
			}
			s.queue.Deliver(netsync.Envelope{
				SourceTick: ecs.Tick(h.SourceTick),
				Sequence:   h.Sequence,
				Session:    session,
				Payload:    msg,
			}, now)
		})
	}
	s.queue.DrainUpTo(now)
}
