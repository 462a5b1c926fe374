package net

import (
	"fmt"

	"go.uber.org/zap"
)

// Hub is the game loop's view of the transport: session bookkeeping,
// inbound frame draining, connectivity answers, and the outbound
// SendToAll/SendToOne surface. Game loop only, except where noted on
// Session.
type Hub struct {
	srv      *Server
	sessions map[uint64]*Session
	log      *zap.Logger
}

func NewHub(srv *Server, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		srv:      srv,
		sessions: make(map[uint64]*Session, 64),
		log:      log,
	}
}

// Poll adopts new sessions and reaps dead ones, invoking the callbacks so
// the reconciliation layer can seed and drop sequence watermarks.
func (h *Hub) Poll(onOpen, onClose func(session uint64)) {
	if h.srv == nil {
		return
	}
	for {
		select {
		case sess := <-h.srv.NewSessions():
			h.sessions[sess.ID] = sess
			if onOpen != nil {
				onOpen(sess.ID)
			}
		case id := <-h.srv.DeadSessions():
			delete(h.sessions, id)
			if onClose != nil {
				onClose(id)
			}
		default:
			return
		}
	}
}

// Connected implements netsync.Connectivity.
func (h *Hub) Connected(session uint64) bool {
	s, ok := h.sessions[session]
	return ok && s.Connected()
}

// DrainInbound pulls at most maxPerSession frames from each session's in
// queue and hands them to fn.
func (h *Hub) DrainInbound(maxPerSession int, fn func(session uint64, frame []byte)) {
	for id, sess := range h.sessions {
	drain:
		for i := 0; i < maxPerSession; i++ {
			select {
			case frame := <-sess.InQueue:
				fn(id, frame)
			default:
				break drain
			}
		}
	}
}

// SendToOne buffers an outbound frame for one session.
func (h *Hub) SendToOne(session uint64, frame []byte) error {
	s, ok := h.sessions[session]
	if !ok {
		return fmt.Errorf("session %d not connected", session)
	}
	s.Send(frame)
	return nil
}

// SendToAll buffers an outbound frame for every connected session.
func (h *Hub) SendToAll(frame []byte) {
	for _, s := range h.sessions {
		s.Send(frame)
	}
}

// Flush pushes buffered outbound frames to the writer goroutines. Output
// phase, once per tick.
func (h *Hub) Flush() {
	for _, s := range h.sessions {
		s.FlushOutput()
	}
}

// CloseAll disconnects every session, for shutdown.
func (h *Hub) CloseAll() {
	for _, s := range h.sessions {
		s.Close()
	}
}
