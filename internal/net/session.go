package net

import (
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Session is one client connection. The read and write loops run in their
// own goroutines; everything else touches the session only from the game
// loop. Inbound frames are handed to the game loop through InQueue, which
// is the only cross-thread boundary.
type Session struct {
	ID   uint64
	conn net.Conn

	InQueue  chan []byte // game loop drains raw frames from here
	OutQueue chan []byte // writer goroutine drains from here

	IP     string
	outBuf [][]byte // game-loop-only buffer, drained by FlushOutput

	readTimeout  time.Duration
	writeTimeout time.Duration

	onDead    func(id uint64)
	closeCh   chan struct{}
	closeOnce func()
	closed    atomic.Bool

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, inSize, outSize int, readTimeout, writeTimeout time.Duration, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		conn:         conn,
		InQueue:      make(chan []byte, inSize),
		OutQueue:     make(chan []byte, outSize),
		IP:           conn.RemoteAddr().String(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
	var once atomic.Bool
	s.closeOnce = func() {
		if once.CompareAndSwap(false, true) {
			s.closed.Store(true)
			close(s.closeCh)
			s.conn.Close()
			if s.onDead != nil {
				s.onDead(s.ID)
			}
		}
	}
	return s
}

// Start launches the reader and writer goroutines.
func (s *Session) Start(onDead func(id uint64)) {
	s.onDead = onDead
	go s.readLoop()
	go s.writeLoop()
}

// Connected reports whether the session's channel is still up.
func (s *Session) Connected() bool {
	return !s.closed.Load()
}

// Send buffers a frame; nothing hits TCP until FlushOutput runs at the
// output phase. Game loop only.
func (s *Session) Send(frame []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, frame)
}

// FlushOutput moves buffered frames to the writer goroutine. Non-blocking:
// a full OutQueue disconnects the session (backpressure).
func (s *Session) FlushOutput() {
	for _, frame := range s.outBuf {
		if s.closed.Load() {
			break
		}
		select {
		case s.OutQueue <- frame:
		default:
			s.log.Warn("out queue full, disconnecting")
			s.Close()
		}
	}
	s.outBuf = s.outBuf[:0]
}

func (s *Session) Close() {
	s.closeOnce()
}

func (s *Session) readLoop() {
	defer s.Close()
	for {
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		frame, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read loop ended", zap.Error(err))
			}
			return
		}
		select {
		case s.InQueue <- frame:
		case <-s.closeCh:
			return
		default:
			s.log.Warn("in queue full, dropping frame")
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()
	for {
		select {
		case frame := <-s.OutQueue:
			if s.writeTimeout > 0 {
				s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if err := WriteFrame(s.conn, frame); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write loop ended", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
