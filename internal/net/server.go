package net

import (
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Server accepts TCP connections and creates sessions. New and dead
// sessions reach the game loop through channels drained once per tick.
type Server struct {
	listener     net.Listener
	nextID       atomic.Uint64
	newConns     chan *Session
	deadCh       chan uint64
	inSize       int
	outSize      int
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          *zap.Logger
	closeCh      chan struct{}
}

func NewServer(bindAddr string, inSize, outSize int, readTimeout, writeTimeout time.Duration, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:     ln,
		newConns:     make(chan *Session, 64),
		deadCh:       make(chan uint64, 64),
		inSize:       inSize,
		outSize:      outSize,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		log:          log,
		closeCh:      make(chan struct{}),
	}, nil
}

// AcceptLoop runs in its own goroutine.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.inSize, s.outSize, s.readTimeout, s.writeTimeout, s.log)
		sess.Start(s.notifyDead)
		s.log.Info("session connected", zap.Uint64("session", id), zap.String("ip", sess.IP))

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("new connection queue full, rejecting", zap.Uint64("session", id))
			sess.Close()
		}
	}
}

func (s *Server) notifyDead(id uint64) {
	select {
	case s.deadCh <- id:
	default:
	}
}

// NewSessions is the channel of freshly connected sessions.
func (s *Server) NewSessions() <-chan *Session { return s.newConns }

// DeadSessions is the channel of ids whose connection dropped.
func (s *Server) DeadSessions() <-chan uint64 { return s.deadCh }

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
