package rpcnet

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/burgrp-go/meshbridge/pkg/actorkit"
	"github.com/burgrp-go/meshbridge/pkg/bridge"
)

// RequestHandler receives one decoded RPC request tagged with the
// SessionID of the connection it arrived on. The RPC Router implements
// this.
type RequestHandler interface {
	HandleRequest(ctx context.Context, sessionID uint64, origin net.Addr, req request) error
}

// Session owns the TCP listener for its entire lifetime (spec §4.4). It
// accepts client connections, assigns each a SessionID, decodes
// newline-delimited JSON requests and writes back JSON responses
// addressed by SessionID.
type Session struct {
	listener net.Listener
	handler  RequestHandler
	log      *zap.Logger
	attempts int

	nextID uint64

	mu    sync.Mutex
	conns map[uint64]net.Conn

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSession starts accepting connections on listener. handler is
// typically set after construction via SetHandler (the RPC Router),
// mirroring the P2P Session/Router registration handshake.
func NewSession(listener net.Listener, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		listener: listener,
		log:      log,
		attempts: actorkit.DefaultTimes,
		conns:    make(map[uint64]net.Conn),
		stop:     make(chan struct{}),
	}
	go s.acceptLoop()
	return s
}

// SetHandler wires the Session's inbound requests to handler.
func (s *Session) SetHandler(handler RequestHandler) {
	s.handler = handler
}

func (s *Session) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				s.log.Debug("rpcnet: accept failed", zap.Error(err))
				return
			}
		}

		sessionID := atomic.AddUint64(&s.nextID, 1)
		s.mu.Lock()
		s.conns[sessionID] = conn
		s.mu.Unlock()

		go s.readConn(sessionID, conn)
	}
}

func (s *Session) readConn(sessionID uint64, conn net.Conn) {
	defer s.closeConn(sessionID)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.log.Debug("rpcnet: malformed request, dropping connection", zap.Error(err))
			return
		}

		if s.handler == nil {
			continue
		}

		ctx := context.Background()
		origin := conn.RemoteAddr()
		err := actorkit.SendWithRetry(ctx, s.attempts, func() error {
			return s.handler.HandleRequest(ctx, sessionID, origin, req)
		})
		if err != nil {
			s.log.Debug("rpcnet: request delivery to router failed, dropping",
				zap.Uint64("session", sessionID), zap.Error(err))
		}
	}
}

func (s *Session) closeConn(sessionID uint64) {
	s.mu.Lock()
	conn, ok := s.conns[sessionID]
	delete(s.conns, sessionID)
	s.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// WriteResponse delivers resp, newline-terminated, to the connection
// identified by sessionID. A session that has since disconnected is a
// silent no-op (spec §4.4 routes responses "back to the issuing
// session"; a vanished session has nowhere to deliver to).
func (s *Session) WriteResponse(sessionID uint64, resp response) error {
	s.mu.Lock()
	conn, ok := s.conns[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')
	_, err = conn.Write(encoded)
	return err
}

// ErrHandlerBusy aliases the bridge-level transient delivery error so
// rpcnet consumers need not import actorkit directly.
var ErrHandlerBusy = bridge.ErrHandlerBusy

// Close stops accepting connections and closes every open client
// connection.
func (s *Session) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	err := s.listener.Close()

	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.conns = make(map[uint64]net.Conn)
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	return err
}
