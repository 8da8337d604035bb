// Package p2pnet implements the P2P Session and P2P Router: the
// exclusive owner of the UDP socket, outbound chunking with a FIFO
// backlog, and per-peer overlay state machine (spec §4.2, §4.3).
package p2pnet

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/burgrp-go/meshbridge/pkg/actorkit"
	"github.com/burgrp-go/meshbridge/pkg/keys"
	"github.com/burgrp-go/meshbridge/pkg/wire"
)

// MaxDatagramSize is the largest single UDP payload the Session will
// write (spec §4.2: "exceeds 65,500 bytes ... chunked").
const MaxDatagramSize = 65500

// maxChunkPayload leaves room for the 24-byte (prev, self, next) tag
// triple every outbound datagram carries.
const maxChunkPayload = MaxDatagramSize - 3*wire.TagLength

// FrameHandler receives fully reassembled, not-yet-verified frames from
// the Session's inbound loop. The P2P Router implements this.
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame wire.Frame, from *net.UDPAddr) error
}

type sendJob struct {
	chunks [][]byte
	addr   *net.UDPAddr
}

// Session owns a UDP socket for its entire lifetime (spec §4.2). It
// serializes and chunks outbound frames, preserving single-writer order
// per destination via one writer goroutine draining a channel backed by
// a FIFO `waitings` backlog, and reassembles inbound datagrams via a
// wire.Reassembler, forwarding the unverified frames to its FrameHandler.
type Session struct {
	conn        *net.UDPConn
	reassembler *wire.Reassembler
	handler     FrameHandler
	log         *zap.Logger
	attempts    int

	out        *actorkit.Mailbox[sendJob]
	waitingsMu sync.Mutex
	waitings   []sendJob

	stop     chan struct{}
	stopOnce sync.Once
}

// SessionOption configures a Session at construction.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	fragmentTimeout time.Duration
}

// WithFragmentTimeout overrides the reassembler's orphaned-fragment
// eviction window (spec §4.1's "deterministic eviction timer"; defaults
// to wire.DefaultFragmentTimeout).
func WithFragmentTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.fragmentTimeout = d }
}

// NewSession binds conn for exclusive use by the Session and starts its
// read and write loops. handler receives reassembled frames; it is
// typically set after construction via SetHandler when the Router and
// Session have a cyclic dependency (mirroring the original's
// P2PAddrMessage registration handshake).
func NewSession(conn *net.UDPConn, log *zap.Logger, opts ...SessionOption) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := sessionConfig{fragmentTimeout: wire.DefaultFragmentTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Session{
		conn:        conn,
		reassembler: wire.NewReassembler(cfg.fragmentTimeout),
		log:         log,
		attempts:    actorkit.DefaultTimes,
		out:         actorkit.NewMailbox[sendJob](actorkit.DefaultMailboxCapacity),
		stop:        make(chan struct{}),
	}
	go s.writeLoop()
	go s.readLoop()
	return s
}

// SetHandler wires the Session's inbound frames to handler (normally the
// P2P Router).
func (s *Session) SetHandler(handler FrameHandler) {
	s.handler = handler
}

// Send encodes and signs (header, content) and writes it to addr,
// chunking per MaxDatagramSize. Per spec §4.1's Strategy A resolution,
// fragments of one logical frame are transmitted tail-first so that by
// the time the head chunk (prev == self) arrives at a peer, every
// fragment it depends on is already buffered in that peer's Reassembler;
// see wire.Reassembler.Put.
func (s *Session) Send(header wire.Header, content wire.Content, priv keys.PrivateKey, addr *net.UDPAddr) error {
	frameBytes, err := wire.EncodeFrame(header, content, priv)
	if err != nil {
		return err
	}

	chunks := wire.SplitIntoChunks(frameBytes, maxChunkPayload)
	encoded := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		encoded[i] = chunk.Encode()
	}

	tailFirst := make([][]byte, len(encoded))
	for i, raw := range encoded {
		tailFirst[len(encoded)-1-i] = raw
	}

	s.enqueue(sendJob{chunks: tailFirst, addr: addr})
	return nil
}

func (s *Session) enqueue(job sendJob) {
	if !s.out.TrySend(job) {
		s.waitingsMu.Lock()
		s.waitings = append(s.waitings, job)
		s.waitingsMu.Unlock()
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.stop:
			return
		case job := <-s.out.C():
			s.write(job)
			s.drainWaitings()
		}
	}
}

// drainWaitings flushes the FIFO backlog that built up while the out
// channel was saturated, preserving submission order (spec §4.2: "A
// backlog waitings holds work ... it is drained FIFO").
func (s *Session) drainWaitings() {
	for {
		s.waitingsMu.Lock()
		if len(s.waitings) == 0 {
			s.waitingsMu.Unlock()
			return
		}
		job := s.waitings[0]
		s.waitings = s.waitings[1:]
		s.waitingsMu.Unlock()
		s.write(job)
	}
}

func (s *Session) write(job sendJob) {
	for _, chunk := range job.chunks {
		if _, err := s.conn.WriteToUDP(chunk, job.addr); err != nil {
			s.log.Debug("p2pnet: udp write failed", zap.Error(err))
			return
		}
	}
}

// readLoop consumes raw datagrams, feeds them through the reassembler,
// and forwards completed frames to the handler with bounded retry (spec
// §4.2 "Inbound", §4.7).
func (s *Session) readLoop() {
	buf := make([]byte, 65536)
	for {
		n, src, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				s.log.Debug("p2pnet: udp read failed", zap.Error(err))
				return
			}
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])

		frame, ok := s.reassembler.Put(raw)
		if !ok {
			continue
		}
		s.deliver(frame, src)
	}
}

func (s *Session) deliver(frame wire.Frame, src *net.UDPAddr) {
	if s.handler == nil {
		return
	}
	ctx := context.Background()
	err := actorkit.SendWithRetry(ctx, s.attempts, func() error {
		return s.handler.HandleFrame(ctx, frame, src)
	})
	if err != nil {
		s.log.Debug("p2pnet: frame delivery to router failed, dropping",
			zap.String("group", frame.Header.GID.String()), zap.Error(err))
	}
}

// Close stops the read/write loops, the reassembler's eviction timer and
// the underlying socket.
func (s *Session) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.reassembler.Close()
	return s.conn.Close()
}
