package p2pnet

import (
	"context"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/burgrp-go/meshbridge/pkg/bridge"
	"github.com/burgrp-go/meshbridge/pkg/dht"
	"github.com/burgrp-go/meshbridge/pkg/keys"
	"github.com/burgrp-go/meshbridge/pkg/types"
	"github.com/burgrp-go/meshbridge/pkg/wire"
)

// PeerState is the per-remote-peer overlay state (spec §4.3 "State
// machine per remote peer").
type PeerState int

const (
	StateUnknown PeerState = iota
	StatePending
	StateLive
)

func (s PeerState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// AcceptPolicy decides whether an Unknown peer's Hello is accepted. The
// default policy accepts every Hello.
type AcceptPolicy func(peer types.PeerAddr, peerInfo []byte) bool

func acceptAll(types.PeerAddr, []byte) bool { return true }

type peerEntry struct {
	state PeerState
	addr  *net.UDPAddr
}

// Router implements the P2P Router: it verifies inbound frame
// signatures, drives the per-peer state machine, drops frames for
// unregistered groups, and translates outbound bridge messages into
// frame bodies dispatched through the Session (spec §4.3).
type Router struct {
	mu    sync.Mutex
	peers map[types.PeerAddr]*peerEntry

	self     keys.PrivateKey
	selfAddr types.PeerAddr

	session *Session
	b       *bridge.Bridge
	table   *dht.Table
	accept  AcceptPolicy
	log     *zap.Logger
}

// Option configures a Router at construction.
type Option func(*Router)

// WithAcceptPolicy overrides the default accept-all Hello policy.
func WithAcceptPolicy(p AcceptPolicy) Option {
	return func(r *Router) { r.accept = p }
}

// WithLogger attaches a zap logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Router) { r.log = log }
}

// WithTable attaches a peer directory consulted when answering Hello.
func WithTable(t *dht.Table) Option {
	return func(r *Router) { r.table = t }
}

// NewRouter constructs a Router for the local keypair, wired to session
// for outbound dispatch and to b as its Bridge. Call session.SetHandler
// with the returned Router to complete the wiring, mirroring the
// original's P2PAddrMessage registration handshake for the session/actor
// cyclic dependency.
func NewRouter(self keys.PrivateKey, selfAddr types.PeerAddr, session *Session, b *bridge.Bridge, opts ...Option) *Router {
	r := &Router{
		peers:    make(map[types.PeerAddr]*peerEntry),
		self:     self,
		selfAddr: selfAddr,
		session:  session,
		b:        b,
		accept:   acceptAll,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) entry(peer types.PeerAddr) *peerEntry {
	e, ok := r.peers[peer]
	if !ok {
		e = &peerEntry{state: StateUnknown}
		r.peers[peer] = e
	}
	return e
}

// PeerState reports the current overlay state for a peer, for tests and
// diagnostics.
func (r *Router) PeerState(peer types.PeerAddr) PeerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.peers[peer]; ok {
		return e.state
	}
	return StateUnknown
}

// HandleFrame implements FrameHandler. It verifies the signature, drops
// frames for unregistered groups, and dispatches by content kind (spec
// §4.3 "Verify", state machine table).
func (r *Router) HandleFrame(ctx context.Context, frame wire.Frame, from *net.UDPAddr) error {
	if !wire.VerifyFrame(frame.Header, frame.RawBody) {
		r.log.Debug("p2pnet: dropping frame with invalid signature",
			zap.String("from", frame.Header.From.String()))
		return nil
	}

	if !r.b.IsRegistered(frame.Header.GID) {
		r.log.Debug("p2pnet: dropping frame for unregistered group",
			zap.String("group", frame.Header.GID.String()))
		return nil
	}

	peer := frame.Header.From

	switch frame.Content.Kind {
	case wire.KindHello:
		r.handleHello(ctx, frame, peer, from)
	case wire.KindHelloResult:
		r.handleHelloResult(ctx, frame, peer)
	case wire.KindEvent:
		r.handleEvent(ctx, frame, peer)
	case wire.KindBye:
		r.handleBye(ctx, frame, peer)
	case wire.KindPing:
		r.reply(frame.Header.GID, peer, from, wire.NewPong())
	case wire.KindPong, wire.KindNone:
		// no state transition
	}
	return nil
}

func (r *Router) handleHello(ctx context.Context, frame wire.Frame, peer types.PeerAddr, from *net.UDPAddr) {
	r.mu.Lock()
	e := r.entry(peer)
	accepted := e.state == StateUnknown && r.accept(peer, frame.Content.PeerInfo)
	if accepted {
		e.state = StatePending
		e.addr = from
	}
	var known []types.PeerAddr
	if r.table != nil {
		known = r.table.Closest(peer, 8)
	}
	r.mu.Unlock()

	if r.table != nil {
		r.table.Observe(peer)
	}

	r.reply(frame.Header.GID, peer, from, wire.NewHelloResult(accepted, known))

	r.b.HandleFromP2P(ctx, bridge.PeerJoinMessage{
		GID:  frame.Header.GID,
		Peer: peer,
		Info: frame.Content.PeerInfo,
	})
}

func (r *Router) handleHelloResult(ctx context.Context, frame wire.Frame, peer types.PeerAddr) {
	r.mu.Lock()
	e := r.entry(peer)
	wasPending := e.state == StatePending
	if wasPending {
		if frame.Content.Accept {
			e.state = StateLive
		} else {
			e.state = StateUnknown
		}
	}
	r.mu.Unlock()

	if !wasPending {
		return
	}

	r.b.HandleFromP2P(ctx, bridge.PeerJoinResultMessage{
		GID:       frame.Header.GID,
		Peer:      peer,
		OK:        frame.Content.Accept,
		HelpPeers: frame.Content.Peers,
	})
}

func (r *Router) handleEvent(ctx context.Context, frame wire.Frame, peer types.PeerAddr) {
	r.mu.Lock()
	live := r.entry(peer).state == StateLive
	r.mu.Unlock()
	if !live {
		return
	}

	r.b.HandleFromP2P(ctx, bridge.EventMessage{
		GID:   frame.Header.GID,
		Peer:  peer,
		Event: frame.Content.Event,
	})
}

func (r *Router) handleBye(ctx context.Context, frame wire.Frame, peer types.PeerAddr) {
	r.mu.Lock()
	e := r.entry(peer)
	e.state = StateUnknown
	r.mu.Unlock()

	if r.table != nil {
		r.table.Forget(peer)
	}

	r.b.HandleFromP2P(ctx, bridge.PeerLeaveMessage{
		GID:  frame.Header.GID,
		Peer: peer,
		All:  false,
	})
}

// MarkUnreachable transitions peer to Unknown and notifies the Bridge
// that every local group has lost it (spec §4.3 "on transport failure
// timeout"). Intended to be called by a liveness-checking caller; the
// Router itself runs no such timer.
func (r *Router) MarkUnreachable(ctx context.Context, gid types.GroupID, peer types.PeerAddr) {
	r.mu.Lock()
	r.entry(peer).state = StateUnknown
	r.mu.Unlock()

	r.b.HandleFromP2P(ctx, bridge.PeerLeaveMessage{GID: gid, Peer: peer, All: true})
}

func (r *Router) reply(gid types.GroupID, to types.PeerAddr, addr *net.UDPAddr, content wire.Content) {
	header := wire.NewHeader(wire.Version0, gid, r.selfAddr, to)
	if err := r.session.Send(header, content, r.self, addr); err != nil {
		r.log.Debug("p2pnet: failed to send reply", zap.Error(err))
	}
}

// HandleBridgeMessage implements bridge.Handler: it is registered as the
// Bridge's p2pSink and translates outbound bridge messages into frame
// bodies dispatched through the Session (spec §4.3 "Outbound
// translation").
func (r *Router) HandleBridgeMessage(_ context.Context, msg bridge.Message) error {
	switch m := msg.(type) {
	case bridge.EventMessage:
		r.sendToPeer(m.GID, m.Peer, wire.NewEvent(m.Event))
	case bridge.PeerJoinMessage:
		r.sendToPeer(m.GID, m.Peer, wire.NewHello(m.Info))
	case bridge.PeerJoinResultMessage:
		r.sendToPeer(m.GID, m.Peer, wire.NewHelloResult(m.OK, m.HelpPeers))
	case bridge.PeerLeaveMessage:
		r.sendToPeer(m.GID, m.Peer, wire.NewBye())
	}
	return nil
}

func (r *Router) sendToPeer(gid types.GroupID, peer types.PeerAddr, content wire.Content) {
	r.mu.Lock()
	e, ok := r.peers[peer]
	r.mu.Unlock()
	if !ok || e.addr == nil {
		r.log.Debug("p2pnet: no known address for peer, dropping outbound message",
			zap.String("peer", peer.String()))
		return
	}
	r.reply(gid, peer, e.addr, content)
}

// LearnPeerAddr records a peer's socket address without going through a
// Hello handshake, used when an application handler initiates a join to
// a peer address obtained out-of-band (e.g. via discovery bootstrap).
func (r *Router) LearnPeerAddr(peer types.PeerAddr, addr *net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(peer).addr = addr
}
