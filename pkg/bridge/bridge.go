package bridge

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/burgrp-go/meshbridge/pkg/actorkit"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

// Metrics are the Prometheus collectors the Bridge updates as it
// registers groups and routes messages, on whichever goroutine calls it
// (spec SPEC_FULL.md §4.5).
type Metrics struct {
	MessagesRouted    *prometheus.CounterVec
	RegisteredGroups  prometheus.Gauge
}

// NewMetrics registers the Bridge's collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshbridge_messages_routed_total",
			Help: "Bridge messages by kind and outcome (routed, denied, dropped).",
		}, []string{"kind", "outcome"}),
		RegisteredGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshbridge_registered_groups",
			Help: "Number of groups currently registered with the bridge.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.MessagesRouted, m.RegisteredGroups)
	}
	return m
}

// Bridge is the central {group -> handler} registry and dispatcher
// (spec §4.5). Its map is owned and mutated exclusively by its own
// goroutine-safe methods, guarded by a mutex as the single-owner rule
// in spec §5 permits implementing with either a dedicated goroutine or
// a mutex; a mutex is used here since the Bridge has no other private
// state to race on.
type Bridge struct {
	mu       sync.RWMutex
	handlers map[types.GroupID]Handler

	p2pSink Handler
	rpcSink Handler

	attempts int
	log      *zap.Logger
	metrics  *Metrics
}

// Option configures a Bridge at construction.
type Option func(*Bridge)

// WithRetryAttempts overrides actorkit.DefaultTimes for handler delivery.
func WithRetryAttempts(attempts int) Option {
	return func(b *Bridge) { b.attempts = attempts }
}

// WithLogger attaches a zap logger; a no-op logger is used otherwise.
func WithLogger(log *zap.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// New constructs a Bridge. p2pSink receives messages forwarded toward
// the P2P Router; rpcSink receives messages forwarded toward the RPC
// Router. Either may be nil and supplied later via SetP2PSink/
// SetRPCSink, for when the sink itself needs a constructed Bridge to
// resolve a cyclic dependency (as p2pnet.Router and rpcnet.Router do).
func New(p2pSink, rpcSink Handler, opts ...Option) *Bridge {
	b := &Bridge{
		handlers: make(map[types.GroupID]Handler),
		p2pSink:  p2pSink,
		rpcSink:  rpcSink,
		attempts: actorkit.DefaultTimes,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetP2PSink replaces the handler messages are forwarded to toward the
// P2P Router.
func (b *Bridge) SetP2PSink(sink Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.p2pSink = sink
}

// SetRPCSink replaces the handler messages are forwarded to toward the
// RPC Router.
func (b *Bridge) SetRPCSink(sink Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rpcSink = sink
}

func (b *Bridge) getP2PSink() Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.p2pSink
}

func (b *Bridge) getRPCSink() Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rpcSink
}

// Register inserts or replaces the handler for a group (spec property 5:
// registration uniqueness -- a later Register for the same group wins).
func (b *Bridge) Register(gid types.GroupID, handler Handler) {
	b.mu.Lock()
	b.handlers[gid] = handler
	count := len(b.handlers)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RegisteredGroups.Set(float64(count))
	}
	b.log.Debug("bridge: group registered", zap.String("group", gid.String()))
}

// Deregister removes a group's handler.
func (b *Bridge) Deregister(gid types.GroupID) {
	b.mu.Lock()
	delete(b.handlers, gid)
	count := len(b.handlers)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RegisteredGroups.Set(float64(count))
	}
}

func (b *Bridge) handlerFor(gid types.GroupID) (Handler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.handlers[gid]
	return h, ok
}

// IsRegistered reports whether a handler is currently registered for gid.
// Used by the P2P Router to drop inbound frames for unregistered groups
// (spec §4.3 "Verify") independently of the RPC-side denial path.
func (b *Bridge) IsRegistered(gid types.GroupID) bool {
	_, ok := b.handlerFor(gid)
	return ok
}

func (b *Bridge) observe(kind, outcome string) {
	if b.metrics != nil {
		b.metrics.MessagesRouted.WithLabelValues(kind, outcome).Inc()
	}
}

// deliverToHandler forwards msg to the group's registered handler with
// bounded retry, logging and dropping on final failure (spec §4.5
// "Failure policy").
func (b *Bridge) deliverToHandler(ctx context.Context, kind string, msg Message) {
	handler, ok := b.handlerFor(msg.GroupID())
	if !ok {
		b.observe(kind, "dropped")
		return
	}

	err := actorkit.SendWithRetry(ctx, b.attempts, func() error {
		return handler.HandleBridgeMessage(ctx, msg)
	})
	if err != nil {
		b.observe(kind, "dropped")
		b.log.Warn("bridge: handler delivery failed, dropping message",
			zap.String("group", msg.GroupID().String()),
			zap.String("kind", kind),
			zap.Error(err))
		return
	}
	b.observe(kind, "routed")
}

func (b *Bridge) deliverToSink(ctx context.Context, sink Handler, kind string, msg Message) {
	err := actorkit.SendWithRetry(ctx, b.attempts, func() error {
		return sink.HandleBridgeMessage(ctx, msg)
	})
	if err != nil {
		b.observe(kind, "dropped")
		b.log.Warn("bridge: sink delivery failed, dropping message",
			zap.String("kind", kind), zap.Error(err))
		return
	}
	b.observe(kind, "routed")
}

// denyLevelPermission synthesizes the unregistered-group denial (spec
// §4.4, §4.5, §7, property 6) and sends it back through the RPC sink.
func (b *Bridge) denyLevelPermission(ctx context.Context, gid types.GroupID, sessionID uint64) {
	b.observe("unregistered_rpc", "denied")
	b.deliverToSink(ctx, b.getRPCSink(), "LevelPermissionResponseMessage", LevelPermissionResponseMessage{
		GID:       gid,
		SessionID: sessionID,
		OK:        false,
	})
}

// HandleFromP2P routes a message arriving from the P2P Router to the
// registered group handler. Accepts EventMessage, PeerJoinMessage,
// PeerJoinResultMessage, PeerLeaveMessage.
func (b *Bridge) HandleFromP2P(ctx context.Context, msg Message) {
	switch m := msg.(type) {
	case EventMessage:
		b.deliverToHandler(ctx, "EventMessage", m)
	case PeerJoinMessage:
		b.deliverToHandler(ctx, "PeerJoinMessage", m)
	case PeerJoinResultMessage:
		b.deliverToHandler(ctx, "PeerJoinResultMessage", m)
	case PeerLeaveMessage:
		b.deliverToHandler(ctx, "PeerLeaveMessage", m)
	default:
		b.log.Warn("bridge: unexpected message from p2p", zap.Any("message", msg))
	}
}

// HandleFromRPC routes a request arriving from the RPC Router. Accepts
// LocalMessage, UpperMessage, LowerMessage, LevelPermissionMessage. A
// request for an unregistered group is denied (spec property 6).
func (b *Bridge) HandleFromRPC(ctx context.Context, msg Message) {
	if _, ok := b.handlerFor(msg.GroupID()); !ok {
		switch m := msg.(type) {
		case LocalMessage:
			b.denyLevelPermission(ctx, m.GID, m.SessionID)
		case UpperMessage:
			b.denyLevelPermission(ctx, m.GID, m.SessionID)
		case LowerMessage:
			b.denyLevelPermission(ctx, m.GID, m.SessionID)
		case LevelPermissionMessage:
			b.denyLevelPermission(ctx, m.GID, m.SessionID)
		default:
			b.log.Warn("bridge: unexpected message from rpc", zap.Any("message", msg))
		}
		return
	}

	switch m := msg.(type) {
	case LocalMessage:
		b.deliverToHandler(ctx, "LocalMessage", m)
	case UpperMessage:
		b.deliverToHandler(ctx, "UpperMessage", m)
	case LowerMessage:
		b.deliverToHandler(ctx, "LowerMessage", m)
	case LevelPermissionMessage:
		b.deliverToHandler(ctx, "LevelPermissionMessage", m)
	default:
		b.log.Warn("bridge: unexpected message from rpc", zap.Any("message", msg))
	}
}

// HandleFromHandler routes a message emitted by a registered handler
// back out toward the P2P Router or the RPC Router, depending on kind.
// The Bridge never transforms payloads, only routes (spec §4.5).
func (b *Bridge) HandleFromHandler(ctx context.Context, msg Message) {
	switch m := msg.(type) {
	case EventMessage:
		b.deliverToSink(ctx, b.getP2PSink(), "EventMessage", m)
	case PeerJoinMessage:
		b.deliverToSink(ctx, b.getP2PSink(), "PeerJoinMessage", m)
	case PeerJoinResultMessage:
		b.deliverToSink(ctx, b.getP2PSink(), "PeerJoinResultMessage", m)
	case PeerLeaveMessage:
		b.deliverToSink(ctx, b.getP2PSink(), "PeerLeaveMessage", m)
	case LocalResponseMessage:
		b.deliverToSink(ctx, b.getRPCSink(), "LocalResponseMessage", m)
	case UpperResponseMessage:
		b.deliverToSink(ctx, b.getRPCSink(), "UpperResponseMessage", m)
	case LowerResponseMessage:
		b.deliverToSink(ctx, b.getRPCSink(), "LowerResponseMessage", m)
	case LevelPermissionResponseMessage:
		b.deliverToSink(ctx, b.getRPCSink(), "LevelPermissionResponseMessage", m)
	default:
		b.log.Warn("bridge: unexpected message from handler", zap.Any("message", msg))
	}
}

// HandleBridgeMessage implements Handler so a Bridge can itself be
// wired wherever a Handler is expected (e.g. in tests, or when a
// Multi-Group Adapter addresses its network bridge). Every message is
// treated as arriving from the handler side and routed as
// HandleFromHandler routes it; the RPC request kinds (Local, Upper,
// Lower, LevelPermission) have no route from that side and are logged
// and dropped. This mirrors how a registered handler's own address is
// used symmetrically in the source.
func (b *Bridge) HandleBridgeMessage(ctx context.Context, msg Message) error {
	b.HandleFromHandler(ctx, msg)
	return nil
}

// RegisteredGroups returns a snapshot of currently registered group IDs,
// for diagnostics and tests.
func (b *Bridge) RegisteredGroups() []types.GroupID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.GroupID, 0, len(b.handlers))
	for gid := range b.handlers {
		out = append(out, gid)
	}
	return out
}
