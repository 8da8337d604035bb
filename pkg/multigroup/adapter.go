// Package multigroup implements the Multi-Group Adapter: a per-group
// handler facade that strips the group identifier from inbound bridge
// messages before forwarding to an application-provided inner handler,
// and reinserts it on the way back out (spec §4.6).
package multigroup

import (
	"context"
	"fmt"
	"net"

	"github.com/burgrp-go/meshbridge/pkg/bridge"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

// Unqualified mirrors bridge.Message but without the leading GroupID
// (spec §6.2: "The Multi-Group Adapter exposes the same set minus the
// leading gid field").
type Unqualified interface {
	isUnqualified()
}

type UnqualifiedEvent struct {
	Peer  types.PeerAddr
	Event []byte
}

func (UnqualifiedEvent) isUnqualified() {}

type UnqualifiedPeerJoin struct {
	Peer   types.PeerAddr
	Info   []byte
	Origin *net.UDPAddr
}

func (UnqualifiedPeerJoin) isUnqualified() {}

type UnqualifiedPeerJoinResult struct {
	Peer      types.PeerAddr
	OK        bool
	HelpPeers []types.PeerAddr
}

func (UnqualifiedPeerJoinResult) isUnqualified() {}

type UnqualifiedPeerLeave struct {
	Peer types.PeerAddr
	All  bool
}

func (UnqualifiedPeerLeave) isUnqualified() {}

type UnqualifiedLocal struct {
	SessionID uint64
	Params    bridge.RPCParams
	Origin    net.Addr
}

func (UnqualifiedLocal) isUnqualified() {}

type UnqualifiedLocalResponse struct {
	SessionID uint64
	Params    bridge.RPCParams
	HasParams bool
}

func (UnqualifiedLocalResponse) isUnqualified() {}

type UnqualifiedUpper struct {
	SessionID uint64
	Block     []byte
}

func (UnqualifiedUpper) isUnqualified() {}

type UnqualifiedUpperResponse struct {
	SessionID uint64
	EventID   types.EventID
	HasEvent  bool
}

func (UnqualifiedUpperResponse) isUnqualified() {}

type UnqualifiedLower struct {
	SessionID uint64
	Block     []byte
}

func (UnqualifiedLower) isUnqualified() {}

type UnqualifiedLowerResponse struct {
	SessionID uint64
	EventID   types.EventID
	HasEvent  bool
}

func (UnqualifiedLowerResponse) isUnqualified() {}

type UnqualifiedLevelPermission struct {
	SessionID  uint64
	Permission []byte
	Origin     net.Addr
}

func (UnqualifiedLevelPermission) isUnqualified() {}

type UnqualifiedLevelPermissionResponse struct {
	SessionID uint64
	OK        bool
}

func (UnqualifiedLevelPermissionResponse) isUnqualified() {}

// InnerHandler is implemented by the application-provided recipient the
// Adapter forwards unqualified messages to.
type InnerHandler interface {
	HandleUnqualified(ctx context.Context, msg Unqualified) error
}

// InnerHandlerFunc adapts a function to an InnerHandler.
type InnerHandlerFunc func(ctx context.Context, msg Unqualified) error

func (f InnerHandlerFunc) HandleUnqualified(ctx context.Context, msg Unqualified) error {
	return f(ctx, msg)
}

// Adapter presents a bridge.Handler for one fixed group, translating
// bridge.Message <-> Unqualified bijectively (spec §4.6 invariant).
type Adapter struct {
	gid    types.GroupID
	b      *bridge.Bridge
	inner  InnerHandler
}

// New constructs an Adapter. It does not register itself; call Start to
// do so (spec §4.6 "Construction" -- registration happens on startup).
func New(gid types.GroupID, b *bridge.Bridge, inner InnerHandler) *Adapter {
	return &Adapter{gid: gid, b: b, inner: inner}
}

// Start registers the adapter with the bridge for its fixed group.
func (a *Adapter) Start() {
	a.b.Register(a.gid, a)
}

// GroupID returns the adapter's fixed group.
func (a *Adapter) GroupID() types.GroupID {
	return a.gid
}

// HandleBridgeMessage implements bridge.Handler: it strips GID and
// forwards to the inner handler.
func (a *Adapter) HandleBridgeMessage(ctx context.Context, msg bridge.Message) error {
	unqualified, err := strip(msg)
	if err != nil {
		return err
	}
	return a.inner.HandleUnqualified(ctx, unqualified)
}

// Emit re-inserts the adapter's fixed GroupID onto an unqualified
// message produced by the inner handler and forwards it back to the
// bridge (spec §4.6 "in reverse").
func (a *Adapter) Emit(ctx context.Context, msg Unqualified) error {
	qualified, err := qualify(a.gid, msg)
	if err != nil {
		return err
	}
	a.b.HandleFromHandler(ctx, qualified)
	return nil
}

func strip(msg bridge.Message) (Unqualified, error) {
	switch m := msg.(type) {
	case bridge.EventMessage:
		return UnqualifiedEvent{Peer: m.Peer, Event: m.Event}, nil
	case bridge.PeerJoinMessage:
		return UnqualifiedPeerJoin{Peer: m.Peer, Info: m.Info, Origin: m.Origin}, nil
	case bridge.PeerJoinResultMessage:
		return UnqualifiedPeerJoinResult{Peer: m.Peer, OK: m.OK, HelpPeers: m.HelpPeers}, nil
	case bridge.PeerLeaveMessage:
		return UnqualifiedPeerLeave{Peer: m.Peer, All: m.All}, nil
	case bridge.LocalMessage:
		return UnqualifiedLocal{SessionID: m.SessionID, Params: m.Params, Origin: m.Origin}, nil
	case bridge.LocalResponseMessage:
		return UnqualifiedLocalResponse{SessionID: m.SessionID, Params: m.Params, HasParams: m.HasParams}, nil
	case bridge.UpperMessage:
		return UnqualifiedUpper{SessionID: m.SessionID, Block: m.Block}, nil
	case bridge.UpperResponseMessage:
		return UnqualifiedUpperResponse{SessionID: m.SessionID, EventID: m.EventID, HasEvent: m.HasEvent}, nil
	case bridge.LowerMessage:
		return UnqualifiedLower{SessionID: m.SessionID, Block: m.Block}, nil
	case bridge.LowerResponseMessage:
		return UnqualifiedLowerResponse{SessionID: m.SessionID, EventID: m.EventID, HasEvent: m.HasEvent}, nil
	case bridge.LevelPermissionMessage:
		return UnqualifiedLevelPermission{SessionID: m.SessionID, Permission: m.Permission, Origin: m.Origin}, nil
	case bridge.LevelPermissionResponseMessage:
		return UnqualifiedLevelPermissionResponse{SessionID: m.SessionID, OK: m.OK}, nil
	default:
		return nil, fmt.Errorf("multigroup: unknown message type %T", msg)
	}
}

func qualify(gid types.GroupID, msg Unqualified) (bridge.Message, error) {
	switch m := msg.(type) {
	case UnqualifiedEvent:
		return bridge.EventMessage{GID: gid, Peer: m.Peer, Event: m.Event}, nil
	case UnqualifiedPeerJoin:
		return bridge.PeerJoinMessage{GID: gid, Peer: m.Peer, Info: m.Info, Origin: m.Origin}, nil
	case UnqualifiedPeerJoinResult:
		return bridge.PeerJoinResultMessage{GID: gid, Peer: m.Peer, OK: m.OK, HelpPeers: m.HelpPeers}, nil
	case UnqualifiedPeerLeave:
		return bridge.PeerLeaveMessage{GID: gid, Peer: m.Peer, All: m.All}, nil
	case UnqualifiedLocal:
		return bridge.LocalMessage{GID: gid, SessionID: m.SessionID, Params: m.Params, Origin: m.Origin}, nil
	case UnqualifiedLocalResponse:
		return bridge.LocalResponseMessage{GID: gid, SessionID: m.SessionID, Params: m.Params, HasParams: m.HasParams}, nil
	case UnqualifiedUpper:
		return bridge.UpperMessage{GID: gid, SessionID: m.SessionID, Block: m.Block}, nil
	case UnqualifiedUpperResponse:
		return bridge.UpperResponseMessage{GID: gid, SessionID: m.SessionID, EventID: m.EventID, HasEvent: m.HasEvent}, nil
	case UnqualifiedLower:
		return bridge.LowerMessage{GID: gid, SessionID: m.SessionID, Block: m.Block}, nil
	case UnqualifiedLowerResponse:
		return bridge.LowerResponseMessage{GID: gid, SessionID: m.SessionID, EventID: m.EventID, HasEvent: m.HasEvent}, nil
	case UnqualifiedLevelPermission:
		return bridge.LevelPermissionMessage{GID: gid, SessionID: m.SessionID, Permission: m.Permission, Origin: m.Origin}, nil
	case UnqualifiedLevelPermissionResponse:
		return bridge.LevelPermissionResponseMessage{GID: gid, SessionID: m.SessionID, OK: m.OK}, nil
	default:
		return nil, fmt.Errorf("multigroup: unknown unqualified message type %T", msg)
	}
}
