// Package bridge implements the Network Bridge: the central
// {group -> handler} registry and dispatcher mediating between the P2P
// plane, the RPC plane and registered application handlers (spec §4.5).
package bridge

import (
	"context"
	"net"

	"github.com/burgrp-go/meshbridge/pkg/actorkit"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

// Message is the bridge-facing message ontology (spec §6.2). Every
// message carries a leading GroupID; the same concrete types travel
// both upstream (transport -> handler) and downstream (handler ->
// transport) -- direction is which party calls which method, not the
// type.
type Message interface {
	GroupID() types.GroupID
}

// RPCParams is the opaque RPC payload exchanged with local clients.
type RPCParams = []byte

// EventMessage carries an opaque application payload from/to a peer.
type EventMessage struct {
	GID   types.GroupID
	Peer  types.PeerAddr
	Event []byte
}

func (m EventMessage) GroupID() types.GroupID { return m.GID }

// PeerJoinMessage is a peer-join request, optionally carrying the
// requester's origin socket for RPC-triggered joins.
type PeerJoinMessage struct {
	GID    types.GroupID
	Peer   types.PeerAddr
	Info   []byte
	Origin *net.UDPAddr
}

func (m PeerJoinMessage) GroupID() types.GroupID { return m.GID }

// PeerJoinResultMessage answers a PeerJoinMessage.
type PeerJoinResultMessage struct {
	GID        types.GroupID
	Peer       types.PeerAddr
	OK         bool
	HelpPeers  []types.PeerAddr
}

func (m PeerJoinResultMessage) GroupID() types.GroupID { return m.GID }

// PeerLeaveMessage announces a peer leaving the overlay. All reports
// whether the peer is considered lost by every local group (true) or
// only by this one (false).
type PeerLeaveMessage struct {
	GID  types.GroupID
	Peer types.PeerAddr
	All  bool
}

func (m PeerLeaveMessage) GroupID() types.GroupID { return m.GID }

// LocalMessage is an RPC request from a local client.
type LocalMessage struct {
	GID       types.GroupID
	SessionID uint64
	Params    RPCParams
	Origin    net.Addr
}

func (m LocalMessage) GroupID() types.GroupID { return m.GID }

// LocalResponseMessage answers a LocalMessage.
type LocalResponseMessage struct {
	GID       types.GroupID
	SessionID uint64
	Params    RPCParams
	HasParams bool
}

func (m LocalResponseMessage) GroupID() types.GroupID { return m.GID }

// UpperMessage is an RPC request from an upper-level group.
type UpperMessage struct {
	GID       types.GroupID
	SessionID uint64
	Block     []byte
}

func (m UpperMessage) GroupID() types.GroupID { return m.GID }

// UpperResponseMessage answers an UpperMessage.
type UpperResponseMessage struct {
	GID       types.GroupID
	SessionID uint64
	EventID   types.EventID
	HasEvent  bool
}

func (m UpperResponseMessage) GroupID() types.GroupID { return m.GID }

// LowerMessage is an RPC request from a lower-level group.
type LowerMessage struct {
	GID       types.GroupID
	SessionID uint64
	Block     []byte
}

func (m LowerMessage) GroupID() types.GroupID { return m.GID }

// LowerResponseMessage answers a LowerMessage.
type LowerResponseMessage struct {
	GID       types.GroupID
	SessionID uint64
	EventID   types.EventID
	HasEvent  bool
}

func (m LowerResponseMessage) GroupID() types.GroupID { return m.GID }

// LevelPermissionMessage requests cross-level RPC permission.
type LevelPermissionMessage struct {
	GID        types.GroupID
	SessionID  uint64
	Permission []byte
	Origin     net.Addr
}

func (m LevelPermissionMessage) GroupID() types.GroupID { return m.GID }

// LevelPermissionResponseMessage answers a LevelPermissionMessage.
type LevelPermissionResponseMessage struct {
	GID       types.GroupID
	SessionID uint64
	OK        bool
}

func (m LevelPermissionResponseMessage) GroupID() types.GroupID { return m.GID }

// Handler is the single, dynamically-dispatched capability every bridge
// participant (registered application handlers, the P2P Router sink,
// the RPC Router sink) implements -- spec §9's recommended alternative
// to static polymorphism over the handler type.
type Handler interface {
	HandleBridgeMessage(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

// HandleBridgeMessage implements Handler.
func (f HandlerFunc) HandleBridgeMessage(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// ErrHandlerBusy signals a transient, retryable mailbox-full condition;
// it is the bridge-level alias of actorkit.ErrMailboxFull so Handler
// implementations need not import actorkit directly.
var ErrHandlerBusy = actorkit.ErrMailboxFull
