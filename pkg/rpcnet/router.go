package rpcnet

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/burgrp-go/meshbridge/pkg/bridge"
)

// Router implements the RPC Router: it translates decoded JSON requests
// into the Bridge's four RPC message pairs and translates the Bridge's
// responses back into JSON frames written to the originating session
// (spec §4.4).
type Router struct {
	session *Session
	b       *bridge.Bridge
	log     *zap.Logger
}

// NewRouter constructs a Router wired to session for response delivery
// and to b as its Bridge.
func NewRouter(session *Session, b *bridge.Bridge, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{session: session, b: b, log: log}
}

// HandleRequest implements RequestHandler: it translates req into the
// matching bridge.Message and forwards it to the Bridge, which either
// routes it to the registered handler or synthesizes a denial for an
// unregistered group (spec §4.4, property 6).
func (r *Router) HandleRequest(ctx context.Context, sessionID uint64, origin net.Addr, req request) error {
	switch req.Kind {
	case KindLocal:
		r.b.HandleFromRPC(ctx, bridge.LocalMessage{
			GID:       req.GID,
			SessionID: sessionID,
			Params:    req.Params,
			Origin:    origin,
		})
	case KindUpper:
		r.b.HandleFromRPC(ctx, bridge.UpperMessage{
			GID:       req.GID,
			SessionID: sessionID,
			Block:     req.Block,
		})
	case KindLower:
		r.b.HandleFromRPC(ctx, bridge.LowerMessage{
			GID:       req.GID,
			SessionID: sessionID,
			Block:     req.Block,
		})
	case KindLevelPermission:
		r.b.HandleFromRPC(ctx, bridge.LevelPermissionMessage{
			GID:        req.GID,
			SessionID:  sessionID,
			Permission: req.Permission,
			Origin:     origin,
		})
	default:
		r.log.Debug("rpcnet: unknown request kind", zap.String("kind", string(req.Kind)))
	}
	return nil
}

// HandleBridgeMessage implements bridge.Handler: it is registered as the
// Bridge's rpcSink and writes each response back to the session that
// issued the original request (spec §4.4 "deliver responses back to the
// issuing session").
func (r *Router) HandleBridgeMessage(_ context.Context, msg bridge.Message) error {
	switch m := msg.(type) {
	case bridge.LocalResponseMessage:
		return r.session.WriteResponse(m.SessionID, response{
			Kind: KindLocal, GID: m.GID, Params: m.Params, HasParams: m.HasParams, OK: m.HasParams,
		})
	case bridge.UpperResponseMessage:
		return r.session.WriteResponse(m.SessionID, response{
			Kind: KindUpper, GID: m.GID, EventID: m.EventID, HasEvent: m.HasEvent, OK: m.HasEvent,
		})
	case bridge.LowerResponseMessage:
		return r.session.WriteResponse(m.SessionID, response{
			Kind: KindLower, GID: m.GID, EventID: m.EventID, HasEvent: m.HasEvent, OK: m.HasEvent,
		})
	case bridge.LevelPermissionResponseMessage:
		return r.session.WriteResponse(m.SessionID, response{
			Kind: KindLevelPermission, GID: m.GID, OK: m.OK,
		})
	}
	return nil
}
