// Package rpcnet implements the RPC Session and RPC Router: the TCP
// listener that accepts local client connections and the translation
// layer between newline-delimited JSON requests/responses and the
// Bridge's four RPC message pairs (spec §4.4).
package rpcnet

import "github.com/burgrp-go/meshbridge/pkg/types"

// Kind discriminates the newline-delimited JSON request/response frames
// carried over one RPC connection.
type Kind string

const (
	KindLocal           Kind = "local"
	KindUpper           Kind = "upper"
	KindLower           Kind = "lower"
	KindLevelPermission Kind = "level_permission"
)

// request is the wire shape of one client-issued RPC call. Only the
// field relevant to Kind is populated.
type request struct {
	Kind       Kind          `json:"kind"`
	GID        types.GroupID `json:"gid"`
	Params     []byte        `json:"params,omitempty"`
	Block      []byte        `json:"block,omitempty"`
	Permission []byte        `json:"permission,omitempty"`
}

// response is the wire shape of one server-issued RPC reply.
type response struct {
	Kind      Kind          `json:"kind"`
	GID       types.GroupID `json:"gid"`
	OK        bool          `json:"ok"`
	Params    []byte        `json:"params,omitempty"`
	HasParams bool          `json:"has_params,omitempty"`
	EventID   types.EventID `json:"event_id,omitempty"`
	HasEvent  bool          `json:"has_event,omitempty"`
}
