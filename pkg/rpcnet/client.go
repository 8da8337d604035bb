package rpcnet

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/burgrp-go/meshbridge/pkg/types"
)

// Client is a minimal RPC client for the newline-delimited JSON protocol
// an RPC Session speaks, standing in for the external "local RPC"
// collaborator's own client side (spec §1).
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// Dial connects to an RPC Session listening at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rpcnet: dial %s: %w", addr, err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &Client{conn: conn, scanner: scanner}, nil
}

func (c *Client) roundTrip(req request, timeout time.Duration) (response, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return response{}, err
	}
	if err := c.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return response{}, err
	}
	if _, err := c.conn.Write(append(encoded, '\n')); err != nil {
		return response{}, err
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return response{}, err
		}
		return response{}, fmt.Errorf("rpcnet: connection closed without a response")
	}
	var resp response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return response{}, err
	}
	return resp, nil
}

// Local issues a KindLocal request and returns the response params.
func (c *Client) Local(gid types.GroupID, params []byte, timeout time.Duration) (ok bool, resultParams []byte, err error) {
	resp, err := c.roundTrip(request{Kind: KindLocal, GID: gid, Params: params}, timeout)
	if err != nil {
		return false, nil, err
	}
	return resp.HasParams, resp.Params, nil
}

// LevelPermission issues a KindLevelPermission request, the cheapest way
// to discover whether a group is currently registered on the remote
// node: an unregistered group always answers OK=false (spec property 6).
func (c *Client) LevelPermission(gid types.GroupID, permission []byte, timeout time.Duration) (ok bool, err error) {
	resp, err := c.roundTrip(request{Kind: KindLevelPermission, GID: gid, Permission: permission}, timeout)
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
