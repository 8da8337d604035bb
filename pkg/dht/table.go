// Package dht provides the minimal peer directory consulted by the P2P
// Router when answering a Hello with a candidate peer list. It stands in
// for the Kademlia-style content-routing layer the distilled spec
// excludes as a feature (no routing policy, no lookup protocol) while
// keeping the XOR-distance ordering primitive the original's peer table
// was built on.
package dht

import (
	"sort"
	"sync"

	"github.com/burgrp-go/meshbridge/pkg/types"
)

// Distance is the bitwise XOR of two identifiers, ordered as an unsigned
// big-endian integer the way Kademlia defines "closeness".
type Distance types.Hash256

// Less reports whether d sorts before o as an unsigned big-endian value.
func (d Distance) Less(o Distance) bool {
	for i := range d {
		if d[i] != o[i] {
			return d[i] < o[i]
		}
	}
	return false
}

// XOR computes the distance between two peer addresses.
func XOR(a, b types.PeerAddr) Distance {
	var d Distance
	for i := range a {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// Table is an in-memory, XOR-distance-ordered directory of known peers
// for one local node. It is consulted, not authoritative: the P2P Router
// decides whether to act on its output.
type Table struct {
	mu   sync.RWMutex
	self types.PeerAddr
	seen map[types.PeerAddr]struct{}
}

// NewTable constructs a Table centered on self's own address.
func NewTable(self types.PeerAddr) *Table {
	return &Table{self: self, seen: make(map[types.PeerAddr]struct{})}
}

// Observe records a peer as known to the local node.
func (t *Table) Observe(peer types.PeerAddr) {
	if peer == t.self {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[peer] = struct{}{}
}

// Forget removes a peer from the table, e.g. on PeerLeave.
func (t *Table) Forget(peer types.PeerAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, peer)
}

// Closest returns up to n known peers ordered by ascending XOR distance
// from target, excluding target itself.
func (t *Table) Closest(target types.PeerAddr, n int) []types.PeerAddr {
	t.mu.RLock()
	candidates := make([]types.PeerAddr, 0, len(t.seen))
	for peer := range t.seen {
		if peer != target {
			candidates = append(candidates, peer)
		}
	}
	t.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return XOR(target, candidates[i]).Less(XOR(target, candidates[j]))
	})

	if n >= 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// Len reports the number of peers currently tracked.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seen)
}
