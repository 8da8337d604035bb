// Package discovery implements an IPv6 multicast bootstrap announcer: a
// periodic beacon broadcast that seeds a group's dht.Table and a
// p2pnet.Router with peer addresses, standing in for the "DHT
// peer-discovery logic" external collaborator the distilled spec treats
// as out of scope for content-routing policy but not for bootstrap.
package discovery

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv6"

	"github.com/burgrp-go/meshbridge/pkg/dht"
	"github.com/burgrp-go/meshbridge/pkg/p2pnet"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

const (
	multicastAddress = "ff02::cafe:face:1dea:1"
	beaconMagic       = "MBGB"
	minAdvertisePeriod = 2 * time.Second
	maxAdvertisePeriod = 4 * time.Second
)

// portForGroup derives a multicast port in the 1024-49151 range from a
// group's identifier, the same hash-to-port scheme the teacher uses for
// its per-register-group multicast pipes, extended to a 32-byte group id.
func portForGroup(gid types.GroupID) int {
	var crc uint16 = 0xFFFF
	for _, c := range gid {
		crc ^= uint16(c) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return 1024 + int(crc&0xBBFF)
}

// beacon is the wire form of one announcement: the announcing peer's
// address, the group it belongs to, and the UDP port its p2pnet.Session
// listens on for direct traffic.
type beacon struct {
	Group types.GroupID
	Peer  types.PeerAddr
	Port  uint16
}

func encodeBeacon(b beacon) []byte {
	var buf bytes.Buffer
	buf.WriteString(beaconMagic)
	buf.Write(b.Group.Bytes())
	buf.Write(b.Peer.Bytes())
	binary.Write(&buf, binary.BigEndian, b.Port)
	return buf.Bytes()
}

func decodeBeacon(data []byte) (beacon, bool) {
	want := len(beaconMagic) + types.HashLength*2 + 2
	if len(data) != want || string(data[:len(beaconMagic)]) != beaconMagic {
		return beacon{}, false
	}
	data = data[len(beaconMagic):]

	group, err := types.HashFromBytes(data[:types.HashLength])
	if err != nil {
		return beacon{}, false
	}
	data = data[types.HashLength:]

	peer, err := types.HashFromBytes(data[:types.HashLength])
	if err != nil {
		return beacon{}, false
	}
	data = data[types.HashLength:]

	port := binary.BigEndian.Uint16(data)
	return beacon{Group: group, Peer: peer, Port: port}, true
}

// Announcer periodically broadcasts a beacon for one group on a
// link-local IPv6 multicast address derived from the group id, and feeds
// beacons observed from other peers into a dht.Table and a
// p2pnet.Router, so a freshly joined node can discover live peers
// without any external bootstrap list.
type Announcer struct {
	conn      *net.UDPConn
	groupAddr *net.UDPAddr

	gid     types.GroupID
	self    types.PeerAddr
	p2pPort uint16

	table  *dht.Table
	router *p2pnet.Router
	log    *zap.Logger

	stop chan struct{}
}

// New joins the multicast group for gid on iface and constructs an
// Announcer. self is this node's own peer address, advertised in every
// beacon; p2pPort is the local p2pnet.Session's listening port, so
// discovered peers can be dialed directly. table and router may be nil
// if this side only wants to announce without learning from others.
func New(iface *net.Interface, gid types.GroupID, self types.PeerAddr, p2pPort uint16, table *dht.Table, router *p2pnet.Router, log *zap.Logger) (*Announcer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	port := portForGroup(gid)
	groupAddr := &net.UDPAddr{IP: net.ParseIP(multicastAddress), Port: port}

	conn, err := net.ListenMulticastUDP("udp6", iface, groupAddr)
	if err != nil {
		return nil, fmt.Errorf("discovery: listen multicast: %w", err)
	}

	pc := ipv6.NewPacketConn(conn)
	if err := pc.SetMulticastLoopback(true); err != nil {
		conn.Close()
		return nil, fmt.Errorf("discovery: set multicast loopback: %w", err)
	}

	a := &Announcer{
		conn:      conn,
		groupAddr: groupAddr,
		gid:       gid,
		self:      self,
		p2pPort:   p2pPort,
		table:     table,
		router:    router,
		log:       log,
		stop:      make(chan struct{}),
	}

	log.Debug("discovery: joined multicast group",
		zap.String("group", gid.String()), zap.String("addr", groupAddr.String()))

	go a.readLoop()
	go a.advertiseLoop()

	return a, nil
}

func (a *Announcer) readLoop() {
	buf := make([]byte, 1024)
	for {
		n, src, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		b, ok := decodeBeacon(buf[:n])
		if !ok || b.Group != a.gid || b.Peer == a.self {
			continue
		}

		a.log.Debug("discovery: observed peer beacon",
			zap.String("peer", b.Peer.String()), zap.String("from", src.String()))

		if a.table != nil {
			a.table.Observe(b.Peer)
		}
		if a.router != nil {
			a.router.LearnPeerAddr(b.Peer, &net.UDPAddr{IP: src.IP, Port: int(b.Port), Zone: src.Zone})
		}
	}
}

func (a *Announcer) advertiseLoop() {
	for {
		jitter := minAdvertisePeriod + time.Duration(rand.Int63n(int64(maxAdvertisePeriod-minAdvertisePeriod)))
		select {
		case <-time.After(jitter):
			a.send()
		case <-a.stop:
			return
		}
	}
}

func (a *Announcer) send() {
	encoded := encodeBeacon(beacon{Group: a.gid, Peer: a.self, Port: a.p2pPort})
	if _, err := a.conn.WriteToUDP(encoded, a.groupAddr); err != nil {
		a.log.Debug("discovery: failed to send beacon", zap.Error(err))
	}
}

// Close stops advertising and leaves the multicast group.
func (a *Announcer) Close() error {
	close(a.stop)
	return a.conn.Close()
}
