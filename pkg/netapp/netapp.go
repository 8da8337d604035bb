// Package netapp provides the process entry points that bind sockets
// and wire together every core component: the Network Bridge, the P2P
// Session/Router, the RPC Session/Router and the discovery announcer
// (spec §6.3).
package netapp

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/burgrp-go/meshbridge/pkg/bridge"
	"github.com/burgrp-go/meshbridge/pkg/config"
	"github.com/burgrp-go/meshbridge/pkg/dht"
	"github.com/burgrp-go/meshbridge/pkg/discovery"
	"github.com/burgrp-go/meshbridge/pkg/keys"
	"github.com/burgrp-go/meshbridge/pkg/p2pnet"
	"github.com/burgrp-go/meshbridge/pkg/rpcnet"
	"github.com/burgrp-go/meshbridge/pkg/telemetry"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

// Runtime is the process-wide handle Init constructs and every
// subsequent entry point takes by reference.
type Runtime struct {
	Config   *config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry

	mu      sync.Mutex
	closers []func() error
}

func (rt *Runtime) addCloser(c func() error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.closers = append(rt.closers, c)
}

// Init loads configuration (from the path named by MESHBRIDGE_CONFIG,
// or defaults if unset) and constructs the logger and metrics registry
// every other entry point shares.
func Init() (*Runtime, error) {
	cfg, err := config.Load(os.Getenv("MESHBRIDGE_CONFIG"))
	if err != nil {
		return nil, fmt.Errorf("netapp: init: %w", err)
	}

	log, err := telemetry.NewLogger(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("netapp: init: %w", err)
	}

	return &Runtime{
		Config:   cfg,
		Log:      log,
		Registry: telemetry.NewRegistry(),
	}, nil
}

// Run blocks until ctx is canceled, then closes every resource
// NetworkStart and StartDiscovery registered, in reverse-dependency
// order (spec §5 "reverse-dependency shutdown order").
func Run(ctx context.Context, rt *Runtime) error {
	<-ctx.Done()

	rt.mu.Lock()
	closers := make([]func() error, len(rt.closers))
	copy(closers, rt.closers)
	rt.mu.Unlock()

	// A limit of one makes each Go call wait for the previous closer to
	// finish, so closers run one at a time in reverse registration order.
	var g errgroup.Group
	g.SetLimit(1)
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		g.Go(c)
	}
	if err := g.Wait(); err != nil {
		rt.Log.Warn("netapp: error during shutdown", zap.Error(err))
		return err
	}
	return ctx.Err()
}

// Overlay bundles the pieces of NetworkStart's wiring that StartDiscovery
// needs to seed with peers learned from multicast beacons.
type Overlay struct {
	Self   types.PeerAddr
	Port   uint16
	Table  *dht.Table
	Router *p2pnet.Router
}

// NetworkStart binds the P2P and RPC sockets, constructs every core
// component and wires the cyclic Bridge/Router dependencies via the
// Set*Sink/SetHandler registration handshake, returning a handle to the
// Bridge that application handlers register against and the Overlay
// handle StartDiscovery needs.
func NetworkStart(ctx context.Context, rt *Runtime, p2pAddr *net.UDPAddr, rpcAddr *net.TCPAddr, priv keys.PrivateKey) (*bridge.Bridge, Overlay, error) {
	if priv.IsZero() {
		return nil, Overlay{}, fmt.Errorf("netapp: network start: private key is required")
	}
	selfAddr, err := priv.PublicKey()
	if err != nil {
		return nil, Overlay{}, fmt.Errorf("netapp: network start: %w", err)
	}

	p2pConn, err := net.ListenUDP("udp", p2pAddr)
	if err != nil {
		return nil, Overlay{}, fmt.Errorf("netapp: bind p2p socket: %w", err)
	}

	rpcListener, err := net.ListenTCP("tcp", rpcAddr)
	if err != nil {
		p2pConn.Close()
		return nil, Overlay{}, fmt.Errorf("netapp: bind rpc socket: %w", err)
	}

	metrics := bridge.NewMetrics(rt.Registry)
	b := bridge.New(nil, nil,
		bridge.WithLogger(rt.Log),
		bridge.WithMetrics(metrics),
		bridge.WithRetryAttempts(rt.Config.P2P.RetryAttempts),
	)

	table := dht.NewTable(selfAddr)

	fragmentTimeout := time.Duration(rt.Config.Wire.FragmentEvictionSeconds) * time.Second
	session := p2pnet.NewSession(p2pConn, rt.Log, p2pnet.WithFragmentTimeout(fragmentTimeout))
	router := p2pnet.NewRouter(priv, selfAddr, session, b,
		p2pnet.WithLogger(rt.Log),
		p2pnet.WithTable(table),
	)
	session.SetHandler(router)
	b.SetP2PSink(router)

	rpcSession := rpcnet.NewSession(rpcListener, rt.Log)
	rpcRouter := rpcnet.NewRouter(rpcSession, b, rt.Log)
	rpcSession.SetHandler(rpcRouter)
	b.SetRPCSink(rpcRouter)

	rt.addCloser(session.Close)
	rt.addCloser(rpcSession.Close)

	rt.Log.Info("netapp: network started",
		zap.String("self", selfAddr.String()),
		zap.String("p2p_addr", p2pConn.LocalAddr().String()),
		zap.String("rpc_addr", rpcListener.Addr().String()),
	)

	overlay := Overlay{
		Self:   selfAddr,
		Port:   uint16(p2pConn.LocalAddr().(*net.UDPAddr).Port),
		Table:  table,
		Router: router,
	}
	return b, overlay, nil
}

// StartDiscovery joins the multicast bootstrap group for gid on the
// named network interface, announcing ov.Self/ov.Port and feeding
// discovered peers into ov.Table and ov.Router. It is a no-op returning
// nil when Config.Discovery.Enabled is false.
func StartDiscovery(rt *Runtime, gid types.GroupID, ov Overlay, ifaceName string) (*discovery.Announcer, error) {
	if !rt.Config.Discovery.Enabled {
		return nil, nil
	}

	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("netapp: discovery interface %q: %w", ifaceName, err)
	}

	a, err := discovery.New(iface, gid, ov.Self, ov.Port, ov.Table, ov.Router, rt.Log)
	if err != nil {
		return nil, fmt.Errorf("netapp: start discovery: %w", err)
	}

	rt.addCloser(a.Close)
	return a, nil
}
