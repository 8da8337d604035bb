package commands

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/burgrp-go/meshbridge/pkg/multigroup"
	"github.com/burgrp-go/meshbridge/pkg/netapp"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

const greetInterval = 3 * time.Second

func GetJoinCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a group's overlay and print peer/event activity",
		Long: `Binds a node to the P2P and RPC sockets, registers a handler for the group
named by MESHCTL_GROUP, and prints every peer-join/peer-leave/event it sees
until interrupted. Peers discovered via multicast bootstrap are greeted
automatically with a Hello.`,
		RunE: runJoin,
	}

	cmd.Flags().String("listen", "[::]:0", "P2P UDP listen address")
	cmd.Flags().String("rpc-listen", "127.0.0.1:0", "RPC TCP listen address")
	cmd.Flags().String("info", "", "Peer info advertised in this node's Hello")

	return cmd
}

func runJoin(cmd *cobra.Command, args []string) error {
	env, err := GetEnvironment()
	if err != nil {
		return err
	}

	listen, err := cmd.Flags().GetString("listen")
	if err != nil {
		return err
	}
	rpcListen, err := cmd.Flags().GetString("rpc-listen")
	if err != nil {
		return err
	}
	info, err := cmd.Flags().GetString("info")
	if err != nil {
		return err
	}

	rt, err := netapp.Init()
	if err != nil {
		return err
	}

	_, priv, err := loadOrGenerateKey(env.KeyFile)
	if err != nil {
		return err
	}

	p2pAddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return err
	}
	rpcAddr, err := net.ResolveTCPAddr("tcp", rpcListen)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	b, overlay, err := netapp.NetworkStart(ctx, rt, p2pAddr, rpcAddr, priv)
	if err != nil {
		return err
	}
	fmt.Printf("self: %s\n", overlay.Self.String())

	adapter := multigroup.New(env.GroupID, b, multigroup.InnerHandlerFunc(printUnqualified))
	adapter.Start()

	if _, err := netapp.StartDiscovery(rt, env.GroupID, overlay, env.Interface); err != nil {
		return err
	}

	go greetDiscoveredPeers(ctx, adapter, overlay, []byte(info))

	return netapp.Run(ctx, rt)
}

func printUnqualified(_ context.Context, msg multigroup.Unqualified) error {
	switch m := msg.(type) {
	case multigroup.UnqualifiedPeerJoin:
		fmt.Printf("peer-join %s info=%q\n", m.Peer.String(), string(m.Info))
	case multigroup.UnqualifiedPeerJoinResult:
		fmt.Printf("peer-join-result %s ok=%v help-peers=%d\n", m.Peer.String(), m.OK, len(m.HelpPeers))
	case multigroup.UnqualifiedPeerLeave:
		fmt.Printf("peer-leave %s all=%v\n", m.Peer.String(), m.All)
	case multigroup.UnqualifiedEvent:
		fmt.Printf("event from=%s payload=%q\n", m.Peer.String(), string(m.Event))
	}
	return nil
}

// greetDiscoveredPeers sends a Hello, on every tick until ctx is
// canceled, to each of the 32 peers in the overlay table closest to this
// node that it hasn't already greeted; peers farther away than those 32
// are not greeted.
func greetDiscoveredPeers(ctx context.Context, adapter *multigroup.Adapter, overlay netapp.Overlay, info []byte) {
	if overlay.Table == nil {
		return
	}

	greeted := make(map[types.PeerAddr]struct{})
	ticker := time.NewTicker(greetInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, peer := range overlay.Table.Closest(overlay.Self, 32) {
				if _, done := greeted[peer]; done {
					continue
				}
				greeted[peer] = struct{}{}
				_ = adapter.Emit(ctx, multigroup.UnqualifiedPeerJoin{Peer: peer, Info: info})
			}
		}
	}
}
