package p2pnet

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/burgrp-go/meshbridge/pkg/bridge"
	"github.com/burgrp-go/meshbridge/pkg/keys"
	"github.com/burgrp-go/meshbridge/pkg/types"
	"github.com/burgrp-go/meshbridge/pkg/wire"
)

type recordingHandler struct {
	mu       sync.Mutex
	received []bridge.Message
}

func (h *recordingHandler) HandleBridgeMessage(_ context.Context, msg bridge.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, msg)
	return nil
}

func (h *recordingHandler) all() []bridge.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]bridge.Message, len(h.received))
	copy(out, h.received)
	return out
}

func newTestRouter(t *testing.T, b *bridge.Bridge) (*Router, types.PeerAddr, keys.PrivateKey) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	session := NewSession(conn, nil)
	t.Cleanup(func() { _ = session.Close() })

	selfAddr, selfPriv, err := keys.Generate()
	require.NoError(t, err)

	r := NewRouter(selfPriv, selfAddr, session, b)
	session.SetHandler(r)
	return r, selfAddr, selfPriv
}

func signedFrame(t *testing.T, gid types.GroupID, from types.PeerAddr, priv keys.PrivateKey, to types.PeerAddr, content wire.Content) wire.Frame {
	t.Helper()
	header := wire.NewHeader(wire.Version0, gid, from, to)
	bodyBytes, err := content.Marshal()
	require.NoError(t, err)
	frameBytes, err := wire.EncodeFrame(header, content, priv)
	require.NoError(t, err)
	decodedHeader, err := wire.DecodeHeader(frameBytes[:wire.HeaderLength])
	require.NoError(t, err)
	return wire.Frame{Header: decodedHeader, Content: content, RawBody: bodyBytes}
}

func TestRouterDropsFrameForUnregisteredGroup(t *testing.T) {
	appHandler := &recordingHandler{}
	b := bridge.New(&recordingHandler{}, &recordingHandler{})
	r, selfAddr, _ := newTestRouter(t, b)

	peerAddr, peerPriv, err := keys.Generate()
	require.NoError(t, err)
	gid := types.GroupID{0x42} // never registered

	frame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewHello([]byte("info")))
	err = r.HandleFrame(context.Background(), frame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999})
	require.NoError(t, err)

	require.Equal(t, StateUnknown, r.PeerState(peerAddr))
	require.Empty(t, appHandler.all())
}

func TestRouterDropsFrameWithInvalidSignature(t *testing.T) {
	appHandler := &recordingHandler{}
	b := bridge.New(&recordingHandler{}, &recordingHandler{})
	gid := types.GroupID{0x01}
	b.Register(gid, appHandler)
	r, selfAddr, _ := newTestRouter(t, b)

	peerAddr, _, err := keys.Generate()
	require.NoError(t, err)
	_, wrongPriv, err := keys.Generate()
	require.NoError(t, err)

	// signed with a key that does not match peerAddr: verification must fail.
	frame := signedFrame(t, gid, peerAddr, wrongPriv, selfAddr, wire.NewHello([]byte("info")))
	err = r.HandleFrame(context.Background(), frame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999})
	require.NoError(t, err)

	require.Equal(t, StateUnknown, r.PeerState(peerAddr))
}

func TestRouterHelloTransitionsToPendingAndNotifiesHandler(t *testing.T) {
	appHandler := &recordingHandler{}
	b := bridge.New(&recordingHandler{}, &recordingHandler{})
	gid := types.GroupID{0x01}
	b.Register(gid, appHandler)
	r, selfAddr, _ := newTestRouter(t, b)

	peerAddr, peerPriv, err := keys.Generate()
	require.NoError(t, err)

	frame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewHello([]byte("info")))
	err = r.HandleFrame(context.Background(), frame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999})
	require.NoError(t, err)

	require.Equal(t, StatePending, r.PeerState(peerAddr))
	require.Equal(t, []bridge.Message{
		bridge.PeerJoinMessage{GID: gid, Peer: peerAddr, Info: []byte("info")},
	}, appHandler.all())
}

func TestRouterHelloResultAcceptTransitionsToLive(t *testing.T) {
	appHandler := &recordingHandler{}
	b := bridge.New(&recordingHandler{}, &recordingHandler{})
	gid := types.GroupID{0x01}
	b.Register(gid, appHandler)
	r, selfAddr, _ := newTestRouter(t, b)

	peerAddr, peerPriv, err := keys.Generate()
	require.NoError(t, err)

	helloFrame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewHello([]byte("info")))
	require.NoError(t, r.HandleFrame(context.Background(), helloFrame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}))
	require.Equal(t, StatePending, r.PeerState(peerAddr))

	resultFrame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewHelloResult(true, nil))
	require.NoError(t, r.HandleFrame(context.Background(), resultFrame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}))

	require.Equal(t, StateLive, r.PeerState(peerAddr))
}

func TestRouterEventOnlyForwardedWhenLive(t *testing.T) {
	appHandler := &recordingHandler{}
	b := bridge.New(&recordingHandler{}, &recordingHandler{})
	gid := types.GroupID{0x01}
	b.Register(gid, appHandler)
	r, selfAddr, _ := newTestRouter(t, b)

	peerAddr, peerPriv, err := keys.Generate()
	require.NoError(t, err)

	eventFrame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewEvent([]byte("dropped")))
	require.NoError(t, r.HandleFrame(context.Background(), eventFrame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}))
	require.Empty(t, appHandler.all())

	helloFrame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewHello([]byte("info")))
	require.NoError(t, r.HandleFrame(context.Background(), helloFrame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}))
	resultFrame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewHelloResult(true, nil))
	require.NoError(t, r.HandleFrame(context.Background(), resultFrame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}))

	liveEventFrame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewEvent([]byte("delivered")))
	require.NoError(t, r.HandleFrame(context.Background(), liveEventFrame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}))

	received := appHandler.all()
	require.Len(t, received, 3) // PeerJoin, PeerJoinResult, Event
	evt, ok := received[2].(bridge.EventMessage)
	require.True(t, ok)
	require.Equal(t, []byte("delivered"), evt.Event)
}

func TestRouterByeResetsToUnknownAndNotifies(t *testing.T) {
	appHandler := &recordingHandler{}
	b := bridge.New(&recordingHandler{}, &recordingHandler{})
	gid := types.GroupID{0x01}
	b.Register(gid, appHandler)
	r, selfAddr, _ := newTestRouter(t, b)

	peerAddr, peerPriv, err := keys.Generate()
	require.NoError(t, err)

	helloFrame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewHello([]byte("info")))
	require.NoError(t, r.HandleFrame(context.Background(), helloFrame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}))
	resultFrame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewHelloResult(true, nil))
	require.NoError(t, r.HandleFrame(context.Background(), resultFrame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}))
	require.Equal(t, StateLive, r.PeerState(peerAddr))

	byeFrame := signedFrame(t, gid, peerAddr, peerPriv, selfAddr, wire.NewBye())
	require.NoError(t, r.HandleFrame(context.Background(), byeFrame, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}))

	require.Equal(t, StateUnknown, r.PeerState(peerAddr))
	received := appHandler.all()
	last := received[len(received)-1].(bridge.PeerLeaveMessage)
	require.False(t, last.All)
}

func TestRouterMarkUnreachableNotifiesAllGroupsLost(t *testing.T) {
	appHandler := &recordingHandler{}
	b := bridge.New(&recordingHandler{}, &recordingHandler{})
	gid := types.GroupID{0x01}
	b.Register(gid, appHandler)
	r, _, _ := newTestRouter(t, b)

	peerAddr := types.PeerAddr{0x55}
	r.MarkUnreachable(context.Background(), gid, peerAddr)

	require.Equal(t, StateUnknown, r.PeerState(peerAddr))
	received := appHandler.all()
	require.Len(t, received, 1)
	leave, ok := received[0].(bridge.PeerLeaveMessage)
	require.True(t, ok)
	require.True(t, leave.All)
}
