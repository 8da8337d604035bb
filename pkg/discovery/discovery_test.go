package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/burgrp-go/meshbridge/pkg/types"
)

func TestPortForGroupIsDeterministicAndInRange(t *testing.T) {
	gid := types.GroupID{0x01, 0x02, 0x03}

	p1 := portForGroup(gid)
	p2 := portForGroup(gid)
	require.Equal(t, p1, p2)
	require.GreaterOrEqual(t, p1, 1024)
	require.LessOrEqual(t, p1, 49151)
}

func TestPortForGroupDiffersAcrossGroups(t *testing.T) {
	a := types.GroupID{0x01}
	b := types.GroupID{0x02}
	require.NotEqual(t, portForGroup(a), portForGroup(b))
}

func TestBeaconEncodeDecodeRoundTrip(t *testing.T) {
	want := beacon{
		Group: types.GroupID{0xAA, 0xBB},
		Peer:  types.PeerAddr{0xCC, 0xDD},
		Port:  4242,
	}

	got, ok := decodeBeacon(encodeBeacon(want))
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestDecodeBeaconRejectsWrongMagic(t *testing.T) {
	encoded := encodeBeacon(beacon{Group: types.GroupID{0x01}, Peer: types.PeerAddr{0x02}, Port: 1})
	encoded[0] = 'X'

	_, ok := decodeBeacon(encoded)
	require.False(t, ok)
}

func TestDecodeBeaconRejectsTruncatedPayload(t *testing.T) {
	encoded := encodeBeacon(beacon{Group: types.GroupID{0x01}, Peer: types.PeerAddr{0x02}, Port: 1})

	_, ok := decodeBeacon(encoded[:len(encoded)-1])
	require.False(t, ok)
}
