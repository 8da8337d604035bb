package rpcnet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/burgrp-go/meshbridge/pkg/types"
)

func TestClientLocalRoundTrip(t *testing.T) {
	listener, b, app := newTestServer(t)
	gid := types.GroupID{0x03}
	b.Register(gid, app)

	client, err := Dial(listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ok, params, err := client.Local(gid, []byte("ping"), 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("ack"), params)
}

func TestClientLevelPermissionReportsUnregisteredGroup(t *testing.T) {
	listener, _, _ := newTestServer(t)

	client, err := Dial(listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ok, err := client.LevelPermission(types.GroupID{0xEE}, []byte("perm"), 2*time.Second)
	require.NoError(t, err)
	require.False(t, ok)
}
