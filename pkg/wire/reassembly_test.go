package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/burgrp-go/meshbridge/pkg/keys"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

func TestReassemblerSingleChunkFrame(t *testing.T) {
	from, priv, err := keys.Generate()
	require.NoError(t, err)
	to, _, err := keys.Generate()
	require.NoError(t, err)

	h := NewHeader(Version0, types.GroupID{0x01}, from, to)
	encoded, err := EncodeFrame(h, NewEvent([]byte("small")), priv)
	require.NoError(t, err)

	chunks := SplitIntoChunks(encoded, len(encoded))
	require.Len(t, chunks, 1)

	r := NewReassembler(time.Second)
	defer r.Close()

	frame, ok := r.Put(chunks[0].Encode())
	require.True(t, ok)
	require.Equal(t, KindEvent, frame.Content.Kind)
	require.Equal(t, []byte("small"), frame.Content.Event)
}

// S4: large frame fragmentation across many datagrams, sent tail-first.
func TestReassemblerLargeFrameFragmentation(t *testing.T) {
	from, priv, err := keys.Generate()
	require.NoError(t, err)
	to, _, err := keys.Generate()
	require.NoError(t, err)

	payload := make([]byte, 200000)
	for i := range payload {
		payload[i] = byte(i)
	}

	h := NewHeader(Version0, types.GroupID{0x01}, from, to)
	encoded, err := EncodeFrame(h, NewEvent(payload), priv)
	require.NoError(t, err)

	chunks := SplitIntoChunks(encoded, 1400)
	require.Greater(t, len(chunks), 1)

	r := NewReassembler(time.Second)
	defer r.Close()

	var frame Frame
	var ok bool
	for i := len(chunks) - 1; i >= 0; i-- {
		frame, ok = r.Put(chunks[i].Encode())
	}

	require.True(t, ok)
	require.Equal(t, KindEvent, frame.Content.Kind)
	require.Equal(t, payload, frame.Content.Event)
	require.Equal(t, 0, r.Pending())
}

func TestReassemblerEvictsOrphanedFragments(t *testing.T) {
	r := NewReassembler(30 * time.Millisecond)
	defer r.Close()

	chunks := SplitIntoChunks(make([]byte, 5000), 1000)
	require.Greater(t, len(chunks), 1)

	// feed everything except the head chunk: it should never complete,
	// and eviction should reclaim the orphaned buffer.
	for i := len(chunks) - 1; i >= 1; i-- {
		_, ok := r.Put(chunks[i].Encode())
		require.False(t, ok)
	}
	require.Greater(t, r.Pending(), 0)

	require.Eventually(t, func() bool {
		return r.Pending() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestDecodeChunkRejectsShortBuffer(t *testing.T) {
	_, ok := DecodeChunk([]byte{1, 2, 3})
	require.False(t, ok)
}
