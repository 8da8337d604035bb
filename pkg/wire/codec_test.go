package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/burgrp-go/meshbridge/pkg/keys"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

func testHeader(t *testing.T) (Header, keys.PrivateKey) {
	t.Helper()
	from, priv, err := keys.Generate()
	require.NoError(t, err)
	to, _, err := keys.Generate()
	require.NoError(t, err)

	gid := types.GroupID{0x01}
	return NewHeader(Version0, gid, from, to), priv
}

// property 1: header round-trip.
func TestHeaderRoundTrip(t *testing.T) {
	h, _ := testHeader(t)
	h.Len = 42
	h.Sign = keys.Signature{0xAB}

	encoded := h.Encode()
	decoded, err := DecodeHeader(encoded[:])
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

// property 2: frame round-trip.
func TestFrameRoundTrip(t *testing.T) {
	h, priv := testHeader(t)
	body := NewEvent([]byte{0xDE, 0xAD, 0xBE, 0xEF})

	encoded, err := EncodeFrame(h, body, priv)
	require.NoError(t, err)

	frame, consumed, ok := DecodeFrame(encoded)
	require.True(t, ok)
	require.Equal(t, len(encoded), consumed)
	require.Equal(t, h.GID, frame.Header.GID)
	require.Equal(t, h.From, frame.Header.From)
	require.Equal(t, h.To, frame.Header.To)
	require.Equal(t, KindEvent, frame.Content.Kind)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, frame.Content.Event)
}

// property 3: truncation tolerance.
func TestDecodeFrameTruncationTolerance(t *testing.T) {
	h, priv := testHeader(t)
	encoded, err := EncodeFrame(h, NewEvent([]byte("hello world")), priv)
	require.NoError(t, err)

	short := encoded[:len(encoded)-1]
	_, consumed, ok := DecodeFrame(short)
	require.False(t, ok)
	require.Equal(t, 0, consumed)

	tooShortForHeader := encoded[:HeaderLength-1]
	_, _, ok = DecodeFrame(tooShortForHeader)
	require.False(t, ok)
}

// property 4 (half): signature enforcement at the codec/verify boundary.
func TestVerifyFrameDetectsTamperedSignature(t *testing.T) {
	h, priv := testHeader(t)
	body := NewEvent([]byte("payload"))
	encoded, err := EncodeFrame(h, body, priv)
	require.NoError(t, err)

	// tamper with a signature byte.
	encoded[offsetSign] ^= 0xFF

	frame, _, ok := DecodeFrame(encoded)
	require.True(t, ok)
	require.False(t, VerifyFrame(frame.Header, frame.RawBody))
}

func TestVerifyFrameAcceptsUntamperedFrame(t *testing.T) {
	h, priv := testHeader(t)
	encoded, err := EncodeFrame(h, NewEvent([]byte("payload")), priv)
	require.NoError(t, err)

	frame, _, ok := DecodeFrame(encoded)
	require.True(t, ok)
	require.True(t, VerifyFrame(frame.Header, frame.RawBody))
}

// S5: corrupt body (header claims len=10, only 4 body bytes present).
func TestDecodeFrameCorruptBodyYieldsNoFrame(t *testing.T) {
	h, priv := testHeader(t)
	h.Len = 10
	h.Sign = keys.Sign(priv, signedPayload(h, make([]byte, 10)))

	encodedHeader := h.Encode()
	buf := append(encodedHeader[:], []byte{1, 2, 3, 4}...)

	_, consumed, ok := DecodeFrame(buf)
	require.False(t, ok)
	require.Equal(t, 0, consumed)
}

func TestDecodeFrameMalformedBodyYieldsNoneContent(t *testing.T) {
	h, priv := testHeader(t)
	garbage := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	h.Len = uint32(len(garbage))
	h.Sign = keys.Sign(priv, signedPayload(h, garbage))

	encodedHeader := h.Encode()
	buf := append(encodedHeader[:], garbage...)

	frame, _, ok := DecodeFrame(buf)
	require.True(t, ok)
	require.Equal(t, KindNone, frame.Content.Kind)
}
