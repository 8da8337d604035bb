package wire

import (
	"fmt"

	"github.com/burgrp-go/meshbridge/pkg/keys"
)

// Frame is a decoded (Header, Content) pair, the unit the P2P Session
// hands to the P2P Router.
type Frame struct {
	Header  Header
	Content Content
	// RawBody is the exact body bytes the header's signature covers;
	// kept alongside Content because re-marshaling Content is not
	// guaranteed to reproduce byte-identical CBOR.
	RawBody []byte
}

// EncodeFrame serializes body, stamps header.Len, signs
// len||ver||gid||from||to||body with priv, and returns the full
// header+body byte string (spec §4.1 "Outbound").
func EncodeFrame(h Header, body Content, priv keys.PrivateKey) ([]byte, error) {
	bodyBytes, err := body.Marshal()
	if err != nil {
		return nil, fmt.Errorf("wire: encode body: %w", err)
	}

	h.Len = uint32(len(bodyBytes))
	h.Sign = keys.Sign(priv, signedPayload(h, bodyBytes))

	encodedHeader := h.Encode()
	out := make([]byte, 0, HeaderLength+len(bodyBytes))
	out = append(out, encodedHeader[:]...)
	out = append(out, bodyBytes...)
	return out, nil
}

// VerifyFrame recomputes the signed payload and checks it against
// header.Sign and header.From (spec §4.3 "Verify").
func VerifyFrame(h Header, bodyBytes []byte) bool {
	return keys.Verify(h.From, signedPayload(h, bodyBytes), h.Sign)
}

// DecodeFrame implements Strategy B: a pure, stateless decode of exactly
// one frame from a single UDP datagram payload.
//
// It returns ok=false (consuming nothing) when buf is shorter than the
// header, or shorter than header.Len declares the frame to be (spec §8
// property 3, "Truncation tolerance"). A body that fails to deserialize
// yields Content{Kind: KindNone} rather than an error (spec §4.1).
func DecodeFrame(buf []byte) (frame Frame, consumed int, ok bool) {
	if len(buf) < HeaderLength {
		return Frame{}, 0, false
	}

	h, err := DecodeHeader(buf)
	if err != nil {
		return Frame{}, 0, false
	}

	total := HeaderLength + int(h.Len)
	if len(buf) < total {
		return Frame{}, 0, false
	}

	bodyBytes := buf[HeaderLength:total]
	content := UnmarshalContent(bodyBytes)

	rawBody := make([]byte, len(bodyBytes))
	copy(rawBody, bodyBytes)

	return Frame{Header: h, Content: content, RawBody: rawBody}, total, true
}
