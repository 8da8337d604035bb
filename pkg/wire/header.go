// Package wire implements the frame codec: the fixed 166-byte header,
// the CBOR-encoded body tagged union, and both inbound decode
// strategies described by the protocol (single-datagram and
// multi-datagram reassembly).
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/burgrp-go/meshbridge/pkg/keys"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

// HeaderLength is the fixed byte length of a frame header.
const HeaderLength = 4 + 2 + types.HashLength + types.HashLength + types.HashLength + keys.SignatureLength

const (
	offsetLen   = 0
	offsetVer   = 4
	offsetGID   = 6
	offsetFrom  = offsetGID + types.HashLength
	offsetTo    = offsetFrom + types.HashLength
	offsetSign  = offsetTo + types.HashLength
	signedUpTo  = offsetSign // everything before sign is part of the signed payload
)

// Version0 is the only body schema defined by this implementation.
const Version0 uint16 = 0

// Header is the fixed-layout, big-endian frame header (spec §3).
type Header struct {
	Len  uint32
	Ver  uint16
	GID  types.GroupID
	From types.PeerAddr
	To   types.PeerAddr
	Sign keys.Signature
}

// NewHeader builds a header with the signature left zeroed; Encode (via
// EncodeFrame) fills it in once the body length is known.
func NewHeader(ver uint16, gid types.GroupID, from, to types.PeerAddr) Header {
	return Header{Ver: ver, GID: gid, From: from, To: to}
}

// Encode serializes the header into its fixed 166-byte wire form.
func (h Header) Encode() [HeaderLength]byte {
	var buf [HeaderLength]byte
	binary.BigEndian.PutUint32(buf[offsetLen:], h.Len)
	binary.BigEndian.PutUint16(buf[offsetVer:], h.Ver)
	copy(buf[offsetGID:offsetFrom], h.GID[:])
	copy(buf[offsetFrom:offsetTo], h.From[:])
	copy(buf[offsetTo:offsetSign], h.To[:])
	copy(buf[offsetSign:HeaderLength], h.Sign[:])
	return buf
}

// DecodeHeader parses a 166-byte header. It does not validate the
// signature — that is the P2P Router's job.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLength {
		return Header{}, fmt.Errorf("wire: short header: %d bytes", len(buf))
	}

	var h Header
	h.Len = binary.BigEndian.Uint32(buf[offsetLen:])
	h.Ver = binary.BigEndian.Uint16(buf[offsetVer:])
	copy(h.GID[:], buf[offsetGID:offsetFrom])
	copy(h.From[:], buf[offsetFrom:offsetTo])
	copy(h.To[:], buf[offsetTo:offsetSign])
	copy(h.Sign[:], buf[offsetSign:HeaderLength])
	return h, nil
}

// signedPayload returns len||ver||gid||from||to||body, the bytes that are
// actually signed and verified.
func signedPayload(h Header, body []byte) []byte {
	var prefix [signedUpTo]byte
	binary.BigEndian.PutUint32(prefix[offsetLen:], h.Len)
	binary.BigEndian.PutUint16(prefix[offsetVer:], h.Ver)
	copy(prefix[offsetGID:offsetFrom], h.GID[:])
	copy(prefix[offsetFrom:offsetTo], h.From[:])
	copy(prefix[offsetTo:signedUpTo], h.To[:])

	out := make([]byte, 0, signedUpTo+len(body))
	out = append(out, prefix[:]...)
	out = append(out, body...)
	return out
}
