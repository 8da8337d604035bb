package wire

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/burgrp-go/meshbridge/pkg/types"
)

// Kind discriminates the tagged union of frame body variants.
type Kind uint8

const (
	// KindNone is the decode-failure sentinel.
	KindNone Kind = iota
	KindPing
	KindPong
	KindHello
	KindHelloResult
	KindBye
	KindEvent
)

// Content is the self-describing frame body. Only the fields relevant to
// Kind are populated; others are left zero and omitted from the wire form.
type Content struct {
	Kind Kind `cbor:"1,keyasint"`

	// Hello
	PeerInfo []byte `cbor:"2,keyasint,omitempty"`

	// HelloResult
	Accept bool            `cbor:"3,keyasint,omitempty"`
	Peers  []types.PeerAddr `cbor:"4,keyasint,omitempty"`

	// Event
	Event []byte `cbor:"5,keyasint,omitempty"`
}

// NewPing builds a Ping content variant.
func NewPing() Content { return Content{Kind: KindPing} }

// NewPong builds a Pong content variant.
func NewPong() Content { return Content{Kind: KindPong} }

// NewHello builds a Hello (peer-join request) content variant.
func NewHello(peerInfo []byte) Content {
	return Content{Kind: KindHello, PeerInfo: peerInfo}
}

// NewHelloResult builds a HelloResult content variant.
func NewHelloResult(accept bool, peers []types.PeerAddr) Content {
	return Content{Kind: KindHelloResult, Accept: accept, Peers: peers}
}

// NewBye builds a Bye (peer-leave) content variant.
func NewBye() Content { return Content{Kind: KindBye} }

// NewEvent builds an Event (opaque application payload) content variant.
func NewEvent(payload []byte) Content {
	return Content{Kind: KindEvent, Event: payload}
}

// NewNone builds the decode-failure sentinel content variant.
func NewNone() Content { return Content{Kind: KindNone} }

// Marshal serializes the content as CBOR.
func (c Content) Marshal() ([]byte, error) {
	return cbor.Marshal(c)
}

// UnmarshalContent decodes CBOR bytes into a Content; on any failure it
// returns the None sentinel rather than an error, per spec §4.1.
func UnmarshalContent(b []byte) Content {
	var c Content
	if err := cbor.Unmarshal(b, &c); err != nil {
		return NewNone()
	}
	return c
}
