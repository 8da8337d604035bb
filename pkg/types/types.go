// Package types defines the value types shared across the mesh bridge:
// 32-byte hash identifiers and peer addresses.
package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashLength is the byte length of every identifier in the data model.
const HashLength = 32

// Hash256 is a 32-byte value type used for GroupID, EventID and AppID.
type Hash256 [HashLength]byte

// GroupID identifies a logical overlay shared by frames and bridge messages.
type GroupID = Hash256

// EventID identifies an application event.
type EventID = Hash256

// AppID identifies a registered application.
type AppID = Hash256

// PeerAddr is a peer's public key, used as its address on the overlay.
type PeerAddr = Hash256

// HashFromBytes builds a Hash256 from a byte slice of exactly HashLength bytes.
func HashFromBytes(b []byte) (Hash256, error) {
	var h Hash256
	if len(b) != HashLength {
		return h, fmt.Errorf("types: want %d bytes, got %d", HashLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Bytes returns the identifier's byte slice form.
func (h Hash256) Bytes() []byte {
	out := make([]byte, HashLength)
	copy(out, h[:])
	return out
}

// String renders the identifier as lowercase hex.
func (h Hash256) String() string {
	return hex.EncodeToString(h[:])
}

// Compare orders two identifiers lexicographically by byte value.
func (h Hash256) Compare(o Hash256) int {
	return bytes.Compare(h[:], o[:])
}

// Less reports whether h sorts before o.
func (h Hash256) Less(o Hash256) bool {
	return h.Compare(o) < 0
}

// IsZero reports whether the identifier is the zero value.
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// MarshalJSON renders the identifier as a hex string, for JSON-framed
// RPC requests and responses.
func (h Hash256) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON parses a hex string identifier.
func (h *Hash256) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("types: invalid hex identifier: %w", err)
	}
	parsed, err := HashFromBytes(decoded)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
