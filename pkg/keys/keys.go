// Package keys provides the cryptographic primitives the wire codec and
// P2P router consume: keypair generation, signing, verification and
// content hashing.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/burgrp-go/meshbridge/pkg/types"
)

// SignatureLength is the byte length of an Ed25519 signature.
const SignatureLength = ed25519.SignatureSize

// PrivateKeyLength is the byte length of an Ed25519 private key.
const PrivateKeyLength = ed25519.PrivateKeySize

// Signature is a detached signature over an arbitrary byte vector.
type Signature [SignatureLength]byte

// PrivateKey signs byte vectors on behalf of a PeerAddr.
type PrivateKey struct {
	raw ed25519.PrivateKey
}

// Generate creates a new random keypair.
func Generate() (types.PeerAddr, PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return types.PeerAddr{}, PrivateKey{}, fmt.Errorf("keys: generate: %w", err)
	}

	pk, err := types.HashFromBytes(pub)
	if err != nil {
		return types.PeerAddr{}, PrivateKey{}, fmt.Errorf("keys: generate: %w", err)
	}

	return pk, PrivateKey{raw: priv}, nil
}

// PrivateKeyFromBytes parses a raw Ed25519 private key.
func PrivateKeyFromBytes(b []byte) (PrivateKey, error) {
	if len(b) != PrivateKeyLength {
		return PrivateKey{}, fmt.Errorf("keys: want %d bytes, got %d", PrivateKeyLength, len(b))
	}
	raw := make(ed25519.PrivateKey, PrivateKeyLength)
	copy(raw, b)
	return PrivateKey{raw: raw}, nil
}

// Bytes returns the raw private key bytes.
func (p PrivateKey) Bytes() []byte {
	out := make([]byte, PrivateKeyLength)
	copy(out, p.raw)
	return out
}

// PublicKey derives the public key (peer address) for this private key.
func (p PrivateKey) PublicKey() (types.PeerAddr, error) {
	pub, ok := p.raw.Public().(ed25519.PublicKey)
	if !ok {
		return types.PeerAddr{}, fmt.Errorf("keys: unexpected public key type")
	}
	return types.HashFromBytes(pub)
}

// IsZero reports whether p holds no key material.
func (p PrivateKey) IsZero() bool {
	return len(p.raw) == 0
}

// Sign signs data with the private key.
func Sign(priv PrivateKey, data []byte) Signature {
	var sig Signature
	if priv.IsZero() {
		return sig
	}
	copy(sig[:], ed25519.Sign(priv.raw, data))
	return sig
}

// Verify checks a signature against data and a public key.
func Verify(pub types.PeerAddr, data []byte, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), data, sig[:])
}

// Hash computes the content hash used to derive AppID/EventID values.
func Hash(data []byte) types.Hash256 {
	return sha256.Sum256(data)
}
