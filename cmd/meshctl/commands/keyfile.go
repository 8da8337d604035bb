package commands

import (
	"fmt"
	"os"

	"github.com/burgrp-go/meshbridge/pkg/keys"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

// loadOrGenerateKey reads a raw Ed25519 private key from path, or
// generates one and writes it there if path doesn't exist yet. An empty
// path always generates an ephemeral, unsaved key.
func loadOrGenerateKey(path string) (types.PeerAddr, keys.PrivateKey, error) {
	if path == "" {
		return keys.Generate()
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		priv, err := keys.PrivateKeyFromBytes(raw)
		if err != nil {
			return types.PeerAddr{}, keys.PrivateKey{}, fmt.Errorf("parsing key file %s: %w", path, err)
		}
		self, err := priv.PublicKey()
		if err != nil {
			return types.PeerAddr{}, keys.PrivateKey{}, err
		}
		return self, priv, nil
	}
	if !os.IsNotExist(err) {
		return types.PeerAddr{}, keys.PrivateKey{}, fmt.Errorf("reading key file %s: %w", path, err)
	}

	self, priv, err := keys.Generate()
	if err != nil {
		return types.PeerAddr{}, keys.PrivateKey{}, err
	}
	if err := os.WriteFile(path, priv.Bytes(), 0o600); err != nil {
		return types.PeerAddr{}, keys.PrivateKey{}, fmt.Errorf("writing key file %s: %w", path, err)
	}
	return self, priv, nil
}
