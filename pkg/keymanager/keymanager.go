// Copyright 2025 Certen Protocol
//
// Package keymanager loads and persists the ECDSA secp256k1 key the
// signer (C6) uses to endorse processed claims. Adapted from the
// validator BLS key manager: load-from-file and generate-and-persist,
// but backed by go-ethereum's secp256k1 key type instead of BLS.
package keymanager

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeyManager holds one validator's signing key.
type KeyManager struct {
	keyPath    string
	privateKey *ecdsa.PrivateKey
}

// NewKeyManager creates a manager that will load from or save to
// keyPath. An empty keyPath means the key is never persisted.
func NewKeyManager(keyPath string) *KeyManager {
	return &KeyManager{keyPath: keyPath}
}

// LoadOrGenerate loads the key at keyPath if it exists, otherwise
// generates a fresh key and, if keyPath is non-empty, persists it.
func (km *KeyManager) LoadOrGenerate() error {
	if km.keyPath != "" {
		if _, err := os.Stat(km.keyPath); err == nil {
			return km.Load()
		}
	}
	return km.Generate()
}

// Load reads a hex-encoded private key from keyPath.
func (km *KeyManager) Load() error {
	if km.keyPath == "" {
		return fmt.Errorf("keymanager: no key path specified")
	}
	data, err := os.ReadFile(km.keyPath)
	if err != nil {
		return fmt.Errorf("keymanager: read key file: %w", err)
	}
	return km.LoadHex(strings.TrimSpace(string(data)))
}

// LoadHex loads a private key from a hex string (with or without the
// 0x prefix), the shape an AttestorPrivateKeyHex config value takes.
func (km *KeyManager) LoadHex(keyHex string) error {
	keyHex = strings.TrimPrefix(keyHex, "0x")
	priv, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return fmt.Errorf("keymanager: parse private key: %w", err)
	}
	km.privateKey = priv
	return nil
}

// Generate creates a fresh key pair, persisting it to keyPath if one
// was configured.
func (km *KeyManager) Generate() error {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("keymanager: generate key: %w", err)
	}
	km.privateKey = priv
	if km.keyPath != "" {
		return km.Save()
	}
	return nil
}

// Save persists the current private key, hex-encoded, to keyPath with
// restrictive permissions.
func (km *KeyManager) Save() error {
	if km.keyPath == "" {
		return fmt.Errorf("keymanager: no key path specified")
	}
	if km.privateKey == nil {
		return fmt.Errorf("keymanager: no private key to save")
	}
	if dir := filepath.Dir(km.keyPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("keymanager: create key directory: %w", err)
		}
	}
	keyHex := hex.EncodeToString(crypto.FromECDSA(km.privateKey))
	if err := os.WriteFile(km.keyPath, []byte(keyHex), 0600); err != nil {
		return fmt.Errorf("keymanager: write key file: %w", err)
	}
	return nil
}

// PrivateKey returns the loaded/generated key, or nil if none yet.
func (km *KeyManager) PrivateKey() *ecdsa.PrivateKey { return km.privateKey }

// Address returns the Ethereum-style address derived from the public
// key, the identity an on-chain verifier recovers against.
func (km *KeyManager) Address() (string, error) {
	if km.privateKey == nil {
		return "", fmt.Errorf("keymanager: no private key loaded")
	}
	return crypto.PubkeyToAddress(km.privateKey.PublicKey).Hex(), nil
}
