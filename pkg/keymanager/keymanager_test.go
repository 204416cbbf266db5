// Copyright 2025 Certen Protocol
package keymanager

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestGenerateAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "attestor.key")

	km := NewKeyManager(keyPath)
	if err := km.Generate(); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	wantAddr, err := km.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}

	loaded := NewKeyManager(keyPath)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	gotAddr, err := loaded.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if gotAddr != wantAddr {
		t.Fatalf("Address = %s, want %s", gotAddr, wantAddr)
	}
}

func TestLoadOrGenerate_GeneratesWhenMissing(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "missing.key")

	km := NewKeyManager(keyPath)
	if err := km.LoadOrGenerate(); err != nil {
		t.Fatalf("LoadOrGenerate: %v", err)
	}
	if km.PrivateKey() == nil {
		t.Fatal("expected a generated private key")
	}
}

func TestLoadHex_AcceptsOptional0xPrefix(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(priv))

	km := NewKeyManager("")
	if err := km.LoadHex(hexKey); err != nil {
		t.Fatalf("LoadHex: %v", err)
	}
	addr, err := km.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if addr != crypto.PubkeyToAddress(priv.PublicKey).Hex() {
		t.Fatalf("Address = %s, want the key's derived address", addr)
	}
}

func TestLoad_NoKeyPathFails(t *testing.T) {
	km := NewKeyManager("")
	if err := km.Load(); err == nil {
		t.Fatal("expected an error when no key path is configured")
	}
}
