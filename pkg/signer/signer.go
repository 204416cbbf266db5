// Copyright 2025 Certen Protocol
//
// Package signer implements C6: the ECDSA secp256k1 signing step of
// the Signer Envelope (spec.md §4.6). Adapted from the validator
// attestation signer (pkg/anchor_proof/signer.go), which signs a
// 32-byte digest with Ed25519; here the key is secp256k1, the
// signature is go-ethereum's 65-byte (r,s,v) form with a legacy
// v∈{27,28} recovery byte, and the signer can optionally wrap the
// digest in Ethereum's personal-message prefix before signing (spec.md
// §9 open question). New takes the choice as a parameter; the
// prefix-on default comes from config.PersonalSignPrefix.
package signer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs message hashes with one attestor private key.
type Signer struct {
	privateKey     *ecdsa.PrivateKey
	personalPrefix bool
}

// New creates a Signer. personalPrefix selects between signing the
// EIP-191 personal-message digest of messageHash (true) or the raw
// messageHash bytes directly (false); both are in production use
// across EVM signing stacks and spec.md leaves the choice open, so it
// is a per-deployment config knob rather than a hardcoded constant.
func New(privateKey *ecdsa.PrivateKey, personalPrefix bool) *Signer {
	return &Signer{privateKey: privateKey, personalPrefix: personalPrefix}
}

// Sign produces a 65-byte (r,s,v) signature over messageHash, with v
// normalised to the legacy Ethereum convention {27,28} rather than the
// raw {0,1} recovery id go-ethereum's crypto.Sign returns.
func (s *Signer) Sign(messageHash [32]byte) ([]byte, error) {
	if s.privateKey == nil {
		return nil, fmt.Errorf("signer: no private key loaded")
	}

	digest := messageHash[:]
	if s.personalPrefix {
		digest = accounts.TextHash(messageHash[:])
	}

	sig, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("signer: sign: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// Address returns the Ethereum-style address of the signing key, the
// identity an on-chain verifier recovers the signature against.
func (s *Signer) Address() (string, error) {
	if s.privateKey == nil {
		return "", fmt.Errorf("signer: no private key loaded")
	}
	return crypto.PubkeyToAddress(s.privateKey.PublicKey).Hex(), nil
}
