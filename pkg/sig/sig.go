// Copyright 2025 Certen Protocol
//
// Pluggable signature verification for signed requests, wrapping
// crypto/ed25519 behind a small registry instead of calling the stdlib
// inline everywhere.

package sig

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// ErrUnsupportedAlgorithm is returned by Lookup for names that are not
// registered at all, and by Verify for the recognized names that have no
// verifier wired in (sha256dsa and the post-quantum algorithms).
var ErrUnsupportedAlgorithm = errors.New("sig: unsupported algorithm")

// ErrInvalidSignature is returned by Algorithm.Verify when the signature
// does not match.
var ErrInvalidSignature = errors.New("sig: invalid signature")

// Algorithm verifies signatures produced by one signature scheme.
type Algorithm interface {
	Name() string
	Verify(publicKey, message, signature []byte) error
}

// Algorithms registered at init time, keyed by name as they appear in
// request.Signer's classpath-adjacent key material.
var registry = map[string]Algorithm{}

func register(a Algorithm) { registry[a.Name()] = a }

func init() {
	register(ed25519Algorithm{})
	register(ed25519DetAlgorithm{})
}

// Lookup returns the named algorithm, or ErrUnsupportedAlgorithm.
func Lookup(name string) (Algorithm, error) {
	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, name)
	}
	return a, nil
}

type ed25519Algorithm struct{}

func (ed25519Algorithm) Name() string { return "ed25519" }

func (ed25519Algorithm) Verify(publicKey, message, signature []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("sig: bad ed25519 public key size %d", len(publicKey))
	}
	if !ed25519.Verify(publicKey, message, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// ed25519DetAlgorithm is the deterministic-nonce variant some clients use
// for reproducible test vectors; crypto/ed25519's Verify is already
// nonce-independent, so verification is identical to plain ed25519.
type ed25519DetAlgorithm struct{ ed25519Algorithm }

func (ed25519DetAlgorithm) Name() string { return "ed25519det" }

// unsupportedAlgorithm is a placeholder Algorithm for names that parse
// but have no verifier compiled in (sha256dsa, qtesla1, qtesla3).
type unsupportedAlgorithm struct{ name string }

func (u unsupportedAlgorithm) Name() string { return u.name }

func (u unsupportedAlgorithm) Verify(publicKey, message, signature []byte) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, u.name)
}

func init() {
	for _, name := range []string{"sha256dsa", "qtesla1", "qtesla3"} {
		register(unsupportedAlgorithm{name: name})
	}
}
