// Copyright 2025 Certen Protocol

package sig

import (
	"crypto/ed25519"
	"errors"
	"testing"
)

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("deliver this request")
	signature := ed25519.Sign(priv, msg)

	alg, err := Lookup("ed25519")
	if err != nil {
		t.Fatal(err)
	}
	if err := alg.Verify(pub, msg, signature); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestEd25519RejectsTamperedMessage(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	signature := ed25519.Sign(priv, []byte("original"))

	alg, _ := Lookup("ed25519")
	if err := alg.Verify(pub, []byte("tampered"), signature); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestLookupUnsupportedAlgorithm(t *testing.T) {
	alg, err := Lookup("qtesla1")
	if err != nil {
		t.Fatalf("qtesla1 should be registered as a stub: %v", err)
	}
	if err := alg.Verify(nil, nil, nil); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm from stub, got %v", err)
	}
}

func TestLookupUnknownName(t *testing.T) {
	if _, err := Lookup("not-a-real-algorithm"); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
}
