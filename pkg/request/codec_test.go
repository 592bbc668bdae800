// Copyright 2025 Certen Protocol

package request

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/mokanode/corechain/pkg/values"
)

func testSigner() Signer {
	return Signer{
		Caller:    values.StorageReference{Progressive: 3},
		Nonce:     big.NewInt(7),
		ChainID:   "test-chain",
		GasLimit:  big.NewInt(100000),
		GasPrice:  big.NewInt(2),
		Classpath: Classpath{Jars: []values.TransactionReference{{1, 2, 3}}},
		Signature: []byte("sig-bytes"),
	}
}

func TestEncodeDecodeInstanceMethodCall(t *testing.T) {
	req := InstanceMethodCall{
		Signer:          testSigner(),
		MethodSignature: "Account.receive(BigInteger)",
		Receiver:        values.StorageReference{Progressive: 9},
		Actuals:         []values.StorageValue{values.BigIntegerValue{V: big.NewInt(42)}},
	}

	raw, err := Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(InstanceMethodCall)
	if !ok {
		t.Fatalf("unexpected type %T", decoded)
	}
	if got.MethodSignature != req.MethodSignature {
		t.Fatalf("method signature: got %s, want %s", got.MethodSignature, req.MethodSignature)
	}
	if got.Receiver != req.Receiver {
		t.Fatalf("receiver: got %s, want %s", got.Receiver, req.Receiver)
	}
	if got.Nonce.Cmp(req.Nonce) != 0 || got.GasLimit.Cmp(req.GasLimit) != 0 {
		t.Fatal("signer numeric fields did not survive the round trip")
	}
	if len(got.Actuals) != 1 {
		t.Fatalf("expected 1 actual, got %d", len(got.Actuals))
	}
	bi, ok := got.Actuals[0].(values.BigIntegerValue)
	if !ok || bi.V.Int64() != 42 {
		t.Fatalf("unexpected actual %v", got.Actuals[0])
	}
}

func TestEncodeDecodeJarStore(t *testing.T) {
	req := JarStore{
		Signer:       testSigner(),
		Jar:          []byte("bytecode"),
		Dependencies: Classpath{Jars: []values.TransactionReference{{0xaa}}},
	}
	raw, err := Encode(req)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(JarStore)
	if !ok {
		t.Fatalf("unexpected type %T", decoded)
	}
	if !bytes.Equal(got.Jar, req.Jar) {
		t.Fatal("jar bytes did not survive the round trip")
	}
	if len(got.Dependencies.Jars) != 1 || got.Dependencies.Jars[0] != req.Dependencies.Jars[0] {
		t.Fatal("dependencies did not survive the round trip")
	}
}

func TestHashIsStableAndSensitive(t *testing.T) {
	req := GameteCreation{InitialAmount: big.NewInt(1000), RedAmount: big.NewInt(0), PublicKey: []byte("pk")}
	h1 := Hash(req)
	h2 := Hash(req)
	if h1 != h2 {
		t.Fatal("hashing the same request twice gave different references")
	}

	other := GameteCreation{InitialAmount: big.NewInt(1001), RedAmount: big.NewInt(0), PublicKey: []byte("pk")}
	if Hash(other) == h1 {
		t.Fatal("different requests hashed to the same reference")
	}
}

func TestSignedBytesExcludeSignature(t *testing.T) {
	req := StaticMethodCall{Signer: testSigner(), MethodSignature: "Util.ping()"}

	canonical := req.MarshalCanonical()
	signed := req.SignedBytes()

	if !bytes.Equal(canonical, append(append([]byte{}, signed...), req.Signature...)) {
		t.Fatal("canonical bytes are not signed-bytes followed by the signature")
	}

	// Two requests differing only in signature sign over the same bytes
	// but hash to different references.
	resigned := req
	resigned.Signature = []byte("other-sig")
	if !bytes.Equal(resigned.SignedBytes(), signed) {
		t.Fatal("changing the signature changed the signed bytes")
	}
	if Hash(resigned) == Hash(req) {
		t.Fatal("changing the signature did not change the reference")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}
