// Copyright 2025 Certen Protocol

package response

import (
	"math/big"
	"testing"

	"github.com/mokanode/corechain/pkg/values"
)

func TestEncodeDecodeMethodCallResponse(t *testing.T) {
	obj := values.StorageReference{Progressive: 4}
	field := values.FieldSignature{DefiningClass: "io.certen.lang.Contract", Name: "balance", Type: values.StorageType{Name: "java.math.BigInteger"}}
	updates := []values.Update{
		values.ClassTag{Ref: obj, ClassName: "io.certen.lang.Contract", Jar: values.TransactionReference{1}},
		values.UpdateOfField{Ref: obj, Field: field, Value: values.BigIntegerValue{V: big.NewInt(99)}, EagerField: true},
	}
	events := []values.StorageReference{{Progressive: 5}}
	gas := GasConsumed{CPU: big.NewInt(10), RAM: big.NewInt(20), Storage: big.NewInt(30), Penalty: big.NewInt(0)}

	resp := MethodCallResponse{Out: OutcomeSuccessful, Result: values.IntValue(7)}.WithBase(updates, events, gas)

	raw, err := Encode(resp)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(MethodCallResponse)
	if !ok {
		t.Fatalf("unexpected type %T", decoded)
	}
	if got.Outcome() != OutcomeSuccessful {
		t.Fatalf("unexpected outcome %d", got.Outcome())
	}
	if iv, ok := got.Result.(values.IntValue); !ok || iv != 7 {
		t.Fatalf("unexpected result %v", got.Result)
	}
	if len(got.Updates()) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(got.Updates()))
	}
	if _, ok := got.Updates()[0].(values.ClassTag); !ok {
		t.Fatalf("expected class tag first, got %T", got.Updates()[0])
	}
	if len(got.Events()) != 1 || got.Events()[0] != events[0] {
		t.Fatal("events did not survive the round trip")
	}
	if got.Gas().CPU.Int64() != 10 || got.Gas().Storage.Int64() != 30 {
		t.Fatal("gas totals did not survive the round trip")
	}
}

func TestEncodeDecodeFailedJarStoreResponse(t *testing.T) {
	resp := JarStoreResponse{
		Out:                 OutcomeFailed,
		VerificationVersion: 2,
		FailureClass:        "io.certen.verification.VerificationException",
		FailureMessage:      "reverification failed for dependency 0",
	}
	raw, err := Encode(resp)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(JarStoreResponse)
	if !ok {
		t.Fatalf("unexpected type %T", decoded)
	}
	if got.Outcome() != OutcomeFailed {
		t.Fatalf("unexpected outcome %d", got.Outcome())
	}
	if got.VerificationVersion != 2 {
		t.Fatalf("unexpected verification version %d", got.VerificationVersion)
	}
	if got.FailureMessage != resp.FailureMessage {
		t.Fatalf("unexpected failure message %q", got.FailureMessage)
	}
}

func TestEncodeDecodeVoidMethodCallResponse(t *testing.T) {
	resp := MethodCallResponse{Out: OutcomeVoidSuccessful}
	raw, err := Encode(resp)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	got := decoded.(MethodCallResponse)
	if got.Result != nil {
		t.Fatalf("expected nil result for a void call, got %v", got.Result)
	}
}
