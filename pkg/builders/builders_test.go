// Copyright 2025 Certen Protocol

package builders

import (
	"errors"
	"math/big"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/mokanode/corechain/pkg/classloader"
	"github.com/mokanode/corechain/pkg/kv"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/store"
	"github.com/mokanode/corechain/pkg/values"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.Open(kv.NewCometAdapter(dbm.NewMemDB()))
}

func newTestContext() *Context {
	return &Context{
		GasPrice:                big.NewInt(1),
		ChainID:                 "test-chain",
		BaseCPUCost:             10,
		PerByteCPUCost:          1,
		PerJarCPUCost:           5,
		PerJarRAMCost:           5,
		PerDependencyLookupCost: 1,
		StorageCostPerByte:      1,
		SignatureAlgorithm:      "ed25519",
	}
}

func TestBuildGameteCreationOnFreshNode(t *testing.T) {
	ctx := newTestContext()
	ctx.Store = newTestStore(t)

	req := request.GameteCreation{InitialAmount: big.NewInt(1000), RedAmount: big.NewInt(0), PublicKey: []byte("pub")}
	resp, err := Build(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gresp, ok := resp.(response.GameteCreationResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", resp)
	}
	if len(gresp.Updates()) != 5 {
		t.Fatalf("expected 5 updates (class tag + 4 fields), got %d", len(gresp.Updates()))
	}
}

func TestBuildGameteCreationRejectedWhenInitialized(t *testing.T) {
	s := newTestStore(t)
	tr := store.NewTransformation(s)
	tr.SetManifest(values.StorageReference{Progressive: 1})
	committed, _, err := tr.Commit()
	if err != nil {
		t.Fatal(err)
	}

	ctx := newTestContext()
	ctx.Store = committed

	req := request.GameteCreation{InitialAmount: big.NewInt(1), RedAmount: big.NewInt(0)}
	if _, err := Build(ctx, req); err == nil {
		t.Fatal("expected rejection on already-initialized node")
	}
}

func TestBuildJarStoreInitial(t *testing.T) {
	ctx := newTestContext()
	ctx.Store = newTestStore(t)

	resp, err := Build(ctx, request.JarStoreInitial{Jar: []byte("runtime-bytes")})
	if err != nil {
		t.Fatal(err)
	}
	jresp, ok := resp.(response.JarStoreInitialResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", resp)
	}
	if string(jresp.InstrumentedJar) != "runtime-bytes" {
		t.Fatalf("unexpected instrumented jar: %s", jresp.InstrumentedJar)
	}
}

// acceptAllVerifier and buildInitializedStoreWithEOA set up a store with
// a manifest already present and one externally-owned account with a
// known balance/nonce/public key, for testing the signed-request builder
// paths (JarStore/ConstructorCall/MethodCall).
type acceptAllVerifier struct{}

func (acceptAllVerifier) Verify(jar []byte) (bool, string) { return true, "" }

func buildInitializedStoreWithEOA(t *testing.T, eoaRef values.StorageReference, balance *big.Int, publicKey string) *store.Store {
	t.Helper()
	s := newTestStore(t)

	creationReq := request.JarStoreInitial{Jar: []byte("bootstrap")}
	creationRef := request.Hash(creationReq)

	tr := store.NewTransformation(s)
	tr.PushRequestResponse(creationRef, creationReq, response.JarStoreInitialResponse{VerificationVersion: 1})
	tr.SetManifest(values.StorageReference{Progressive: 0})

	updates := []values.Update{
		values.ClassTag{Ref: eoaRef, ClassName: eoaClassName, Jar: creationRef},
		values.UpdateOfField{Ref: eoaRef, Field: fieldBalance, Value: values.BigIntegerValue{V: balance}, EagerField: true},
		values.UpdateOfField{Ref: eoaRef, Field: fieldRedBalance, Value: values.BigIntegerValue{V: big.NewInt(0)}, EagerField: true},
		values.UpdateOfField{Ref: eoaRef, Field: fieldNonce, Value: values.BigIntegerValue{V: big.NewInt(0)}, EagerField: true},
		values.UpdateOfField{Ref: eoaRef, Field: fieldPublicKey, Value: values.StringValue(publicKey), EagerField: true},
	}
	eoaRequest := request.JarStoreInitial{Jar: []byte("eoa-marker")}
	eoaRef2 := request.Hash(eoaRequest)
	tr.PushRequestResponse(eoaRef2, eoaRequest, response.JarStoreInitialResponse{}.WithBase(updates, nil, response.GasConsumed{}))
	if err := tr.ExpandHistory(eoaRef, eoaRef2); err != nil {
		t.Fatal(err)
	}

	committed, _, err := tr.Commit()
	if err != nil {
		t.Fatal(err)
	}
	return committed
}

// buildInitializedStoreWithCaller is buildInitializedStoreWithEOA with the
// caller's class tag set to className, so tests can exercise Prelude's
// externally-owned-account check against a caller that is not one.
func buildInitializedStoreWithCaller(t *testing.T, callerRef values.StorageReference, className string, balance *big.Int) *store.Store {
	t.Helper()
	s := newTestStore(t)

	creationReq := request.JarStoreInitial{Jar: []byte("bootstrap")}
	creationRef := request.Hash(creationReq)

	tr := store.NewTransformation(s)
	tr.PushRequestResponse(creationRef, creationReq, response.JarStoreInitialResponse{VerificationVersion: 1})
	tr.SetManifest(values.StorageReference{Progressive: 0})

	updates := []values.Update{
		values.ClassTag{Ref: callerRef, ClassName: className, Jar: creationRef},
		values.UpdateOfField{Ref: callerRef, Field: fieldBalance, Value: values.BigIntegerValue{V: balance}, EagerField: true},
		values.UpdateOfField{Ref: callerRef, Field: fieldRedBalance, Value: values.BigIntegerValue{V: big.NewInt(0)}, EagerField: true},
		values.UpdateOfField{Ref: callerRef, Field: fieldNonce, Value: values.BigIntegerValue{V: big.NewInt(0)}, EagerField: true},
	}
	markerReq := request.JarStoreInitial{Jar: []byte("caller-marker")}
	markerRef := request.Hash(markerReq)
	tr.PushRequestResponse(markerRef, markerReq, response.JarStoreInitialResponse{}.WithBase(updates, nil, response.GasConsumed{}))
	if err := tr.ExpandHistory(callerRef, markerRef); err != nil {
		t.Fatal(err)
	}

	committed, _, err := tr.Commit()
	if err != nil {
		t.Fatal(err)
	}
	return committed
}

func TestPreludeRejectsNonExternallyOwnedCaller(t *testing.T) {
	callerRef := values.StorageReference{Progressive: 7}
	s := buildInitializedStoreWithCaller(t, callerRef, "io.certen.lang.Wallet", big.NewInt(1000))

	ctx := newTestContext()
	ctx.Store = s
	ctx.Loader = classloader.New(classloader.Config{MaxDependencies: 10, MaxCumulativeSizeOfDependencies: 1 << 20}, acceptAllVerifier{}, nil)

	req := request.JarStore{
		Signer: request.Signer{
			Caller:   callerRef,
			Nonce:    big.NewInt(0),
			ChainID:  "test-chain",
			GasLimit: big.NewInt(100),
			GasPrice: big.NewInt(1),
		},
		Jar: []byte("new-contract"),
	}
	_, err := Build(ctx, req)
	if err == nil {
		t.Fatal("expected rejection of a non-externally-owned caller")
	}
	var rejected response.Rejected
	if !errors.As(err, &rejected) {
		t.Fatalf("expected a Rejected error, got %T: %v", err, err)
	}
}

func TestBuildJarStoreRejectsWrongChainID(t *testing.T) {
	eoaRef := values.StorageReference{Progressive: 42}
	s := buildInitializedStoreWithEOA(t, eoaRef, big.NewInt(1000), "")

	ctx := newTestContext()
	ctx.Store = s
	ctx.Loader = classloader.New(classloader.Config{MaxDependencies: 10, MaxCumulativeSizeOfDependencies: 1 << 20}, acceptAllVerifier{}, nil)

	req := request.JarStore{
		Signer: request.Signer{
			Caller:   eoaRef,
			Nonce:    big.NewInt(0),
			ChainID:  "wrong-chain",
			GasLimit: big.NewInt(100),
			GasPrice: big.NewInt(1),
		},
		Jar: []byte("new-contract"),
	}
	if _, err := Build(ctx, req); err == nil {
		t.Fatal("expected chain-id mismatch rejection")
	}
}
