// Copyright 2025 Certen Protocol
//
// The three "initial" request kinds run before the node has a manifest
// and so skip the prelude and gas accounting entirely.

package builders

import (
	"fmt"
	"math/big"

	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/values"
)

func requireUninitialized(ctx *Context) error {
	_, initialized, err := ctx.Store.GetManifest()
	if err != nil {
		return fmt.Errorf("checking initialization: %w", err)
	}
	if initialized {
		return response.Rejected{Reason: "node is already initialized"}
	}
	return nil
}

// BuildJarStoreInitial installs the first jar (typically the base
// runtime classes); it runs before any manifest exists, so there is no
// gas price or payer to charge yet.
func BuildJarStoreInitial(ctx *Context, req request.JarStoreInitial) (response.Response, error) {
	if err := requireUninitialized(ctx); err != nil {
		return nil, err
	}
	return response.JarStoreInitialResponse{InstrumentedJar: req.Jar, VerificationVersion: ctx.VerificationVersion}, nil
}

// gameteClassName is the distinguished account class created once at
// genesis and granted the initial coin supply.
const gameteClassName = "io.certen.lang.Gamete"

// BuildGameteCreation creates the distinguished gamete account with the
// requested initial green/red balances and public key.
func BuildGameteCreation(ctx *Context, req request.GameteCreation) (response.Response, error) {
	if err := requireUninitialized(ctx); err != nil {
		return nil, err
	}

	ref := values.StorageReference{Creator: request.Hash(req), Progressive: 0}

	updates := []values.Update{
		values.ClassTag{Ref: ref, ClassName: gameteClassName, Jar: request.Hash(req)},
		values.UpdateOfField{Ref: ref, Field: fieldBalance, Value: values.BigIntegerValue{V: req.InitialAmount}, EagerField: true},
		values.UpdateOfField{Ref: ref, Field: fieldRedBalance, Value: values.BigIntegerValue{V: req.RedAmount}, EagerField: true},
		values.UpdateOfField{Ref: ref, Field: fieldNonce, Value: values.BigIntegerValue{V: big.NewInt(0)}, EagerField: true},
		values.UpdateOfField{Ref: ref, Field: fieldPublicKey, Value: values.StringValue(string(req.PublicKey)), EagerField: true},
	}

	return response.GameteCreationResponse{Gamete: ref}.WithBase(updates, nil, response.GasConsumed{}), nil
}

// BuildInitialization sets the manifest reference, transitioning the
// node from uninitialized to initialized. The manifest object itself is
// expected to already exist in the store (created by an earlier
// constructor call against the jar installed by JarStoreInitial); this
// builder only checks that the node is still uninitialized and returns
// an empty response. The controller stamps the info trie's manifest
// pointer when it commits the request.
func BuildInitialization(ctx *Context, req request.Initialization) (response.Response, error) {
	if err := requireUninitialized(ctx); err != nil {
		return nil, err
	}
	return response.InitializationResponse{}, nil
}
