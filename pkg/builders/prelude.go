// Copyright 2025 Certen Protocol
//
// Shared prelude stage: the checks that, on failure, reject the request
// with no store change. One fixed sequence of named steps, shared
// across every non-initial request kind.

package builders

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/mokanode/corechain/pkg/classloader"
	"github.com/mokanode/corechain/pkg/gas"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/serialize"
	"github.com/mokanode/corechain/pkg/store"
)

// preludeOutcome carries what Prelude resolved for use by Body/Postlude.
type preludeOutcome struct {
	Caller        *serialize.Object
	CallerView    *accountView
	Meter         *gas.Meter
	Resolved      []classloader.Resolved
	PaidFromGreen *big.Int
}

// Prelude runs the checks common to every signed, non-view request.
// signer is the embedded request.Signer of the concrete request; view
// is true for instance/static method calls marked @View.
func Prelude(ctx *Context, signer request.Signer, signedBytes []byte, requestSize int, view bool) (*preludeOutcome, error) {
	manifestRef, initialized, err := ctx.Store.GetManifest()
	if err != nil {
		return nil, fmt.Errorf("prelude: reading manifest: %w", err)
	}
	if !initialized {
		return nil, response.Rejected{Reason: "node is not initialized"}
	}
	_ = manifestRef

	if !view && signer.ChainID != ctx.ChainID {
		return nil, response.Rejected{Reason: fmt.Sprintf("chain-id mismatch: got %s, want %s", signer.ChainID, ctx.ChainID)}
	}

	caller, err := serialize.Deserialize(ctx.Store, signer.Caller)
	if err != nil {
		return nil, response.Rejected{Reason: fmt.Sprintf("caller %s not found: %v", signer.Caller, err)}
	}
	// The caller must be an externally-owned account and the payer must
	// be a contract. The payer is the caller's own account (see the
	// PayerOf note below), and an externally-owned account is itself a
	// contract in the class hierarchy this engine encodes, so the one
	// class check below settles both halves of the requirement.
	if !isExternallyOwned(caller.ClassName) {
		return nil, response.Rejected{Reason: fmt.Sprintf("caller %s is not an externally-owned account (class %q)", signer.Caller, caller.ClassName)}
	}
	callerView := newAccountView(caller)

	if !view {
		sigKey := sha256.Sum256(append(append([]byte{}, signedBytes...), signer.Signature...))
		valid, cached := false, false
		if ctx.SigCache != nil {
			valid, cached = ctx.SigCache.Get(sigKey)
		}
		if !cached {
			alg, err := ctx.algorithm()
			if err != nil {
				return nil, response.Rejected{Reason: err.Error()}
			}
			verifyErr := alg.Verify([]byte(callerView.PublicKey()), signedBytes, signer.Signature)
			valid = verifyErr == nil
			if ctx.SigCache != nil {
				ctx.SigCache.Put(sigKey, valid)
			}
		}
		if !valid {
			return nil, response.Rejected{Reason: "invalid signature"}
		}

		if signer.Nonce.Cmp(callerView.Nonce()) != 0 {
			return nil, response.Rejected{Reason: fmt.Sprintf("nonce mismatch: request %s, account %s", signer.Nonce, callerView.Nonce())}
		}
		callerView.bumpNonce()
	}

	meter := ctx.newMeter(signer.GasLimit)
	if err := meter.ChargeCPU(big.NewInt(ctx.BaseCPUCost)); err != nil {
		return nil, response.Rejected{Reason: "insufficient gas for base cost"}
	}
	if err := meter.ChargeCPU(big.NewInt(int64(requestSize) * ctx.PerByteCPUCost)); err != nil {
		return nil, response.Rejected{Reason: "insufficient gas for request size"}
	}

	var resolved []classloader.Resolved
	if ctx.Loader != nil {
		var advanced *store.Store
		resolved, advanced, err = ctx.Loader.LoadClosure(ctx.Store, signer.Classpath.Jars)
		// A reverification cascade may have replaced a stored jar
		// response even though this request's own classpath load failed;
		// that replacement must still be visible to whatever runs after
		// this request, so it is applied before the rejection below is
		// returned.
		if advanced != nil {
			ctx.Store = advanced
		}
		if err != nil {
			return nil, response.Rejected{Reason: fmt.Sprintf("classpath resolution failed: %v", err)}
		}
		for range resolved {
			if err := meter.ChargeCPU(big.NewInt(ctx.PerJarCPUCost)); err != nil {
				return nil, response.Rejected{Reason: "insufficient gas for jar loading"}
			}
			if err := meter.ChargeRAM(big.NewInt(ctx.PerJarRAMCost)); err != nil {
				return nil, response.Rejected{Reason: "insufficient gas for jar loading"}
			}
			if err := meter.ChargeCPU(big.NewInt(ctx.PerDependencyLookupCost)); err != nil {
				return nil, response.Rejected{Reason: "insufficient gas for dependency lookup"}
			}
		}
	}

	// The payer is the caller's own account; a contract-sponsored payer
	// would slot in here as a Context.PayerOf hook.
	paidFromGreen, err := gas.ChargePayer(callerView, signer.GasLimit, ctx.GasPrice)
	if err != nil {
		return nil, response.Rejected{Reason: err.Error()}
	}

	return &preludeOutcome{
		Caller:        caller,
		CallerView:    callerView,
		Meter:         meter,
		Resolved:      resolved,
		PaidFromGreen: paidFromGreen,
	}, nil
}
