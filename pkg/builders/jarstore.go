// Copyright 2025 Certen Protocol

package builders

import (
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
)

// BuildJarStore runs the prelude (which loads only the signer's
// classpath through ctx.Loader) and, on success, charges storage for the
// response and emits it carrying the jar bytes as the instrumented jar,
// alongside the declared dependencies. The new jar itself is not passed
// to the verifier or instrumenter here, and its declared dependencies
// are not loaded.
func BuildJarStore(ctx *Context, req request.JarStore) (response.Response, error) {
	reqBytes, err := request.Encode(req)
	if err != nil {
		return nil, err
	}

	out, err := Prelude(ctx, req.Signer, req.SignedBytes(), len(reqBytes), false)
	if err != nil {
		return failedOrRejected(err)
	}

	resp := response.JarStoreResponse{
		Out:                 response.OutcomeSuccessful,
		InstrumentedJar:     req.Jar,
		Dependencies:        req.Dependencies,
		VerificationVersion: ctx.VerificationVersion,
	}

	respBytes, err := response.Encode(resp)
	if err != nil {
		return nil, err
	}
	if err := chargeStorageForResponse(ctx, out, len(respBytes)); err != nil {
		failed := response.JarStoreResponse{
			Out:            response.OutcomeFailed,
			FailureClass:   "io.certen.gas.OutOfGasException",
			FailureMessage: err.Error(),
		}
		return failed.WithBase(accountOnlyUpdates(out), nil, failedGas(out)), nil
	}

	updates := refund(out)
	cpu, ram, storage, penalty := gasConsumed(out.Meter)
	return resp.WithBase(updates, nil, response.GasConsumed{CPU: cpu, RAM: ram, Storage: storage, Penalty: penalty}), nil
}
