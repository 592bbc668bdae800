// Copyright 2025 Certen Protocol
//
// Constructor-call builder: resolve, instantiate via Executor,
// serialize the created object's updates, charge storage for the
// response, refund, emit. Resolution, the exact-match-vs-@FromContract
// tie-break and the white-listing check run inside Executor.Construct -
// the native Runtime in this package by default; this builder
// classifies whatever comes back into the three response outcomes.

package builders

import (
	"errors"
	"math/big"

	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
)

// BuildConstructorCall runs req's constructor via ctx.Executor.
func BuildConstructorCall(ctx *Context, req request.ConstructorCall) (response.Response, error) {
	reqBytes, err := request.Encode(req)
	if err != nil {
		return nil, err
	}

	out, err := Prelude(ctx, req.Signer, req.SignedBytes(), len(reqBytes), false)
	if err != nil {
		return failedOrRejected(err)
	}

	if ctx.Executor == nil {
		failed := response.ConstructorCallResponse{
			Out:          response.OutcomeFailed,
			FailureClass: "io.certen.lang.NoExecutorConfiguredException",
			FailureMsg:   "no contract executor is configured on this node",
		}
		return failed.WithBase(accountOnlyUpdates(out), nil, failedGas(out)), nil
	}

	result, execErr := ctx.Executor.Construct(ctx.Store, req.Classpath.Jars, request.Hash(req), req.ConstructorSignature, req.Actuals, out.Caller)

	if execErr != nil {
		if errors.Is(execErr, ErrNotWhitelisted) {
			failed := response.ConstructorCallResponse{
				Out:            response.OutcomeException,
				ExceptionClass: "io.certen.lang.NonWhiteListedCallException",
				ExceptionMsg:   execErr.Error(),
			}
			updates := refund(out)
			cpu, ram, storage, penalty := gasConsumed(out.Meter)
			return failed.WithBase(updates, nil, response.GasConsumed{CPU: cpu, RAM: ram, Storage: storage, Penalty: penalty}), nil
		}
		failed := response.ConstructorCallResponse{
			Out:          response.OutcomeFailed,
			FailureClass: "io.certen.lang.ExecutionFailedException",
			FailureMsg:   execErr.Error(),
		}
		return failed.WithBase(accountOnlyUpdates(out), nil, failedGas(out)), nil
	}

	if result.GasUsed > 0 {
		if err := out.Meter.ChargeCPU(big.NewInt(result.GasUsed)); err != nil {
			failed := response.ConstructorCallResponse{
				Out:          response.OutcomeFailed,
				FailureClass: "io.certen.gas.OutOfGasException",
				FailureMsg:   err.Error(),
			}
			return failed.WithBase(accountOnlyUpdates(out), nil, failedGas(out)), nil
		}
	}

	if result.IsException {
		failed := response.ConstructorCallResponse{
			Out:            response.OutcomeException,
			ExceptionClass: result.ExceptionClass,
			ExceptionMsg:   result.ExceptionMessage,
		}
		updates := append(refund(out), result.Updates...)
		cpu, ram, storage, penalty := gasConsumed(out.Meter)
		return failed.WithBase(updates, result.Events, response.GasConsumed{CPU: cpu, RAM: ram, Storage: storage, Penalty: penalty}), nil
	}

	resp := response.ConstructorCallResponse{
		Out:       response.OutcomeSuccessful,
		NewObject: result.NewObject,
	}
	respBytes, err := response.Encode(resp)
	if err != nil {
		return nil, err
	}
	if err := chargeStorageForResponse(ctx, out, len(respBytes)); err != nil {
		failed := response.ConstructorCallResponse{
			Out:          response.OutcomeFailed,
			FailureClass: "io.certen.gas.OutOfGasException",
			FailureMsg:   err.Error(),
		}
		return failed.WithBase(append(accountOnlyUpdates(out), result.Updates...), nil, failedGas(out)), nil
	}

	updates := append(refund(out), result.Updates...)
	cpu, ram, storage, penalty := gasConsumed(out.Meter)
	return resp.WithBase(updates, result.Events, response.GasConsumed{CPU: cpu, RAM: ram, Storage: storage, Penalty: penalty}), nil
}
