// Copyright 2025 Certen Protocol
//
// Instance/static method call builders: as constructor call, but an
// instance call additionally deserializes and includes the receiver's
// updates, and a @View entry point rejects a non-@View resolved method
// (enforced inside Executor, since only Executor knows the resolved
// method's annotations).

package builders

import (
	"errors"
	"math/big"

	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
)

// BuildInstanceMethodCall runs req's method via ctx.Executor against its
// receiver. View calls skip the nonce/signature/chain-id checks in
// Prelude and discard their effects (updates/events) on return.
func BuildInstanceMethodCall(ctx *Context, req request.InstanceMethodCall) (response.Response, error) {
	reqBytes, err := request.Encode(req)
	if err != nil {
		return nil, err
	}

	out, err := Prelude(ctx, req.Signer, req.SignedBytes(), len(reqBytes), req.View)
	if err != nil {
		return failedOrRejected(err)
	}

	if ctx.Executor == nil {
		return noExecutorMethodFailure(out), nil
	}

	result, execErr := ctx.Executor.InvokeInstance(ctx.Store, req.Classpath.Jars, req.MethodSignature, req.Receiver, req.Actuals, out.Caller, req.View)
	resp, err := classifyMethodCall(ctx, out, result, execErr, req.View)
	return resp, err
}

// BuildStaticMethodCall is BuildInstanceMethodCall's static counterpart:
// no receiver, and the resolved method must be static.
func BuildStaticMethodCall(ctx *Context, req request.StaticMethodCall) (response.Response, error) {
	reqBytes, err := request.Encode(req)
	if err != nil {
		return nil, err
	}

	out, err := Prelude(ctx, req.Signer, req.SignedBytes(), len(reqBytes), req.View)
	if err != nil {
		return failedOrRejected(err)
	}

	if ctx.Executor == nil {
		return noExecutorMethodFailure(out), nil
	}

	result, execErr := ctx.Executor.InvokeStatic(ctx.Store, req.Classpath.Jars, req.MethodSignature, req.Actuals, out.Caller, req.View)
	return classifyMethodCall(ctx, out, result, execErr, req.View)
}

func noExecutorMethodFailure(out *preludeOutcome) response.Response {
	failed := response.MethodCallResponse{
		Out:          response.OutcomeFailed,
		FailureClass: "io.certen.lang.NoExecutorConfiguredException",
		FailureMsg:   "no contract executor is configured on this node",
	}
	return failed.WithBase(accountOnlyUpdates(out), nil, failedGas(out))
}

// resolutionExceptionClass maps the three resolution-check sentinels to
// their distinct exception classes; only the white-listing violation
// carries NonWhiteListedCallException.
func resolutionExceptionClass(execErr error) (string, bool) {
	switch {
	case errors.Is(execErr, ErrNotWhitelisted):
		return "io.certen.lang.NonWhiteListedCallException", true
	case errors.Is(execErr, ErrNotView):
		return "io.certen.lang.NonViewMethodException", true
	case errors.Is(execErr, ErrNotStatic):
		return "io.certen.lang.NonStaticMethodException", true
	}
	return "", false
}

// classifyMethodCall turns an Executor result (or error) into the right
// MethodCallResponse outcome. view calls never refund or persist
// updates: their effects are discarded entirely.
func classifyMethodCall(ctx *Context, out *preludeOutcome, result *ExecutionResult, execErr error, view bool) (response.Response, error) {
	if execErr != nil {
		if class, resolution := resolutionExceptionClass(execErr); resolution {
			failed := response.MethodCallResponse{
				Out:            response.OutcomeException,
				ExceptionClass: class,
				ExceptionMsg:   execErr.Error(),
			}
			if view {
				return failed.WithBase(nil, nil, failedGas(out)), nil
			}
			updates := refund(out)
			return failed.WithBase(updates, nil, failedGas(out)), nil
		}
		failed := response.MethodCallResponse{
			Out:          response.OutcomeFailed,
			FailureClass: "io.certen.lang.ExecutionFailedException",
			FailureMsg:   execErr.Error(),
		}
		if view {
			return failed.WithBase(nil, nil, failedGas(out)), nil
		}
		return failed.WithBase(accountOnlyUpdates(out), nil, failedGas(out)), nil
	}

	if result.GasUsed > 0 {
		if err := out.Meter.ChargeCPU(big.NewInt(result.GasUsed)); err != nil {
			failed := response.MethodCallResponse{
				Out:          response.OutcomeFailed,
				FailureClass: "io.certen.gas.OutOfGasException",
				FailureMsg:   err.Error(),
			}
			if view {
				return failed.WithBase(nil, nil, failedGas(out)), nil
			}
			return failed.WithBase(accountOnlyUpdates(out), nil, failedGas(out)), nil
		}
	}

	if result.IsException {
		failed := response.MethodCallResponse{
			Out:            response.OutcomeException,
			ExceptionClass: result.ExceptionClass,
			ExceptionMsg:   result.ExceptionMessage,
		}
		if view {
			return failed.WithBase(nil, nil, failedGas(out)), nil
		}
		updates := append(refund(out), result.Updates...)
		return failed.WithBase(updates, result.Events, failedGas(out)), nil
	}

	outcome := response.OutcomeSuccessful
	if result.Result == nil {
		outcome = response.OutcomeVoidSuccessful
	}
	resp := response.MethodCallResponse{Out: outcome, Result: result.Result}

	respBytes, err := response.Encode(resp)
	if err != nil {
		return nil, err
	}
	if err := chargeStorageForResponse(ctx, out, len(respBytes)); err != nil {
		failed := response.MethodCallResponse{
			Out:          response.OutcomeFailed,
			FailureClass: "io.certen.gas.OutOfGasException",
			FailureMsg:   err.Error(),
		}
		if view {
			return failed.WithBase(nil, nil, failedGas(out)), nil
		}
		return failed.WithBase(append(accountOnlyUpdates(out), result.Updates...), nil, failedGas(out)), nil
	}

	if view {
		return resp.WithBase(nil, nil, failedGas(out)), nil
	}
	updates := append(refund(out), result.Updates...)
	return resp.WithBase(updates, result.Events, failedGas(out)), nil
}
