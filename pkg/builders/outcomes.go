// Copyright 2025 Certen Protocol
//
// Shared helpers for the three-outcome classification of an executed
// request: successful and application-exception outcomes refund
// remaining gas, failed outcomes do not.

package builders

import (
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/values"
)

// failedOrRejected passes a Prelude error straight through: every
// prelude failure is a reject (no store change at all), never a failed
// response.
func failedOrRejected(err error) (response.Response, error) {
	return nil, err
}

// accountOnlyUpdates returns the caller's balance/nonce updates with no
// gas refund applied - on a failed outcome, the only updates persisted
// are to the caller's balance and nonce. The gas totals reflect
// whatever the meter already charged, including any out-of-gas penalty;
// nothing is returned to green/red.
func accountOnlyUpdates(out *preludeOutcome) []values.Update {
	return out.CallerView.balanceUpdates(out.Caller.Ref)
}

// failedGas reports the meter's totals as-is, with Refunded implicitly
// zero (FAILED outcomes never refund).
func failedGas(out *preludeOutcome) response.GasConsumed {
	cpu, ram, storage, penalty := out.Meter.Totals()
	return response.GasConsumed{CPU: cpu, RAM: ram, Storage: storage, Penalty: penalty}
}
