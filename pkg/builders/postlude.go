// Copyright 2025 Certen Protocol
//
// Shared postlude stage: charge storage for the final response bytes,
// collect events, and refund remaining gas for successful and
// application-exception outcomes (failed outcomes never refund).

package builders

import (
	"math/big"

	"github.com/mokanode/corechain/pkg/gas"
	"github.com/mokanode/corechain/pkg/values"
)

// chargeStorageForResponse charges storage gas proportional to the
// marshaled response size; called after the response bytes are known,
// just before it is persisted.
func chargeStorageForResponse(ctx *Context, out *preludeOutcome, responseSize int) error {
	return out.Meter.ChargeStorage(big.NewInt(int64(responseSize) * ctx.StorageCostPerByte))
}

// refund returns remaining gas to the caller's balance (green-first up to
// PaidFromGreen) and returns the account updates that must be folded into
// the response.
func refund(out *preludeOutcome) []values.Update {
	gas.RefundPayer(out.CallerView, out.Meter.Remaining(), out.Meter.GasPrice, out.PaidFromGreen)
	return out.CallerView.balanceUpdates(out.Caller.Ref)
}

// gasConsumed reports the meter's four running totals as a
// response.GasConsumed.
func gasConsumed(m *gas.Meter) (cpu, ram, storage, penalty *big.Int) {
	return m.Totals()
}
