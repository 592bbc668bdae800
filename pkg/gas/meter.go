// Copyright 2025 Certen Protocol
//
// Gas engine: CPU/RAM/storage accounting, scoped sub-budgets, and the
// payer pre-charge/refund protocol. Red/green accounts drain red first
// on charge and refund green first, up to what was originally drawn
// from green.

package gas

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrOutOfGas is raised by Charge* when remaining gas would go negative.
var ErrOutOfGas = errors.New("gas: out of gas")

// Account is the minimal view of a balance-holding object the gas engine
// needs. Implementations live in pkg/builders, which knows
// how to read/write the well-known balance/nonce/red-balance fields.
type Account interface {
	GreenBalance() *big.Int
	RedBalance() *big.Int
	SetGreenBalance(*big.Int)
	SetRedBalance(*big.Int)
}

// Meter tracks one request's gas: a mutable "remaining" counter plus
// the four running totals. remaining + cpu + ram + storage + penalty
// always equals the gasLimit the meter was opened with.
type Meter struct {
	GasPrice *big.Int

	remaining *big.Int
	stack     []*big.Int

	cpu     *big.Int
	ram     *big.Int
	storage *big.Int
	penalty *big.Int
}

// New creates a Meter with gasLimit available and the configured price.
func New(gasLimit, gasPrice *big.Int) *Meter {
	return &Meter{
		GasPrice:  gasPrice,
		remaining: new(big.Int).Set(gasLimit),
		cpu:       big.NewInt(0),
		ram:       big.NewInt(0),
		storage:   big.NewInt(0),
		penalty:   big.NewInt(0),
	}
}

func (m *Meter) charge(n *big.Int, total *big.Int) error {
	if n.Sign() < 0 {
		return fmt.Errorf("gas: negative charge %s", n)
	}
	if m.remaining.Cmp(n) < 0 {
		m.penalty.Add(m.penalty, m.remaining)
		m.remaining.SetInt64(0)
		return ErrOutOfGas
	}
	m.remaining.Sub(m.remaining, n)
	total.Add(total, n)
	return nil
}

func (m *Meter) ChargeCPU(n *big.Int) error     { return m.charge(n, m.cpu) }
func (m *Meter) ChargeRAM(n *big.Int) error     { return m.charge(n, m.ram) }
func (m *Meter) ChargeStorage(n *big.Int) error { return m.charge(n, m.storage) }

// Remaining returns the gas still available to spend.
func (m *Meter) Remaining() *big.Int { return new(big.Int).Set(m.remaining) }

// WithGas reserves n from the current remaining budget, runs task against
// that n-sized sub-budget, then returns whatever task did not spend back
// to the outer budget - a sub-budget is a cap carved out of the outer one,
// not an additional grant, so gasLimit = cpu+ram+storage+penalty+refunded
// keeps holding across the nesting: the outer remaining drops by exactly
// n at push time, and gets back exactly n minus whatever task charged via
// the nested Charge* calls it makes against this same Meter. On panic the
// stack still unwinds via defer, so a failure partway through never
// corrupts the budget stack.
func (m *Meter) WithGas(n *big.Int, task func() error) (err error) {
	if m.remaining.Cmp(n) < 0 {
		return ErrOutOfGas
	}
	m.remaining.Sub(m.remaining, n)
	m.stack = append(m.stack, m.remaining)
	m.remaining = new(big.Int).Set(n)
	defer func() {
		popped := m.remaining
		top := len(m.stack) - 1
		m.remaining = m.stack[top]
		m.stack = m.stack[:top]
		if popped.Sign() > 0 {
			m.remaining.Add(m.remaining, popped)
		}
	}()
	return task()
}

// CostOf converts a gas amount into its coin cost at this meter's price.
func (m *Meter) CostOf(gas *big.Int) *big.Int {
	return new(big.Int).Mul(gas, m.GasPrice)
}

// Totals returns the four running totals; the refunded amount is derived
// by the caller as gasLimit - cpu - ram - storage - penalty.
func (m *Meter) Totals() (cpu, ram, storage, penalty *big.Int) {
	return new(big.Int).Set(m.cpu), new(big.Int).Set(m.ram), new(big.Int).Set(m.storage), new(big.Int).Set(m.penalty)
}

// ChargePayer subtracts costOf(gasLimit) from payer's balance at request
// start, draining red before green for a red/green account. It returns
// the portion actually drawn from green, which RefundPayer needs to know
// how much of a later refund may return to green rather than red.
func ChargePayer(payer Account, gasLimit, gasPrice *big.Int) (paidFromGreen *big.Int, err error) {
	cost := new(big.Int).Mul(gasLimit, gasPrice)
	red := payer.RedBalance()
	green := payer.GreenBalance()
	fromRed := new(big.Int).Set(red)
	if fromRed.Cmp(cost) > 0 {
		fromRed.Set(cost)
	}
	remainder := new(big.Int).Sub(cost, fromRed)
	if green.Cmp(remainder) < 0 {
		return nil, fmt.Errorf("gas: payer has insufficient funds to buy %s units of gas", gasLimit)
	}
	payer.SetRedBalance(new(big.Int).Sub(red, fromRed))
	payer.SetGreenBalance(new(big.Int).Sub(green, remainder))
	return remainder, nil
}

// RefundPayer returns costOf(remaining) to payer: green first, up to the
// amount initially paid from green, the rest into red.
func RefundPayer(payer Account, remaining, gasPrice, paidFromGreen *big.Int) {
	refund := new(big.Int).Mul(remaining, gasPrice)
	toGreen := new(big.Int).Set(refund)
	if toGreen.Cmp(paidFromGreen) > 0 {
		toGreen.Set(paidFromGreen)
	}
	toRed := new(big.Int).Sub(refund, toGreen)
	payer.SetGreenBalance(new(big.Int).Add(payer.GreenBalance(), toGreen))
	if toRed.Sign() > 0 {
		payer.SetRedBalance(new(big.Int).Add(payer.RedBalance(), toRed))
	}
}
