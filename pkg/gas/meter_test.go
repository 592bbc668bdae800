// Copyright 2025 Certen Protocol

package gas

import (
	"math/big"
	"testing"
)

type fakeAccount struct {
	green, red *big.Int
}

func (a *fakeAccount) GreenBalance() *big.Int     { return a.green }
func (a *fakeAccount) RedBalance() *big.Int       { return a.red }
func (a *fakeAccount) SetGreenBalance(v *big.Int) { a.green = v }
func (a *fakeAccount) SetRedBalance(v *big.Int)   { a.red = v }

func TestGasAccountingIdentity(t *testing.T) {
	limit := big.NewInt(1000)
	m := New(limit, big.NewInt(1))

	if err := m.ChargeCPU(big.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	if err := m.ChargeRAM(big.NewInt(50)); err != nil {
		t.Fatal(err)
	}
	if err := m.ChargeStorage(big.NewInt(25)); err != nil {
		t.Fatal(err)
	}

	cpu, ram, storage, penalty := m.Totals()
	refunded := m.Remaining()

	sum := new(big.Int)
	sum.Add(sum, cpu).Add(sum, ram).Add(sum, storage).Add(sum, penalty).Add(sum, refunded)
	if sum.Cmp(limit) != 0 {
		t.Fatalf("gas identity violated: got %s, want %s", sum, limit)
	}
}

func TestChargeBeyondRemainingIsOutOfGas(t *testing.T) {
	m := New(big.NewInt(10), big.NewInt(1))
	if err := m.ChargeCPU(big.NewInt(11)); err != ErrOutOfGas {
		t.Fatalf("expected ErrOutOfGas, got %v", err)
	}
	if m.Remaining().Sign() != 0 {
		t.Fatalf("remaining should be zero after out-of-gas")
	}
}

func TestWithGasRestoresBudgetOnFailure(t *testing.T) {
	m := New(big.NewInt(100), big.NewInt(1))
	err := m.WithGas(big.NewInt(10), func() error {
		return m.ChargeCPU(big.NewInt(20)) // exceeds sub-budget
	})
	if err != ErrOutOfGas {
		t.Fatalf("expected ErrOutOfGas from sub-task, got %v", err)
	}
	if m.Remaining().Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("outer budget not restored correctly: got %s", m.Remaining())
	}
}

func TestWithGasSuccessPathPreservesIdentity(t *testing.T) {
	limit := big.NewInt(100)
	m := New(limit, big.NewInt(1))

	err := m.WithGas(big.NewInt(20), func() error {
		return m.ChargeCPU(big.NewInt(15))
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Remaining().Cmp(big.NewInt(85)) != 0 {
		t.Fatalf("expected 5 unspent sub-budget returned to outer (100-20+5=85), got %s", m.Remaining())
	}

	cpu, ram, storage, penalty := m.Totals()
	sum := new(big.Int).Add(cpu, ram)
	sum.Add(sum, storage).Add(sum, penalty).Add(sum, m.Remaining())
	if sum.Cmp(limit) != 0 {
		t.Fatalf("gas identity violated after WithGas success: got %s, want %s", sum, limit)
	}
	if cpu.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("expected cpu total 15, got %s", cpu)
	}
}

func TestWithGasRejectsSubBudgetExceedingOuterRemaining(t *testing.T) {
	m := New(big.NewInt(10), big.NewInt(1))
	called := false
	err := m.WithGas(big.NewInt(20), func() error {
		called = true
		return nil
	})
	if err != ErrOutOfGas {
		t.Fatalf("expected ErrOutOfGas reserving more than remaining, got %v", err)
	}
	if called {
		t.Fatal("task must not run when the sub-budget itself cannot be reserved")
	}
	if m.Remaining().Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("remaining must be untouched on a rejected reservation, got %s", m.Remaining())
	}
}

func TestChargePayerDrainsRedBeforeGreen(t *testing.T) {
	payer := &fakeAccount{green: big.NewInt(100), red: big.NewInt(30)}
	paidFromGreen, err := ChargePayer(payer, big.NewInt(50), big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if payer.red.Sign() != 0 {
		t.Fatalf("expected red drained to zero, got %s", payer.red)
	}
	if payer.green.Cmp(big.NewInt(80)) != 0 {
		t.Fatalf("expected green 80, got %s", payer.green)
	}
	if paidFromGreen.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("expected 20 paid from green, got %s", paidFromGreen)
	}
}

func TestChargePayerInsufficientFunds(t *testing.T) {
	payer := &fakeAccount{green: big.NewInt(1), red: big.NewInt(1)}
	if _, err := ChargePayer(payer, big.NewInt(1000), big.NewInt(1)); err == nil {
		t.Fatal("expected insufficient funds error")
	}
}

func TestRefundPayerGreenFirst(t *testing.T) {
	payer := &fakeAccount{green: big.NewInt(0), red: big.NewInt(0)}
	RefundPayer(payer, big.NewInt(30), big.NewInt(1), big.NewInt(20))
	if payer.green.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("expected green 20, got %s", payer.green)
	}
	if payer.red.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected red 10, got %s", payer.red)
	}
}
