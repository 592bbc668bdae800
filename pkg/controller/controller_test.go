// Copyright 2025 Certen Protocol

package controller

import (
	"errors"
	"math/big"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/mokanode/corechain/pkg/builders"
	"github.com/mokanode/corechain/pkg/kv"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/serialize"
	"github.com/mokanode/corechain/pkg/store"
	"github.com/mokanode/corechain/pkg/values"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.Open(kv.NewCometAdapter(dbm.NewMemDB()))
}

func newTestController() *Controller {
	return New(Params{
		ChainID:            "test-chain",
		SignatureAlgorithm: "ed25519",
		BaseCPUCost:        10,
		PerByteCPUCost:     1,
		StorageCostPerByte: 1,
	}, nil, nil, nil, nil)
}

// deliverGenesis runs the jar-install/gamete-creation pair every fresh
// chain starts with and returns the advanced store plus the gamete's
// creating reference.
func deliverGenesis(t *testing.T, c *Controller, s *store.Store) (*store.Store, values.TransactionReference) {
	t.Helper()
	rwd := NewReward()

	jarReq := request.JarStoreInitial{Jar: []byte("base-runtime")}
	s, _, _, err := c.Deliver(s, rwd, jarReq)
	if err != nil {
		t.Fatalf("deliver jar: %v", err)
	}

	gameteReq := request.GameteCreation{
		Classpath:     request.Classpath{Jars: []values.TransactionReference{request.Hash(jarReq)}},
		InitialAmount: big.NewInt(1_000_000),
		RedAmount:     big.NewInt(0),
		PublicKey:     []byte("gamete-pk"),
	}
	s, ref, resp, err := c.Deliver(s, rwd, gameteReq)
	if err != nil {
		t.Fatalf("deliver gamete: %v", err)
	}
	if resp.Outcome() != response.OutcomeSuccessful {
		t.Fatalf("unexpected outcome %d", resp.Outcome())
	}
	return s, ref
}

func TestDeliverPersistsRequestResponseAndHistory(t *testing.T) {
	c := newTestController()
	s, gameteRef := deliverGenesis(t, c, newTestStore(t))

	if _, err := s.GetRequest(gameteRef); err != nil {
		t.Fatalf("get request: %v", err)
	}
	if _, err := s.GetResponse(gameteRef); err != nil {
		t.Fatalf("get response: %v", err)
	}

	gamete := values.StorageReference{Creator: gameteRef, Progressive: 0}
	history, err := s.GetHistory(gamete)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) == 0 {
		t.Fatal("expected a non-empty history for the gamete")
	}
	if history[len(history)-1] != gameteRef {
		t.Fatal("the oldest history entry must be the creating transaction")
	}
	seen := make(map[values.TransactionReference]bool)
	for _, ref := range history {
		if seen[ref] {
			t.Fatalf("history contains %s twice", ref)
		}
		seen[ref] = true
	}
}

func TestDeliverIsDeterministic(t *testing.T) {
	c1 := newTestController()
	s1, _ := deliverGenesis(t, c1, newTestStore(t))

	c2 := newTestController()
	s2, _ := deliverGenesis(t, c2, newTestStore(t))

	if s1.GetStateID() != s2.GetStateID() {
		t.Fatal("identical request streams produced different state ids")
	}
}

func TestDeliverRejectsMethodCallBeforeInitialization(t *testing.T) {
	c := newTestController()
	s := newTestStore(t)
	before := s.GetStateID()

	req := request.InstanceMethodCall{
		Signer: request.Signer{
			Caller:   values.StorageReference{Progressive: 0},
			Nonce:    big.NewInt(0),
			ChainID:  "test-chain",
			GasLimit: big.NewInt(1000),
			GasPrice: big.NewInt(1),
		},
		MethodSignature: "Account.receive(BigInteger)",
	}
	next, _, _, err := c.Deliver(s, NewReward(), req)
	if err == nil {
		t.Fatal("expected rejection on an uninitialized node")
	}
	var rejected response.Rejected
	if !errors.As(err, &rejected) {
		t.Fatalf("expected Rejected, got %T: %v", err, err)
	}
	if next.GetStateID() != before {
		t.Fatal("a rejection must leave the state id unchanged")
	}
}

func TestDeliverInitializationSealsManifest(t *testing.T) {
	c := newTestController()
	s, gameteRef := deliverGenesis(t, c, newTestStore(t))

	manifest := values.StorageReference{Creator: gameteRef, Progressive: 0}
	initReq := request.Initialization{Manifest: manifest}
	s, _, _, err := c.Deliver(s, NewReward(), initReq)
	if err != nil {
		t.Fatalf("deliver initialization: %v", err)
	}

	got, initialized, err := s.GetManifest()
	if err != nil {
		t.Fatal(err)
	}
	if !initialized {
		t.Fatal("node should be initialized after the initialization request")
	}
	if got != manifest {
		t.Fatalf("manifest: got %s, want %s", got, manifest)
	}
}

func TestRewardAccumulatesGasAndCoins(t *testing.T) {
	rwd := NewReward()
	rwd.add(response.GasConsumed{CPU: big.NewInt(10), RAM: big.NewInt(5), Storage: big.NewInt(5), Penalty: big.NewInt(0)}, big.NewInt(2))
	if rwd.GasConsumed.Int64() != 20 {
		t.Fatalf("gas consumed: got %s, want 20", rwd.GasConsumed)
	}
	if rwd.Coins.Int64() != 40 {
		t.Fatalf("coins: got %s, want 40", rwd.Coins)
	}
	if rwd.NumberOfRequests != 1 {
		t.Fatalf("requests: got %d, want 1", rwd.NumberOfRequests)
	}
}

func TestRewardTransactionIsSkippedBeforeInitialization(t *testing.T) {
	c := newTestController()
	s, _ := deliverGenesis(t, c, newTestStore(t))
	before := s.GetStateID()

	next, err := c.RewardTransaction(s, NewReward(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if next.GetStateID() != before {
		t.Fatal("reward transaction on an uninitialized node must be a no-op")
	}
}

// initializedControllerWithRuntime builds a controller backed by the
// native runtime, over a store whose manifest points at the gamete.
func initializedControllerWithRuntime(t *testing.T) (*Controller, *store.Store, values.StorageReference) {
	t.Helper()
	c := newTestController()
	c.Executor = builders.NewRuntime()

	s, gameteRef := deliverGenesis(t, c, newTestStore(t))
	manifest := values.StorageReference{Creator: gameteRef, Progressive: 0}
	s, _, _, err := c.Deliver(s, NewReward(), request.Initialization{Manifest: manifest})
	if err != nil {
		t.Fatalf("deliver initialization: %v", err)
	}
	return c, s, manifest
}

func manifestBalance(t *testing.T, s *store.Store, manifest values.StorageReference) *big.Int {
	t.Helper()
	obj, err := serialize.Deserialize(s, manifest)
	if err != nil {
		t.Fatal(err)
	}
	field := values.FieldSignature{
		DefiningClass: "io.certen.lang.ExternallyOwnedAccount",
		Name:          "balance",
		Type:          values.StorageType{Name: "java.math.BigInteger"},
	}
	v, ok := obj.Fields[field].(values.BigIntegerValue)
	if !ok {
		t.Fatal("manifest has no balance field")
	}
	return v.V
}

func TestRewardTransactionCreditsTheValidators(t *testing.T) {
	c, s, manifest := initializedControllerWithRuntime(t)
	before := manifestBalance(t, s, manifest)

	rwd := NewReward()
	rwd.add(response.GasConsumed{CPU: big.NewInt(30), RAM: big.NewInt(10), Storage: big.NewInt(10), Penalty: big.NewInt(0)}, big.NewInt(2))

	next, err := c.RewardTransaction(s, rwd, []string{"validator-0"}, nil)
	if err != nil {
		t.Fatalf("reward transaction: %v", err)
	}
	if next.GetStateID() == s.GetStateID() {
		t.Fatal("a rewarding block must advance the state")
	}

	want := new(big.Int).Add(before, rwd.Coins)
	if got := manifestBalance(t, next, manifest); got.Cmp(want) != 0 {
		t.Fatalf("validators balance: got %s, want %s", got, want)
	}
}

func TestRewardTransactionQuiescentBlockIsElided(t *testing.T) {
	c, s, _ := initializedControllerWithRuntime(t)
	before := s.GetStateID()

	next, err := c.RewardTransaction(s, NewReward(), nil, nil)
	if err != nil {
		t.Fatalf("reward transaction: %v", err)
	}
	if next.GetStateID() != before {
		t.Fatal("a block with nothing to reward must not advance the state")
	}
}
