// Copyright 2025 Certen Protocol

package abci

import (
	"context"
	"math/big"
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/mokanode/corechain/pkg/controller"
	"github.com/mokanode/corechain/pkg/kv"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/store"
	"github.com/mokanode/corechain/pkg/values"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	head := store.Open(kv.NewCometAdapter(dbm.NewMemDB()))
	ctrl := controller.New(controller.Params{
		ChainID:            "test-chain",
		SignatureAlgorithm: "ed25519",
		BaseCPUCost:        10,
		PerByteCPUCost:     1,
		StorageCostPerByte: 1,
	}, nil, nil, nil, nil)
	return New(head, ctrl, nil, nil)
}

func genesisTxs(t *testing.T) ([][]byte, values.TransactionReference) {
	t.Helper()
	jarReq := request.JarStoreInitial{Jar: []byte("base-runtime")}
	jarRaw, err := request.Encode(jarReq)
	if err != nil {
		t.Fatal(err)
	}
	gameteReq := request.GameteCreation{
		Classpath:     request.Classpath{Jars: []values.TransactionReference{request.Hash(jarReq)}},
		InitialAmount: big.NewInt(1_000_000),
		RedAmount:     big.NewInt(0),
		PublicKey:     []byte("pk"),
	}
	gameteRaw, err := request.Encode(gameteReq)
	if err != nil {
		t.Fatal(err)
	}
	return [][]byte{jarRaw, gameteRaw}, request.Hash(gameteReq)
}

func TestFinalizeBlockAndCommitAdvanceHead(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	txs, gameteRef := genesisTxs(t)

	before := app.Head().GetStateID()

	res, err := app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{Height: 1, Txs: txs})
	if err != nil {
		t.Fatalf("finalize block: %v", err)
	}
	for i, r := range res.TxResults {
		if r.Code != 0 {
			t.Fatalf("tx %d: code %d, log %s", i, r.Code, r.Log)
		}
	}

	// Head does not move until Commit.
	if app.Head().GetStateID() != before {
		t.Fatal("head advanced before Commit")
	}

	if _, err := app.Commit(ctx, &abcitypes.RequestCommit{}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	after := app.Head().GetStateID()
	if after == before {
		t.Fatal("head did not advance after Commit")
	}

	if _, err := app.Head().GetRequest(gameteRef); err != nil {
		t.Fatalf("committed request not retrievable: %v", err)
	}
	if _, err := app.Head().GetResponse(gameteRef); err != nil {
		t.Fatalf("committed response not retrievable: %v", err)
	}

	info, err := app.Info(ctx, &abcitypes.RequestInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if info.LastBlockHeight != 1 {
		t.Fatalf("height: got %d, want 1", info.LastBlockHeight)
	}
	if string(info.LastBlockAppHash) != string(after[:]) {
		t.Fatal("app hash does not match the head state id")
	}
}

func TestTwoReplicasReachTheSameAppHash(t *testing.T) {
	ctx := context.Background()
	txs, _ := genesisTxs(t)

	app1 := newTestApp(t)
	app2 := newTestApp(t)
	for _, app := range []*Application{app1, app2} {
		if _, err := app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{Height: 1, Txs: txs}); err != nil {
			t.Fatal(err)
		}
		if _, err := app.Commit(ctx, &abcitypes.RequestCommit{}); err != nil {
			t.Fatal(err)
		}
	}
	if app1.Head().GetStateID() != app2.Head().GetStateID() {
		t.Fatal("replicas disagree on the state id after identical blocks")
	}
}

func TestCheckTxRejectsMalformedBytes(t *testing.T) {
	app := newTestApp(t)
	res, err := app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: []byte("garbage")})
	if err != nil {
		t.Fatal(err)
	}
	if res.Code == 0 {
		t.Fatal("malformed bytes must not pass CheckTx")
	}
}

func TestProcessProposalRejectsUndecodableTx(t *testing.T) {
	app := newTestApp(t)
	res, err := app.ProcessProposal(context.Background(), &abcitypes.RequestProcessProposal{Txs: [][]byte{[]byte("junk")}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != abcitypes.ResponseProcessProposal_REJECT {
		t.Fatal("expected the proposal to be rejected")
	}
}

func TestOnCommitReceivesNotificationsInDeliveryOrder(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	txs, gameteRef := genesisTxs(t)

	var got []EventNotification
	app.OnCommit = func(height int64, _ store.StateID, notifications []EventNotification) {
		if height != 1 {
			t.Errorf("height: got %d, want 1", height)
		}
		got = notifications
	}

	if _, err := app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{Height: 1, Txs: txs}); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Commit(ctx, &abcitypes.RequestCommit{}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if got[1].Response != gameteRef {
		t.Fatal("notifications are not in delivery order")
	}
}
