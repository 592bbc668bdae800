// Copyright 2025 Certen Protocol

package node

import (
	"context"
	"testing"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/mokanode/corechain/pkg/abci"
	"github.com/mokanode/corechain/pkg/controller"
	"github.com/mokanode/corechain/pkg/kv"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/store"
)

// fakeBroadcaster records submitted transactions instead of talking to a
// consensus engine.
type fakeBroadcaster struct {
	code uint32
	log  string
	txs  []cmttypes.Tx
}

func (f *fakeBroadcaster) BroadcastTxSync(ctx context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTx, error) {
	f.txs = append(f.txs, tx)
	return &coretypes.ResultBroadcastTx{Code: f.code, Log: f.log}, nil
}

func newTestApp(t *testing.T) *abci.Application {
	t.Helper()
	head := store.Open(kv.NewCometAdapter(dbm.NewMemDB()))
	ctrl := controller.New(controller.Params{ChainID: "test-chain", SignatureAlgorithm: "ed25519"}, nil, nil, nil, nil)
	return abci.New(head, ctrl, nil, nil)
}

func TestPostRequestSubmitsToTheMempool(t *testing.T) {
	app := newTestApp(t)
	fake := &fakeBroadcaster{}
	n := New(app, fake, Params{MaxPollingAttempts: 3, PollingDelay: time.Millisecond})

	req := request.JarStoreInitial{Jar: []byte("jar")}
	polled, err := n.PostRequest(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if polled.Reference != request.Hash(req) {
		t.Fatal("returned reference does not match the request's hash")
	}
	if len(fake.txs) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(fake.txs))
	}
}

func TestPostRequestSurfacesMempoolRejection(t *testing.T) {
	app := newTestApp(t)
	fake := &fakeBroadcaster{code: 1, log: "nonce mismatch"}
	n := New(app, fake, Params{MaxPollingAttempts: 1, PollingDelay: time.Millisecond})

	if _, err := n.PostRequest(context.Background(), request.JarStoreInitial{Jar: []byte("jar")}); err == nil {
		t.Fatal("expected the mempool rejection to surface")
	}
}

func TestAddRequestResolvesOnceTheBlockCommits(t *testing.T) {
	app := newTestApp(t)
	fake := &fakeBroadcaster{}
	n := New(app, fake, Params{MaxPollingAttempts: 50, PollingDelay: time.Millisecond})

	req := request.JarStoreInitial{Jar: []byte("jar")}
	raw, err := request.Encode(req)
	if err != nil {
		t.Fatal(err)
	}

	// Deliver the block in the background, as consensus would.
	go func() {
		time.Sleep(5 * time.Millisecond)
		ctx := context.Background()
		if _, err := app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{Height: 1, Txs: [][]byte{raw}}); err != nil {
			t.Error(err)
			return
		}
		if _, err := app.Commit(ctx, &abcitypes.RequestCommit{}); err != nil {
			t.Error(err)
		}
	}()

	resp, err := n.AddRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("add request: %v", err)
	}
	if resp == nil {
		t.Fatal("expected a response")
	}
}

func TestAddRequestTimesOutWithoutDelivery(t *testing.T) {
	app := newTestApp(t)
	fake := &fakeBroadcaster{}
	n := New(app, fake, Params{MaxPollingAttempts: 2, PollingDelay: time.Millisecond})

	_, err := n.AddRequest(context.Background(), request.JarStoreInitial{Jar: []byte("jar")})
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestSubscribeReceivesCommitNotifications(t *testing.T) {
	app := newTestApp(t)
	n := New(app, &fakeBroadcaster{}, Params{MaxPollingAttempts: 1, PollingDelay: time.Millisecond})

	ch, unsubscribe := n.Subscribe(nil)
	defer unsubscribe()

	req := request.JarStoreInitial{Jar: []byte("jar")}
	raw, err := request.Encode(req)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{Height: 1, Txs: [][]byte{raw}}); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Commit(ctx, &abcitypes.RequestCommit{}); err != nil {
		t.Fatal(err)
	}

	select {
	case note := <-ch:
		if note.Height != 1 {
			t.Fatalf("height: got %d, want 1", note.Height)
		}
		if note.Response != request.Hash(req) {
			t.Fatal("notification references the wrong response")
		}
	case <-time.After(time.Second):
		t.Fatal("no notification arrived")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	app := newTestApp(t)
	n := New(app, &fakeBroadcaster{}, Params{MaxPollingAttempts: 1, PollingDelay: time.Millisecond})

	ch, unsubscribe := n.Subscribe(nil)
	unsubscribe()

	if _, open := <-ch; open {
		t.Fatal("channel should be closed after unsubscribe")
	}
}
