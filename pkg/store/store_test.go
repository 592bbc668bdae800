// Copyright 2025 Certen Protocol

package store

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/mokanode/corechain/pkg/kv"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/values"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return Open(kv.NewCometAdapter(dbm.NewMemDB()))
}

func TestPushRequestResponseIsRetrievable(t *testing.T) {
	s := newTestStore(t)
	tr := NewTransformation(s)

	req := request.JarStoreInitial{Jar: []byte("bytecode")}
	ref := request.Hash(req)
	resp := response.JarStoreInitialResponse{VerificationVersion: 1}

	tr.PushRequestResponse(ref, req, resp)

	committed, stateID, err := tr.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	gotReq, err := committed.GetRequest(ref)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if _, ok := gotReq.(request.JarStoreInitial); !ok {
		t.Fatalf("unexpected request type %T", gotReq)
	}

	gotResp, err := committed.GetResponse(ref)
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	if gotResp.Outcome() != response.OutcomeSuccessful {
		t.Fatalf("unexpected outcome %v", gotResp.Outcome())
	}

	if committed.GetStateID() != stateID {
		t.Fatalf("state-id mismatch after commit")
	}
}

func TestCheckoutAtReproducesHistoricalView(t *testing.T) {
	s := newTestStore(t)
	tr := NewTransformation(s)
	req := request.JarStoreInitial{Jar: []byte("v1")}
	ref := request.Hash(req)
	tr.PushRequestResponse(ref, req, response.JarStoreInitialResponse{})
	afterFirst, firstID, err := tr.Commit()
	if err != nil {
		t.Fatal(err)
	}

	tr2 := NewTransformation(afterFirst)
	req2 := request.JarStoreInitial{Jar: []byte("v2")}
	ref2 := request.Hash(req2)
	tr2.PushRequestResponse(ref2, req2, response.JarStoreInitialResponse{})
	afterSecond, secondID, err := tr2.Commit()
	if err != nil {
		t.Fatal(err)
	}
	if firstID == secondID {
		t.Fatalf("state-id did not change across commit")
	}

	historical := afterSecond.CheckoutAt(firstID)
	if _, err := historical.GetRequest(ref2); err != ErrUnknownReference {
		t.Fatalf("expected second request absent from historical view, got err=%v", err)
	}
	if _, err := historical.GetRequest(ref); err != nil {
		t.Fatalf("expected first request present in historical view: %v", err)
	}
}

func TestUnknownReference(t *testing.T) {
	s := newTestStore(t)
	var ref values.TransactionReference
	if _, err := s.GetRequest(ref); err != ErrUnknownReference {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
}
