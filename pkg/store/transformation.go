// Copyright 2025 Certen Protocol
//
// Transformation accumulates the writes of the requests pushed into it
// and applies them atomically on Commit, so every accepted request gets
// exactly one response, pushed together, and no key becomes visible to a
// reader before the whole batch does. pkg/controller opens one per
// delivered request, so a block's requests reach the tries one at a time.

package store

import (
	"encoding/json"
	"fmt"

	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/values"
)

// Transformation is a single-threaded write buffer opened against one
// Store view. It is not safe for concurrent use; the controller (C8)
// opens one per delivered request and one for the commit-time reward
// transaction.
type Transformation struct {
	base *Store

	requests    map[values.TransactionReference]request.Request
	responses   map[values.TransactionReference]response.Response
	order       []values.TransactionReference // preserves delivery order for history expansion
	histories   map[values.StorageReference][]values.TransactionReference
	manifest    *values.StorageReference
	numRequests int
}

// NewTransformation opens a write buffer against base.
func NewTransformation(base *Store) *Transformation {
	return &Transformation{
		base:      base,
		requests:  make(map[values.TransactionReference]request.Request),
		responses: make(map[values.TransactionReference]response.Response),
		histories: make(map[values.StorageReference][]values.TransactionReference),
	}
}

// PushRequestResponse records the outcome of one delivered request. The
// caller is responsible for having already expanded histories for every
// object touched by resp's updates (see ExpandHistory).
func (t *Transformation) PushRequestResponse(ref values.TransactionReference, req request.Request, resp response.Response) {
	t.requests[ref] = req
	t.responses[ref] = resp
	t.order = append(t.order, ref)
	t.numRequests++
}

// ReplaceResponse overwrites a previously-committed response in place -
// used only by the class loader's reverification cascade, which must be
// able to mark an already-stored jar response as failed without
// re-accepting its request.
func (t *Transformation) ReplaceResponse(ref values.TransactionReference, resp response.Response) {
	t.responses[ref] = resp
}

// ExpandHistory prepends ref to obj's history (newest-first), reading the
// prior history from base if this transformation has not already touched
// it. Idempotent per (obj, ref): a response carrying several updates to
// the same object expands its history exactly once, keeping histories
// duplicate-free.
func (t *Transformation) ExpandHistory(obj values.StorageReference, ref values.TransactionReference) error {
	existing, ok := t.histories[obj]
	if !ok {
		prior, err := t.base.GetHistory(obj)
		if err != nil {
			return fmt.Errorf("expanding history for %s: %w", obj, err)
		}
		existing = prior
	}
	if len(existing) > 0 && existing[0] == ref {
		return nil
	}
	t.histories[obj] = append([]values.TransactionReference{ref}, existing...)
	return nil
}

// SetManifest records the manifest reference for the Initialization
// request.
func (t *Transformation) SetManifest(ref values.StorageReference) {
	t.manifest = &ref
}

// NumberOfRequests is the count of requests pushed into this
// transformation so far, used by the reward transaction.
func (t *Transformation) NumberOfRequests() int { return t.numRequests }

// Commit applies every accumulated write to new trie roots and returns
// the resulting Store and its state-id. The receiver must not be reused
// afterwards.
func (t *Transformation) Commit() (*Store, StateID, error) {
	requests := t.base.requests
	responses := t.base.responses
	histories := t.base.histories
	info := t.base.info

	for _, ref := range t.order {
		reqBytes, err := request.Encode(t.requests[ref])
		if err != nil {
			return nil, StateID{}, fmt.Errorf("encoding request %s: %w", ref, err)
		}
		if requests, err = requests.Put(ref[:], reqBytes); err != nil {
			return nil, StateID{}, fmt.Errorf("pushing request %s: %w", ref, err)
		}
	}

	// Responses may include entries added via ReplaceResponse whose
	// requests were never pushed in this transformation (reverification
	// cascade rewriting an older jar's response), so iterate responses
	// directly rather than via t.order.
	for ref, resp := range t.responses {
		respBytes, err := response.Encode(resp)
		if err != nil {
			return nil, StateID{}, fmt.Errorf("encoding response %s: %w", ref, err)
		}
		var err2 error
		if responses, err2 = responses.Put(ref[:], respBytes); err2 != nil {
			return nil, StateID{}, fmt.Errorf("pushing response %s: %w", ref, err2)
		}
	}

	for obj, hist := range t.histories {
		raw, err := json.Marshal(hist)
		if err != nil {
			return nil, StateID{}, fmt.Errorf("encoding history %s: %w", obj, err)
		}
		if histories, err = histories.Put(historyKey(obj), raw); err != nil {
			return nil, StateID{}, fmt.Errorf("pushing history %s: %w", obj, err)
		}
	}

	if t.manifest != nil {
		raw, err := json.Marshal(*t.manifest)
		if err != nil {
			return nil, StateID{}, fmt.Errorf("encoding manifest: %w", err)
		}
		if info, err = info.Put([]byte(infoKeyManifest), raw); err != nil {
			return nil, StateID{}, fmt.Errorf("pushing manifest: %w", err)
		}
	}

	priorCommits, err := t.base.NumberOfCommits()
	if err != nil {
		return nil, StateID{}, err
	}
	commitsRaw, _ := json.Marshal(priorCommits + 1)
	if info, err = info.Put([]byte(infoKeyCommits), commitsRaw); err != nil {
		return nil, StateID{}, fmt.Errorf("pushing commit counter: %w", err)
	}

	priorHeight, err := t.base.Height()
	if err != nil {
		return nil, StateID{}, err
	}
	heightRaw, _ := json.Marshal(priorHeight + 1)
	if info, err = info.Put([]byte(infoKeyHeight), heightRaw); err != nil {
		return nil, StateID{}, fmt.Errorf("pushing height: %w", err)
	}

	next := &Store{
		kvStore:   t.base.kvStore,
		requests:  requests,
		responses: responses,
		histories: histories,
		info:      info,
	}
	return next, next.GetStateID(), nil
}
