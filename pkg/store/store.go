// Copyright 2025 Certen Protocol
//
// Store: the read/write facade over the four Merkle-Patricia tries
// (requests, responses, histories, info). A Store is immutable; all
// writes go through a Transformation that commits atomically and
// returns the new state-id.

package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mokanode/corechain/pkg/kv"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/trie"
	"github.com/mokanode/corechain/pkg/values"
)

// ErrUnknownReference is returned when a reference has no entry in the
// corresponding trie - a read-side error; it never arises inside
// execution (a builder only reads references it itself produced or that
// the caller supplied and already validated).
var ErrUnknownReference = errors.New("store: unknown reference")

const (
	infoKeyManifest = "manifest"
	infoKeyCommits  = "commits"
	infoKeyHeight   = "height"
)

// StateID is the 128-byte concatenation rootResponses||rootInfo||
// rootRequests||rootHistories.
type StateID [128]byte

func (id StateID) responsesRoot() trie.Hash { return sliceToHash(id[0:32]) }
func (id StateID) infoRoot() trie.Hash      { return sliceToHash(id[32:64]) }
func (id StateID) requestsRoot() trie.Hash  { return sliceToHash(id[64:96]) }
func (id StateID) historiesRoot() trie.Hash { return sliceToHash(id[96:128]) }

func sliceToHash(b []byte) trie.Hash {
	var h trie.Hash
	copy(h[:], b)
	return h
}

func buildStateID(responses, info, requests, histories trie.Hash) StateID {
	var id StateID
	copy(id[0:32], responses[:])
	copy(id[32:64], info[:])
	copy(id[64:96], requests[:])
	copy(id[96:128], histories[:])
	return id
}

// Store is a read-only view over one state-id.
type Store struct {
	kvStore   kv.Store
	requests  *trie.Trie
	responses *trie.Trie
	histories *trie.Trie
	info      *trie.Trie
}

// Open builds the four NodeStores over kvStore and returns the empty
// (genesis) store.
func Open(kvStore kv.Store) *Store {
	return &Store{
		kvStore:   kvStore,
		requests:  trie.Open(trie.NewNodeStore(kvStore, "req:"), trie.Hash{}),
		responses: trie.Open(trie.NewNodeStore(kvStore, "resp:"), trie.Hash{}),
		histories: trie.Open(trie.NewNodeStore(kvStore, "hist:"), trie.Hash{}),
		info:      trie.Open(trie.NewNodeStore(kvStore, "info:"), trie.Hash{}),
	}
}

// CheckoutAt returns a Store view frozen at the given state-id, reusing
// the same underlying kv.Store (and therefore its node content, since
// trie puts are copy-on-write - historical nodes are never deleted until
// a GC sweep decides they are unreachable).
func (s *Store) CheckoutAt(id StateID) *Store {
	return &Store{
		kvStore:   s.kvStore,
		requests:  trie.Open(s.requests.Nodes(), id.requestsRoot()),
		responses: trie.Open(s.responses.Nodes(), id.responsesRoot()),
		histories: trie.Open(s.histories.Nodes(), id.historiesRoot()),
		info:      trie.Open(s.info.Nodes(), id.infoRoot()),
	}
}

// GetStateID returns the state-id of this Store's current view.
func (s *Store) GetStateID() StateID {
	return buildStateID(s.responses.Root, s.info.Root, s.requests.Root, s.histories.Root)
}

// GetRequest looks up a request by its reference.
func (s *Store) GetRequest(ref values.TransactionReference) (request.Request, error) {
	raw, err := s.requests.Get(ref[:])
	if errors.Is(err, trie.ErrNotFound) {
		return nil, ErrUnknownReference
	}
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", ref, err)
	}
	return request.Decode(raw)
}

// GetResponse looks up a response by its request's reference.
func (s *Store) GetResponse(ref values.TransactionReference) (response.Response, error) {
	raw, err := s.responses.Get(ref[:])
	if errors.Is(err, trie.ErrNotFound) {
		return nil, ErrUnknownReference
	}
	if err != nil {
		return nil, fmt.Errorf("get response %s: %w", ref, err)
	}
	return response.Decode(raw)
}

// GetHistory returns the ordered (newest-first) transaction references
// that determine obj's current state.
func (s *Store) GetHistory(obj values.StorageReference) ([]values.TransactionReference, error) {
	raw, err := s.histories.Get(historyKey(obj))
	if errors.Is(err, trie.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", obj, err)
	}
	var hexRefs []values.TransactionReference
	if err := json.Unmarshal(raw, &hexRefs); err != nil {
		return nil, fmt.Errorf("decoding history %s: %w", obj, err)
	}
	return hexRefs, nil
}

// GetManifest returns the manifest's storage reference, if the node has
// been initialized.
func (s *Store) GetManifest() (values.StorageReference, bool, error) {
	raw, err := s.info.Get([]byte(infoKeyManifest))
	if errors.Is(err, trie.ErrNotFound) {
		return values.StorageReference{}, false, nil
	}
	if err != nil {
		return values.StorageReference{}, false, fmt.Errorf("get manifest: %w", err)
	}
	var ref values.StorageReference
	if err := json.Unmarshal(raw, &ref); err != nil {
		return values.StorageReference{}, false, fmt.Errorf("decoding manifest: %w", err)
	}
	return ref, true, nil
}

// NumberOfCommits and Height read the info trie's block counters.
func (s *Store) NumberOfCommits() (uint64, error) { return s.infoUint(infoKeyCommits) }
func (s *Store) Height() (uint64, error)           { return s.infoUint(infoKeyHeight) }

func (s *Store) infoUint(key string) (uint64, error) {
	raw, err := s.info.Get([]byte(key))
	if errors.Is(err, trie.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get info %s: %w", key, err)
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decoding info %s: %w", key, err)
	}
	return n, nil
}

func historyKey(obj values.StorageReference) []byte {
	return obj.MarshalCanonical()
}
