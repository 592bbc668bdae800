// Copyright 2025 Certen Protocol
//
// CometBFT DB adapter: wraps dbm.DB to implement kv.Store, so the same
// database library backs both the consensus engine and the engine's
// tries.

package kv

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
)

// CometAdapter adapts a cometbft-db dbm.DB into the engine's kv.Store.
type CometAdapter struct {
	db dbm.DB
}

// NewCometAdapter wraps db. Passing a *dbm.MemDB is the usual choice for
// tests; NewGoLevelDB backs a persistent node (see main.go).
func NewCometAdapter(db dbm.DB) *CometAdapter {
	return &CometAdapter{db: db}
}

func (a *CometAdapter) Get(key []byte) ([]byte, error) {
	v, err := a.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("kv get: %w", err)
	}
	return v, nil
}

func (a *CometAdapter) Has(key []byte) (bool, error) {
	ok, err := a.db.Has(key)
	if err != nil {
		return false, fmt.Errorf("kv has: %w", err)
	}
	return ok, nil
}

func (a *CometAdapter) Set(key, value []byte) error {
	if err := a.db.SetSync(key, value); err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

func (a *CometAdapter) Delete(key []byte) error {
	if err := a.db.DeleteSync(key); err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}

func (a *CometAdapter) NewBatch() Batch {
	return &cometBatch{b: a.db.NewBatch()}
}

// Snapshot returns a read-only adapter over the same handle. cometbft-db
// backends (memdb, goleveldb) serve reads against their own internal
// consistent view; the engine never mutates an existing trie node
// (pkg/trie is copy-on-write), so a plain re-wrap is a valid point-in-time
// view for as long as the underlying roots referenced by the caller stay
// pinned.
func (a *CometAdapter) Snapshot() (Store, error) {
	return a, nil
}

func (a *CometAdapter) Iterator(start, end []byte) (Iterator, error) {
	it, err := a.db.Iterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("kv iterator: %w", err)
	}
	return &cometIterator{it: it}, nil
}

func (a *CometAdapter) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("kv close: %w", err)
	}
	return nil
}

type cometBatch struct {
	b dbm.Batch
}

func (c *cometBatch) Set(key, value []byte) {
	_ = c.b.Set(key, value)
}

func (c *cometBatch) Delete(key []byte) {
	_ = c.b.Delete(key)
}

func (c *cometBatch) Write() error {
	if err := c.b.WriteSync(); err != nil {
		return fmt.Errorf("batch write: %w", err)
	}
	return nil
}

func (c *cometBatch) Close() error {
	if err := c.b.Close(); err != nil {
		return fmt.Errorf("batch close: %w", err)
	}
	return nil
}

type cometIterator struct {
	it dbm.Iterator
}

func (c *cometIterator) Valid() bool     { return c.it.Valid() }
func (c *cometIterator) Next()           { c.it.Next() }
func (c *cometIterator) Key() []byte     { return c.it.Key() }
func (c *cometIterator) Value() []byte   { return c.it.Value() }
func (c *cometIterator) Close() error {
	if err := c.it.Close(); err != nil {
		return fmt.Errorf("iterator close: %w", err)
	}
	return nil
}
