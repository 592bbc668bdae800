// Copyright 2025 Certen Protocol
//
// LRU caches for data that is expensive to recompute but cheap to
// invalidate: verified signatures, loaded classes, and the handful of
// consensus-parameter lookups builders make on every request.

package cache

import (
	lru "github.com/hashicorp/golang-lru"
)

// SignatureCache remembers the verification outcome of (publicKey,
// message, signature) triples already checked during this node's
// lifetime, keyed by the request's transaction reference - a request's
// signature never changes, so a positive or negative verification result
// is valid forever for that key.
type SignatureCache struct {
	lru *lru.Cache
}

// NewSignatureCache creates a cache holding up to size verified outcomes.
func NewSignatureCache(size int) (*SignatureCache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &SignatureCache{lru: l}, nil
}

// Get reports whether key's verification outcome is cached, and what it
// was.
func (c *SignatureCache) Get(key [32]byte) (valid bool, ok bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return false, false
	}
	return v.(bool), true
}

// Put records key's verification outcome.
func (c *SignatureCache) Put(key [32]byte, valid bool) {
	c.lru.Add(key, valid)
}

// LoaderCache remembers decoded class bytes keyed by jar transaction
// reference, so the class loader (pkg/classloader) does not re-parse the
// same jar for every method call that depends on it within a block.
type LoaderCache struct {
	lru *lru.Cache
}

// NewLoaderCache creates a cache holding up to size loaded jars.
func NewLoaderCache(size int) (*LoaderCache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LoaderCache{lru: l}, nil
}

// Get returns the cached bytes for jarRef, if present.
func (c *LoaderCache) Get(jarRef [32]byte) ([]byte, bool) {
	v, ok := c.lru.Get(jarRef)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Put caches jarRef's decoded bytes.
func (c *LoaderCache) Put(jarRef [32]byte, jar []byte) {
	c.lru.Add(jarRef, jar)
}

// Invalidate drops jarRef's cache entry - called by the reverification
// cascade when a dependency fails a later check and every cached class
// derived from it becomes stale.
func (c *LoaderCache) Invalidate(jarRef [32]byte) {
	c.lru.Remove(jarRef)
}

// ConfigKind distinguishes the handful of well-known consensus
// parameters builders re-read on every request: the gas price, the
// inflation rate, and the validator set.
type ConfigKind int

const (
	ConfigGasPrice ConfigKind = iota
	ConfigInflation
	ConfigValidators
)

// ConfigCache remembers the current value of each ConfigKind,
// invalidated in bulk whenever a request emits an event of one of the
// consensus-update event classes (see pkg/controller).
type ConfigCache struct {
	values map[ConfigKind]any
}

// NewConfigCache creates an empty config cache.
func NewConfigCache() *ConfigCache {
	return &ConfigCache{values: make(map[ConfigKind]any)}
}

// Get returns the cached value for kind, if present.
func (c *ConfigCache) Get(kind ConfigKind) (any, bool) {
	v, ok := c.values[kind]
	return v, ok
}

// Put caches value for kind.
func (c *ConfigCache) Put(kind ConfigKind, value any) {
	c.values[kind] = value
}

// InvalidateAll drops every cached config value - called whenever a
// committed request emits a consensus-update event.
func (c *ConfigCache) InvalidateAll() {
	c.values = make(map[ConfigKind]any)
}
