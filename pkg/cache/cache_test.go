// Copyright 2025 Certen Protocol

package cache

import "testing"

func TestSignatureCacheRoundTrip(t *testing.T) {
	c, err := NewSignatureCache(4)
	if err != nil {
		t.Fatal(err)
	}
	var key [32]byte
	key[0] = 1
	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put(key, true)
	valid, ok := c.Get(key)
	if !ok || !valid {
		t.Fatalf("expected cached hit valid=true, got valid=%v ok=%v", valid, ok)
	}
}

func TestLoaderCacheInvalidate(t *testing.T) {
	c, err := NewLoaderCache(4)
	if err != nil {
		t.Fatal(err)
	}
	var ref [32]byte
	ref[0] = 7
	c.Put(ref, []byte("jarbytes"))
	if _, ok := c.Get(ref); !ok {
		t.Fatal("expected hit after put")
	}
	c.Invalidate(ref)
	if _, ok := c.Get(ref); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestConfigCacheInvalidateAll(t *testing.T) {
	c := NewConfigCache()
	c.Put(ConfigGasPrice, int64(100))
	c.Put(ConfigInflation, int64(3))
	c.InvalidateAll()
	if _, ok := c.Get(ConfigGasPrice); ok {
		t.Fatal("expected gas price cache cleared")
	}
	if _, ok := c.Get(ConfigInflation); ok {
		t.Fatal("expected inflation cache cleared")
	}
}
