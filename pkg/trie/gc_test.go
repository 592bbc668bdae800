// Copyright 2025 Certen Protocol

package trie

import (
	"fmt"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/mokanode/corechain/pkg/kv"
)

func TestGCKeepsRetainedRootsReadable(t *testing.T) {
	nodes := NewNodeStore(kv.NewCometAdapter(dbm.NewMemDB()), "t:")
	trie := Open(nodes, Hash{})

	var err error
	for i := 0; i < 8; i++ {
		trie, err = trie.Put([]byte(fmt.Sprintf("key-%d", i)), []byte(fmt.Sprintf("val-%d", i)))
		if err != nil {
			t.Fatal(err)
		}
	}
	oldRoot := trie.Root

	newer, err := trie.Put([]byte("key-0"), []byte("rewritten"))
	if err != nil {
		t.Fatal(err)
	}

	removed, err := nodes.GC([]Hash{newer.Root})
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if removed == 0 {
		t.Fatal("expected the old root's private nodes to be swept")
	}

	for i := 1; i < 8; i++ {
		v, err := newer.Get([]byte(fmt.Sprintf("key-%d", i)))
		if err != nil {
			t.Fatalf("get key-%d after gc: %v", i, err)
		}
		if string(v) != fmt.Sprintf("val-%d", i) {
			t.Fatalf("key-%d: got %s", i, v)
		}
	}
	v, err := newer.Get([]byte("key-0"))
	if err != nil || string(v) != "rewritten" {
		t.Fatalf("key-0 after gc: %s, %v", v, err)
	}

	// The unretained root's private nodes are gone; reading through it
	// must no longer succeed for the rewritten key's old value.
	old := Open(nodes, oldRoot)
	if v, err := old.Get([]byte("key-0")); err == nil && string(v) == "val-0" {
		t.Fatal("swept root still served its old value")
	}
}

func TestGCWithNoRetainedRootsSweepsEverything(t *testing.T) {
	nodes := NewNodeStore(kv.NewCometAdapter(dbm.NewMemDB()), "t:")
	trie := Open(nodes, Hash{})
	trie, err := trie.Put([]byte("a"), []byte("1"))
	if err != nil {
		t.Fatal(err)
	}
	removed, err := nodes.GC(nil)
	if err != nil {
		t.Fatal(err)
	}
	if removed == 0 {
		t.Fatal("expected at least one node swept")
	}
}
