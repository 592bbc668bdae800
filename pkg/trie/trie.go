// Copyright 2025 Certen Protocol
//
// Merkle-Patricia trie over pkg/kv.Store. Puts are copy-on-write: an
// existing node is never mutated, only replaced by a new node under a
// new hash, so a Trie opened at any historical root is an immutable
// view. The four store tries (requests, responses,
// histories, info) are each one instance of this type keyed by a
// distinct prefix in the same underlying kv.Store.

package trie

import (
	"errors"
	"fmt"

	"github.com/mokanode/corechain/pkg/kv"
)

// ErrNotFound is returned by Get when key has no entry under root.
var ErrNotFound = errors.New("trie: key not found")

// NodeStore persists trie nodes keyed by their content hash.
type NodeStore struct {
	kv     kv.Store
	prefix []byte
}

// NewNodeStore returns a NodeStore that namespaces its keys under
// prefix, so several tries (requests/responses/histories/info) can
// share one underlying kv.Store.
func NewNodeStore(store kv.Store, prefix string) *NodeStore {
	return &NodeStore{kv: store, prefix: []byte(prefix)}
}

func (s *NodeStore) key(h Hash) []byte {
	return append(append([]byte{}, s.prefix...), h[:]...)
}

func (s *NodeStore) load(h Hash) (*node, error) {
	if h.IsZero() {
		return nil, nil
	}
	raw, err := s.kv.Get(s.key(h))
	if err != nil {
		return nil, fmt.Errorf("trie: loading node %x: %w", h, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("trie: dangling node reference %x", h)
	}
	return decodeNode(raw), nil
}

func (s *NodeStore) store(n *node) (Hash, error) {
	h := n.hash()
	if err := s.kv.Set(s.key(h), n.encode()); err != nil {
		return Hash{}, fmt.Errorf("trie: storing node %x: %w", h, err)
	}
	return h, nil
}

// Trie is a handle to one Merkle-Patricia trie rooted at Root. Put
// returns a new Trie (new Root); the receiver is never mutated.
type Trie struct {
	nodes *NodeStore
	Root  Hash
}

// Open returns a Trie view rooted at root (use the zero Hash for an
// empty trie).
func Open(nodes *NodeStore, root Hash) *Trie {
	return &Trie{nodes: nodes, Root: root}
}

// Nodes returns the NodeStore backing this trie, so a caller can open
// another view (e.g. at a historical root) against the same storage.
func (t *Trie) Nodes() *NodeStore { return t.nodes }

// Get returns the value stored at key, or ErrNotFound.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.get(t.Root, keyToNibbles(key))
}

func (t *Trie) get(h Hash, path []byte) ([]byte, error) {
	if h.IsZero() {
		return nil, ErrNotFound
	}
	n, err := t.nodes.load(h)
	if err != nil {
		return nil, err
	}
	switch n.kind {
	case kindLeaf:
		if bytesEqual(n.path, path) {
			return n.value, nil
		}
		return nil, ErrNotFound
	case kindExtension:
		cp := commonPrefixLen(n.path, path)
		if cp < len(n.path) {
			return nil, ErrNotFound
		}
		return t.get(n.child, path[cp:])
	case kindBranch:
		if len(path) == 0 {
			if n.value == nil {
				return nil, ErrNotFound
			}
			return n.value, nil
		}
		return t.get(n.children[path[0]], path[1:])
	}
	return nil, ErrNotFound
}

// Put returns a new Trie with key set to value. The receiver's nodes
// remain reachable at the receiver's Root.
func (t *Trie) Put(key, value []byte) (*Trie, error) {
	newRoot, err := t.put(t.Root, keyToNibbles(key), value)
	if err != nil {
		return nil, err
	}
	return &Trie{nodes: t.nodes, Root: newRoot}, nil
}

func (t *Trie) put(h Hash, path, value []byte) (Hash, error) {
	if h.IsZero() {
		return t.nodes.store(&node{kind: kindLeaf, path: path, value: value})
	}
	n, err := t.nodes.load(h)
	if err != nil {
		return Hash{}, err
	}
	switch n.kind {
	case kindLeaf:
		return t.putIntoLeaf(n, path, value)
	case kindExtension:
		return t.putIntoExtension(n, path, value)
	case kindBranch:
		return t.putIntoBranch(n, path, value)
	}
	return Hash{}, fmt.Errorf("trie: unknown node kind %d", n.kind)
}

func (t *Trie) putIntoLeaf(n *node, path, value []byte) (Hash, error) {
	if bytesEqual(n.path, path) {
		return t.nodes.store(&node{kind: kindLeaf, path: path, value: value})
	}
	cp := commonPrefixLen(n.path, path)
	br := &node{kind: kindBranch}
	if err := t.branchArm(br, n.path, cp, n.value); err != nil {
		return Hash{}, err
	}
	if err := t.branchArm(br, path, cp, value); err != nil {
		return Hash{}, err
	}
	brHash, err := t.nodes.store(br)
	if err != nil {
		return Hash{}, err
	}
	return t.wrapExtension(n.path[:cp], brHash)
}

func (t *Trie) putIntoExtension(n *node, path, value []byte) (Hash, error) {
	cp := commonPrefixLen(n.path, path)
	if cp == len(n.path) {
		newChild, err := t.put(n.child, path[cp:], value)
		if err != nil {
			return Hash{}, err
		}
		return t.wrapExtension(n.path, newChild)
	}
	br := &node{kind: kindBranch}
	// Remainder of the extension continues via its original child.
	rem := n.path[cp:]
	if len(rem) == 1 {
		br.children[rem[0]] = n.child
	} else {
		extHash, err := t.nodes.store(&node{kind: kindExtension, path: rem[1:], child: n.child})
		if err != nil {
			return Hash{}, err
		}
		br.children[rem[0]] = extHash
	}
	if err := t.branchArm(br, path, cp, value); err != nil {
		return Hash{}, err
	}
	brHash, err := t.nodes.store(br)
	if err != nil {
		return Hash{}, err
	}
	return t.wrapExtension(n.path[:cp], brHash)
}

func (t *Trie) putIntoBranch(n *node, path, value []byte) (Hash, error) {
	cp := *n
	if len(path) == 0 {
		cp.value = value
		return t.nodes.store(&cp)
	}
	nib := path[0]
	newChild, err := t.put(n.children[nib], path[1:], value)
	if err != nil {
		return Hash{}, err
	}
	cp.children[nib] = newChild
	return t.nodes.store(&cp)
}

// branchArm installs the remainder of (path, value) past cp nibbles
// into br, either as br's own value (remainder empty) or as a leaf
// child keyed by the next nibble.
func (t *Trie) branchArm(br *node, path []byte, cp int, value []byte) error {
	rem := path[cp:]
	if len(rem) == 0 {
		br.value = value
		return nil
	}
	leafHash, err := t.nodes.store(&node{kind: kindLeaf, path: rem[1:], value: value})
	if err != nil {
		return err
	}
	br.children[rem[0]] = leafHash
	return nil
}

func (t *Trie) wrapExtension(prefix []byte, child Hash) (Hash, error) {
	if len(prefix) == 0 {
		return child, nil
	}
	return t.nodes.store(&node{kind: kindExtension, path: prefix, child: child})
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Walk invokes visit for every node hash reachable from root, depth
// first. Used by GC to compute the retained set.
func (t *Trie) Walk(root Hash, visit func(Hash)) error {
	if root.IsZero() {
		return nil
	}
	visit(root)
	n, err := t.nodes.load(root)
	if err != nil {
		return err
	}
	switch n.kind {
	case kindExtension:
		return t.Walk(n.child, visit)
	case kindBranch:
		for _, c := range n.children {
			if err := t.Walk(c, visit); err != nil {
				return err
			}
		}
	}
	return nil
}
