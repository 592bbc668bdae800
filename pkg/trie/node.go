// Copyright 2025 Certen Protocol
//
// Node encoding for the Merkle-Patricia trie. Nodes are hex-nibble
// radix nodes in the style of Ethereum's state trie: leaf, extension,
// and 16-way branch, each content-addressed by the sha256 of its
// canonical encoding.

package trie

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

// Hash is a 32-byte content address of a trie node.
type Hash [32]byte

// IsZero reports whether h is the empty-trie sentinel.
func (h Hash) IsZero() bool { return h == Hash{} }

func hashOf(b []byte) Hash { return sha256.Sum256(b) }

type nodeKind byte

const (
	kindLeaf nodeKind = iota
	kindExtension
	kindBranch
)

// node is the in-memory representation of one trie node. Only one of
// (value) or (children) is meaningful depending on kind, mirroring a
// classic radix-16 Merkle-Patricia trie.
type node struct {
	kind     nodeKind
	path     []byte // nibble path (leaf/extension)
	value    []byte // leaf value, or branch's own value (key ending here)
	children [16]Hash
	child    Hash // extension's single child
}

// encode produces the deterministic byte form hashed to address this
// node. The format is internal to this store (no cross-implementation
// requirement applies to trie node encoding itself - only to request
// hashing), so a simple length-prefixed layout is used.
func (n *node) encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(n.kind))
	switch n.kind {
	case kindLeaf:
		writeBytes(&buf, n.path)
		writeBytes(&buf, n.value)
	case kindExtension:
		writeBytes(&buf, n.path)
		buf.Write(n.child[:])
	case kindBranch:
		for _, c := range n.children {
			buf.Write(c[:])
		}
		writeBytes(&buf, n.value)
	}
	return buf.Bytes()
}

func (n *node) hash() Hash { return hashOf(n.encode()) }

func writeBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func readBytes(b []byte, off int) ([]byte, int) {
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	return b[off : off+n], off + n
}

func decodeNode(b []byte) *node {
	n := &node{kind: nodeKind(b[0])}
	off := 1
	switch n.kind {
	case kindLeaf:
		n.path, off = readBytes(b, off)
		n.value, _ = readBytes(b, off)
	case kindExtension:
		n.path, off = readBytes(b, off)
		copy(n.child[:], b[off:off+32])
	case kindBranch:
		for i := range n.children {
			copy(n.children[i][:], b[off:off+32])
			off += 32
		}
		n.value, _ = readBytes(b, off)
	}
	return n
}

// keyToNibbles expands a byte key into its nibble path (most significant
// nibble first), the unit of traversal through the trie.
func keyToNibbles(key []byte) []byte {
	nib := make([]byte, len(key)*2)
	for i, b := range key {
		nib[i*2] = b >> 4
		nib[i*2+1] = b & 0x0f
	}
	return nib
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
