// Copyright 2025 Certen Protocol
//
// Mark-and-sweep GC of trie nodes unreachable from a set of retained
// roots. Retention-window scheduling is the caller's responsibility:
// pass only the roots still inside the window, and call GC periodically
// - this package has no notion of node age on its own.

package trie

import "fmt"

// GC deletes every stored node not reachable from any of retain. It is
// safe to call concurrently with reads against retained roots (those
// nodes are never in the deletion set), but must not run concurrently
// with a Put building on a root not included in retain.
func (s *NodeStore) GC(roots []Hash) (removed int, err error) {
	reachable := make(map[Hash]struct{})
	t := &Trie{nodes: s}
	for _, r := range roots {
		if err := t.Walk(r, func(h Hash) { reachable[h] = struct{}{} }); err != nil {
			return 0, fmt.Errorf("trie gc: walking retained root %x: %w", r, err)
		}
	}

	it, err := s.kv.Iterator(s.prefix, prefixUpperBound(s.prefix))
	if err != nil {
		return 0, fmt.Errorf("trie gc: %w", err)
	}
	defer it.Close()

	var toDelete [][]byte
	for ; it.Valid(); it.Next() {
		key := append([]byte{}, it.Key()...)
		var h Hash
		copy(h[:], key[len(s.prefix):])
		if _, ok := reachable[h]; !ok {
			toDelete = append(toDelete, key)
		}
	}

	batch := s.kv.NewBatch()
	defer batch.Close()
	for _, key := range toDelete {
		batch.Delete(key)
	}
	if err := batch.Write(); err != nil {
		return 0, fmt.Errorf("trie gc: %w", err)
	}
	return len(toDelete), nil
}

func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte{}, prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded
}
