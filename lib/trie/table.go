// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trie

// TransitionTable holds one node's outgoing edges. Node indexes are
// non-negative.
type TransitionTable[S any] interface {
	// Get returns the node reached by sym, if there is an edge.
	Get(sym S) (node int, ok bool)

	// Set adds or replaces the edge for sym.
	Set(sym S, node int)

	// Len returns the number of edges.
	Len() int
}

// MapTable is a TransitionTable for arbitrary comparable symbols.
type MapTable[S comparable] map[S]int

// NewMapTable returns an empty MapTable as a TransitionTable.
func NewMapTable[S comparable]() TransitionTable[S] {
	return MapTable[S]{}
}

func (t MapTable[S]) Get(sym S) (int, bool) {
	node, ok := t[sym]
	return node, ok
}

func (t MapTable[S]) Set(sym S, node int) { t[sym] = node }

func (t MapTable[S]) Len() int { return len(t) }

// ByteTable is a dense TransitionTable for byte symbols. Slots store
// node+1 so the zero value means "no edge".
type ByteTable struct {
	slots [256]int32
	count int
}

// NewByteTable returns an empty ByteTable as a TransitionTable.
func NewByteTable() TransitionTable[byte] {
	return &ByteTable{}
}

func (t *ByteTable) Get(sym byte) (int, bool) {
	slot := t.slots[sym]
	if slot == 0 {
		return 0, false
	}
	return int(slot - 1), true
}

func (t *ByteTable) Set(sym byte, node int) {
	if t.slots[sym] == 0 {
		t.count++
	}
	t.slots[sym] = int32(node + 1)
}

func (t *ByteTable) Len() int { return t.count }
