// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trie

import "fmt"

type cursorState uint8

const (
	stateStart cursorState = iota
	stateMatch
	stateNoMatch
)

// Cursor is a position in a trie. The zero value is [Start].
type Cursor struct {
	state cursorState
	node  int
}

// Start is the cursor before any symbol has been consumed.
var Start = Cursor{}

// NoMatch is the cursor after a symbol with no outgoing edge. Advance
// keeps returning NoMatch until the caller resets to Start.
var NoMatch = Cursor{state: stateNoMatch}

// IsStart reports whether c is the root position.
func (c Cursor) IsStart() bool { return c.state == stateStart }

// IsNoMatch reports whether the stream has diverged from every
// sequence.
func (c Cursor) IsNoMatch() bool { return c.state == stateNoMatch }

func (c Cursor) String() string {
	switch c.state {
	case stateStart:
		return "Start"
	case stateNoMatch:
		return "NoMatch"
	default:
		return fmt.Sprintf("Match(%d)", c.node)
	}
}

type node[S any, V any] struct {
	edges    TransitionTable[S]
	value    V
	terminal bool
}

// Trie maps symbol sequences to values.
type Trie[S any, V any] struct {
	nodes    []node[S, V]
	newTable func() TransitionTable[S]
}

// New returns an empty trie whose nodes use tables from newTable.
func New[S any, V any](newTable func() TransitionTable[S]) *Trie[S, V] {
	t := &Trie[S, V]{newTable: newTable}
	t.nodes = append(t.nodes, node[S, V]{edges: newTable()})
	return t
}

// NewBytes returns an empty byte trie backed by ByteTable.
func NewBytes[V any]() *Trie[byte, V] {
	return New[byte, V](NewByteTable)
}

// Insert associates value with seq, replacing any earlier value for
// the same sequence. An empty seq is ignored.
func (t *Trie[S, V]) Insert(seq []S, value V) {
	if len(seq) == 0 {
		return
	}
	current := 0
	for _, sym := range seq {
		next, ok := t.nodes[current].edges.Get(sym)
		if !ok {
			next = len(t.nodes)
			t.nodes = append(t.nodes, node[S, V]{edges: t.newTable()})
			t.nodes[current].edges.Set(sym, next)
		}
		current = next
	}
	t.nodes[current].value = value
	t.nodes[current].terminal = true
}

// Advance returns the cursor after consuming sym from c. It does not
// modify the trie.
func (t *Trie[S, V]) Advance(c Cursor, sym S) Cursor {
	if c.state == stateNoMatch {
		return NoMatch
	}
	next, ok := t.nodes[c.node].edges.Get(sym)
	if !ok {
		return NoMatch
	}
	return Cursor{state: stateMatch, node: next}
}

// Value returns the value stored at c, if c sits on the end of an
// inserted sequence.
func (t *Trie[S, V]) Value(c Cursor) (V, bool) {
	if c.state != stateMatch || !t.nodes[c.node].terminal {
		var zero V
		return zero, false
	}
	return t.nodes[c.node].value, true
}

// Extendable reports whether some inserted sequence continues past c.
func (t *Trie[S, V]) Extendable(c Cursor) bool {
	if c.state == stateNoMatch {
		return false
	}
	return t.nodes[c.node].edges.Len() > 0
}
