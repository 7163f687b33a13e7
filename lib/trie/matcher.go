// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trie

// Matcher scans one stream against a shared trie, reporting the
// longest sequence that matches at each position. It is not safe for
// concurrent use; give each stream its own Matcher.
//
// Symbols of an unresolved attempt are held inside the matcher. When
// the stream diverges, the longest sequence completed along the way
// (if any) is reported and the symbols after it are rescanned from
// the root, so a divergence never hides a later match.
type Matcher[S any, V any] struct {
	trie *Trie[S, V]

	// held are the symbols of the current attempt. The first depth
	// of them have been walked into cursor; the rest await a rescan.
	held   []S
	depth  int
	cursor Cursor

	// The last terminal node passed in this attempt.
	terminal    bool
	terminalLen int
	terminalVal V
}

// NewMatcher returns a matcher positioned at Start.
func NewMatcher[S any, V any](t *Trie[S, V]) *Matcher[S, V] {
	return &Matcher[S, V]{trie: t}
}

// Reset discards any partial match.
func (m *Matcher[S, V]) Reset() {
	m.held = m.held[:0]
	m.restart()
}

// InProgress reports whether the symbols consumed since the last
// match or reset are a proper prefix of some sequence.
func (m *Matcher[S, V]) InProgress() bool { return len(m.held) > 0 }

// Pending returns how many of the most recently fed symbols belong to
// an unresolved attempt. Every one of them may yet be part of a match.
func (m *Matcher[S, V]) Pending() int { return len(m.held) }

// Feed consumes one symbol and calls emit for each sequence it
// resolves, in stream order. emit receives the value and the number
// of fed symbols, sym included, that follow the end of the match: 0
// when sym itself completed it, more when sym ruled out a longer
// candidate and so settled an earlier, shorter one.
func (m *Matcher[S, V]) Feed(sym S, emit func(value V, after int)) {
	m.held = append(m.held, sym)
	for m.depth < len(m.held) {
		next := m.trie.Advance(m.cursor, m.held[m.depth])
		if next.IsNoMatch() {
			drop := 1
			if m.terminal {
				emit(m.terminalVal, len(m.held)-m.terminalLen)
				drop = m.terminalLen
			}
			m.consume(drop)
			continue
		}
		m.cursor = next
		m.depth++
		if value, ok := m.trie.Value(next); ok {
			if !m.trie.Extendable(next) {
				emit(value, len(m.held)-m.depth)
				m.consume(m.depth)
				continue
			}
			m.terminal, m.terminalLen, m.terminalVal = true, m.depth, value
		}
	}
}

// Scan feeds every symbol in data. emit receives the value and the
// index in data just past the last symbol of the match. The index is
// negative when the match ended in data fed earlier.
func (m *Matcher[S, V]) Scan(data []S, emit func(value V, end int)) {
	for i, sym := range data {
		m.Feed(sym, func(value V, after int) {
			emit(value, i+1-after)
		})
	}
}

// consume drops the first n held symbols and restarts the walk from
// the root over whatever remains.
func (m *Matcher[S, V]) consume(n int) {
	m.held = append(m.held[:0], m.held[n:]...)
	m.restart()
}

func (m *Matcher[S, V]) restart() {
	var zero V
	m.depth = 0
	m.cursor = Start
	m.terminal, m.terminalLen, m.terminalVal = false, 0, zero
}
