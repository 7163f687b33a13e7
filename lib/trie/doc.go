// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trie matches a fixed set of symbol sequences against a
// stream, one symbol at a time.
//
// A [Trie] is built once with [Trie.Insert] and then shared read-only.
// Matching state lives outside the trie in a [Cursor] value, so any
// number of streams can scan against one trie concurrently:
//
//	cursor := trie.Start
//	for _, b := range data {
//		cursor = t.Advance(cursor, b)
//		...
//	}
//
// Each node's outgoing edges live in a [TransitionTable]. [ByteTable]
// is a dense 256-slot array for byte streams; [MapTable] handles any
// comparable symbol type. Both give identical results.
//
// [Matcher] bundles a trie with one stream's cursor and implements the
// scanning policy used throughout tether: a failed transition resets to
// the root and retries the same symbol there, and a sequence that is a
// prefix of a longer one is reported only once the stream rules out
// the longer one.
package trie
