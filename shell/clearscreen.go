// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/bureau-foundation/tether/lib/trie"
)

// DefaultClearScreen is used when terminfo has no answer: cursor home
// followed by erase display.
var DefaultClearScreen = []byte("\x1b[H\x1b[2J")

// tputTimeout bounds each terminfo query.
const tputTimeout = 2 * time.Second

// ClearCodes looks up and caches clear-screen sequences per TERM.
// It is safe for concurrent use.
type ClearCodes struct {
	lookup func(ctx context.Context, term string) ([]byte, error)

	mu    sync.Mutex
	cache map[string]*trie.Trie[byte, int]
	codes map[string][]byte
}

// NewClearCodes returns a cache that asks tput.
func NewClearCodes() *ClearCodes {
	return newClearCodes(tputClear)
}

func newClearCodes(lookup func(ctx context.Context, term string) ([]byte, error)) *ClearCodes {
	return &ClearCodes{
		lookup: lookup,
		cache:  make(map[string]*trie.Trie[byte, int]),
		codes:  make(map[string][]byte),
	}
}

// Sequence returns the clear-screen sequence for term, querying
// terminfo the first time a term is seen.
func (c *ClearCodes) Sequence(ctx context.Context, term string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked(ctx, term)
	return c.codes[term]
}

// Trie returns a trie matching the clear-screen sequence for term and
// the default sequence. Each value is the length of its sequence.
// Tries are shared; create a trie.Matcher per stream.
func (c *ClearCodes) Trie(ctx context.Context, term string) *trie.Trie[byte, int] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked(ctx, term)
	return c.cache[term]
}

func (c *ClearCodes) loadLocked(ctx context.Context, term string) {
	if _, ok := c.codes[term]; ok {
		return
	}
	code := DefaultClearScreen
	if term != "" {
		if looked, err := c.lookup(ctx, term); err == nil && len(looked) > 0 {
			code = looked
		}
	}
	t := trie.NewBytes[int]()
	t.Insert(code, len(code))
	if !bytes.Equal(code, DefaultClearScreen) {
		t.Insert(DefaultClearScreen, len(DefaultClearScreen))
	}
	c.codes[term] = code
	c.cache[term] = t
}

func tputClear(ctx context.Context, term string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, tputTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, "tput", "-T", term, "clear").Output()
	if err != nil {
		return nil, fmt.Errorf("tput -T %s clear: %w", term, err)
	}
	return output, nil
}
