// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/tether/lib/config"
	"github.com/bureau-foundation/tether/lib/trie"
)

// namedKeys are the non-printing keys a chord may name.
var namedKeys = map[string]byte{
	"space":     ' ',
	"enter":     '\r',
	"tab":       '\t',
	"esc":       0x1b,
	"escape":    0x1b,
	"backspace": 0x7f,
}

// Bindings watches terminal input for configured key chords. Bytes
// that might start a chord are held back until the chord completes or
// diverges, so a completed chord never reaches the shell.
type Bindings struct {
	matcher *trie.Matcher[byte, chord]
	held    []byte
}

// chord is what a completed binding resolves to.
type chord struct {
	action string
	length int
}

// ParseBindings compiles keybindings into a matcher. A binding is a
// space-separated sequence of keys such as "Ctrl-Space Ctrl-q".
func ParseBindings(keybindings []config.Keybinding) (*Bindings, error) {
	t := trie.New[byte, chord](trie.NewMapTable[byte])
	for _, keybinding := range keybindings {
		sequence, err := ParseChord(keybinding.Binding)
		if err != nil {
			return nil, err
		}
		t.Insert(sequence, chord{action: keybinding.Action, length: len(sequence)})
	}
	return &Bindings{matcher: trie.NewMatcher(t)}, nil
}

// ParseChord converts a binding such as "Ctrl-Space Ctrl-q" into the
// bytes a terminal in raw mode sends for it.
func ParseChord(binding string) ([]byte, error) {
	keys := strings.Fields(binding)
	if len(keys) == 0 {
		return nil, fmt.Errorf("empty keybinding")
	}
	sequence := make([]byte, 0, len(keys))
	for _, key := range keys {
		b, err := parseKey(key)
		if err != nil {
			return nil, fmt.Errorf("keybinding %q: %w", binding, err)
		}
		sequence = append(sequence, b)
	}
	return sequence, nil
}

func parseKey(key string) (byte, error) {
	lower := strings.ToLower(key)
	if base, ok := strings.CutPrefix(lower, "ctrl-"); ok {
		switch {
		case base == "space" || base == "@":
			return 0x00, nil
		case len(base) == 1 && base[0] >= 'a' && base[0] <= 'z':
			return base[0] & 0x1f, nil
		case len(base) == 1 && strings.ContainsRune(`[\]^_`, rune(base[0])):
			return base[0] & 0x1f, nil
		}
		return 0, fmt.Errorf("no control character for %q", key)
	}
	if b, ok := namedKeys[lower]; ok {
		return b, nil
	}
	if len(key) == 1 && key[0] >= 0x21 && key[0] < 0x7f {
		return key[0], nil
	}
	return 0, fmt.Errorf("unknown key %q", key)
}

// Filter consumes a chunk of input. It returns the bytes to forward,
// which may include bytes held from earlier chunks, and the actions of
// any chords completed in this chunk. When one binding is a prefix of
// another, the longer one wins if the input completes it.
func (b *Bindings) Filter(chunk []byte) (forward []byte, actions []string) {
	for _, symbol := range chunk {
		b.held = append(b.held, symbol)
		b.matcher.Feed(symbol, func(completed chord, after int) {
			end := len(b.held) - after
			forward = append(forward, b.held[:end-completed.length]...)
			actions = append(actions, completed.action)
			b.held = append(b.held[:0], b.held[end:]...)
		})
		if settled := len(b.held) - b.matcher.Pending(); settled > 0 {
			forward = append(forward, b.held[:settled]...)
			b.held = append(b.held[:0], b.held[settled:]...)
		}
	}
	return forward, actions
}

// Pending reports whether input is being held for a partial chord.
func (b *Bindings) Pending() bool {
	return len(b.held) > 0
}
