// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bureau-foundation/tether/lib/trie"
)

// EnvPrintSentinel makes the tether binary print a sentinel and exit.
const EnvPrintSentinel = "TETHER__INTERNAL__PRINT_SENTINEL"

// Sentinel identifies a setup checkpoint.
type Sentinel string

const (
	// Startup is printed once the shell first reads input.
	Startup Sentinel = "startup"

	// Prompt is printed after the prompt-prefix script has run.
	Prompt Sentinel = "prompt"
)

// Marker is the text printed for s. Markers never appear in the
// command that prints them, so the terminal echo of that command
// cannot trigger a false match.
func (s Sentinel) Marker() string {
	switch s {
	case Startup:
		return "TETHER_STARTUP_SENTINEL"
	case Prompt:
		return "TETHER_PROMPT_SETUP_SENTINEL"
	}
	return ""
}

// Command returns the line to type into a shell so that exe prints the
// marker for s. The leading space keeps it out of shell history.
func (s Sentinel) Command(exe string) string {
	return fmt.Sprintf(" %s=%s %s\n", EnvPrintSentinel, s, Quote(exe))
}

// NewSentinelTrie returns a trie matching both markers.
func NewSentinelTrie() *trie.Trie[byte, Sentinel] {
	t := trie.NewBytes[Sentinel]()
	for _, sentinel := range []Sentinel{Startup, Prompt} {
		t.Insert([]byte(sentinel.Marker()), sentinel)
	}
	return t
}

// PrintSentinel writes the marker for the named sentinel to w.
func PrintSentinel(w io.Writer, name string) error {
	marker := Sentinel(name).Marker()
	if marker == "" {
		return fmt.Errorf("unknown sentinel %q", name)
	}
	_, err := fmt.Fprintln(w, marker)
	return err
}

// PrintSentinelIfRequested prints the requested sentinel and exits if
// EnvPrintSentinel is set. Call it first thing in main (and TestMain
// for tests that start real sessions).
func PrintSentinelIfRequested() {
	name, ok := os.LookupEnv(EnvPrintSentinel)
	if !ok {
		return
	}
	if err := PrintSentinel(os.Stdout, name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// Quote single-quotes s for POSIX shells and fish.
func Quote(s string) string {
	if s != "" && strings.IndexFunc(s, needsQuoting) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("/._-+=:,@%", r)
}
