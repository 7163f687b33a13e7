// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"fmt"
	"strconv"
	"strings"
)

type restoreKind uint8

const (
	kindSimple restoreKind = iota
	kindScreen
	kindLines
)

// RestoreMode selects what a reattaching client is shown. The zero
// value is simple mode.
type RestoreMode struct {
	kind  restoreKind
	lines int
}

// SimpleMode restores nothing.
func SimpleMode() RestoreMode { return RestoreMode{kind: kindSimple} }

// ScreenMode restores the visible screen.
func ScreenMode() RestoreMode { return RestoreMode{kind: kindScreen} }

// LinesMode restores the last n lines of output.
func LinesMode(n int) RestoreMode { return RestoreMode{kind: kindLines, lines: n} }

// ParseRestoreMode parses "simple", "screen", "lines" or "lines:N".
// Bare "lines" uses defaultLines.
func ParseRestoreMode(s string, defaultLines int) (RestoreMode, error) {
	name, count, hasCount := strings.Cut(strings.TrimSpace(s), ":")
	switch strings.ToLower(name) {
	case "simple":
		if hasCount {
			return RestoreMode{}, fmt.Errorf("simple mode takes no line count: %q", s)
		}
		return SimpleMode(), nil
	case "screen":
		if hasCount {
			return RestoreMode{}, fmt.Errorf("screen mode takes no line count: %q", s)
		}
		return ScreenMode(), nil
	case "lines":
		lines := defaultLines
		if hasCount {
			parsed, err := strconv.Atoi(count)
			if err != nil {
				return RestoreMode{}, fmt.Errorf("invalid line count in %q: %w", s, err)
			}
			lines = parsed
		}
		if lines <= 0 {
			return RestoreMode{}, fmt.Errorf("line count must be positive, got %d", lines)
		}
		return LinesMode(lines), nil
	default:
		return RestoreMode{}, fmt.Errorf("unknown restore mode %q (want simple, screen, lines, or lines:N)", s)
	}
}

// Lines returns the line count for lines mode.
func (m RestoreMode) Lines() (int, bool) {
	return m.lines, m.kind == kindLines
}

func (m RestoreMode) String() string {
	switch m.kind {
	case kindScreen:
		return "screen"
	case kindLines:
		return "lines:" + strconv.Itoa(m.lines)
	default:
		return "simple"
	}
}

// UnmarshalText implements encoding.TextUnmarshaler. Bare "lines" is
// rejected here because there is no default count to apply.
func (m *RestoreMode) UnmarshalText(text []byte) error {
	parsed, err := ParseRestoreMode(string(text), 0)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m RestoreMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
