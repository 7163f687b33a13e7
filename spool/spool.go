// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"bytes"
	"sync"

	"github.com/hinshun/vt10x"
)

// Spool records shell output for replay on reattach.
type Spool interface {
	// Resize tells the spool the client terminal changed size.
	Resize(rows, cols int)

	// Process records a chunk of shell output.
	Process(data []byte)

	// RestoreBuffer returns the bytes to write to a reattaching client
	// before live output resumes. It may be empty.
	RestoreBuffer() []byte
}

// New returns the spool for mode. rows and cols are the initial client
// terminal size; virtualWidth is the emulator width for lines mode.
func New(mode RestoreMode, rows, cols, virtualWidth int) Spool {
	switch mode.kind {
	case kindScreen:
		return newScreen(rows, cols)
	case kindLines:
		return newLines(mode.lines, virtualWidth)
	default:
		return Null{}
	}
}

// Null discards all output.
type Null struct{}

func (Null) Resize(int, int)       {}
func (Null) Process([]byte)        {}
func (Null) RestoreBuffer() []byte { return nil }

// emulator is the state shared by the screen and lines spools.
type emulator struct {
	mu    sync.Mutex
	term  vt10x.Terminal
	wrote bool
}

func newEmulator(rows, cols int) *emulator {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &emulator{term: vt10x.New(vt10x.WithSize(cols, rows))}
}

func (e *emulator) Process(data []byte) {
	if len(data) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.term.Write(data); err == nil {
		e.wrote = true
	}
}

// Screen replays the visible frame.
type Screen struct {
	*emulator
}

func newScreen(rows, cols int) *Screen {
	return &Screen{emulator: newEmulator(rows, cols)}
}

// Resize resizes the emulator to match the client.
func (s *Screen) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term.Resize(cols, rows)
}

// RestoreBuffer renders the visible frame, leaving the cursor where
// the shell left it.
func (s *Screen) RestoreBuffer() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.wrote {
		return nil
	}

	view := s.term
	view.Lock()
	defer view.Unlock()

	cols, rows := view.Size()
	if cols <= 0 || rows <= 0 {
		return nil
	}
	cursor := view.Cursor()
	return renderFrame(view, cols, rows,
		clamp(cursor.X, cols-1), clamp(cursor.Y, rows-1), view.CursorVisible())
}

// Lines replays the most recent rows of output without wrapping them
// at the terminal width.
type Lines struct {
	*emulator
	keep int
}

// newLines sizes the emulator one row taller than the rows it keeps.
// Shell output ends every line with a newline, which leaves the cursor
// on a fresh blank row that must not push out a retained one.
func newLines(lines, virtualWidth int) *Lines {
	if virtualWidth <= 0 {
		virtualWidth = 1024
	}
	if lines <= 0 {
		lines = 1
	}
	return &Lines{emulator: newEmulator(lines+1, virtualWidth), keep: lines}
}

// Resize is a no-op: the emulator keeps its virtual width so that a
// narrow client never reflows history.
func (l *Lines) Resize(int, int) {}

// RestoreBuffer returns the last n rows ending at the last non-blank
// one, separated by CRLF. No trailing newline is written, so
// the client cursor ends after the final row, usually the prompt.
func (l *Lines) RestoreBuffer() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.wrote {
		return nil
	}

	view := l.term
	view.Lock()
	defer view.Unlock()

	cols, rows := view.Size()
	last := -1
	for y := rows - 1; y >= 0; y-- {
		if lastPaintedColumn(view, y, cols) >= 0 {
			last = y
			break
		}
	}
	if last < 0 {
		return nil
	}

	first := max(0, last-l.keep+1)
	var out bytes.Buffer
	out.WriteString("\x1b[0m")
	for y := first; y <= last; y++ {
		if y > first {
			out.WriteString("\r\n")
		}
		writeRow(&out, view, y, lastPaintedColumn(view, y, cols))
	}
	return out.Bytes()
}

func clamp(value, max int) int {
	if value < 0 {
		return 0
	}
	if value > max {
		return max
	}
	return value
}
