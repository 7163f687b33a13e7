// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"bytes"
	"strconv"

	"github.com/hinshun/vt10x"
)

// Glyph mode bits as vt10x assigns them internally.
const (
	attrReverse   int16 = 1 << 0
	attrUnderline int16 = 1 << 1
	attrBold      int16 = 1 << 2
	attrItalic    int16 = 1 << 4
	attrBlink     int16 = 1 << 5
)

type style struct {
	bold      bool
	underline bool
	italic    bool
	blink     bool
	reverse   bool
	fg        vt10x.Color
	bg        vt10x.Color
}

var defaultStyle = style{fg: vt10x.DefaultFG, bg: vt10x.DefaultBG}

func styleOf(cell vt10x.Glyph) style {
	return style{
		bold:      cell.Mode&attrBold != 0,
		underline: cell.Mode&attrUnderline != 0,
		italic:    cell.Mode&attrItalic != 0,
		blink:     cell.Mode&attrBlink != 0,
		reverse:   cell.Mode&attrReverse != 0,
		fg:        cell.FG,
		bg:        cell.BG,
	}
}

// renderFrame paints the whole visible screen onto a cleared client
// terminal and then restores cursor position and visibility.
func renderFrame(view vt10x.View, cols, rows, cursorX, cursorY int, cursorVisible bool) []byte {
	var out bytes.Buffer
	mode := view.Mode()

	if mode&vt10x.ModeAltScreen != 0 {
		out.WriteString("\x1b[?1049h")
	}
	// Hide the cursor and disable autowrap while painting.
	out.WriteString("\x1b[?25l\x1b[?7l\x1b[0m\x1b[H\x1b[2J")

	for y := 0; y < rows; y++ {
		writeCursorMove(&out, y+1, 1)
		last := lastPaintedColumn(view, y, cols)
		writeRow(&out, view, y, last)
		if last < cols-1 {
			out.WriteString("\x1b[K")
		}
	}

	if mode&vt10x.ModeWrap != 0 {
		out.WriteString("\x1b[?7h")
	}
	writeCursorMove(&out, cursorY+1, cursorX+1)
	if cursorVisible {
		out.WriteString("\x1b[?25h")
	}
	return out.Bytes()
}

// writeRow writes cells 0..last of row y with their styles and ends
// with an SGR reset.
func writeRow(out *bytes.Buffer, view vt10x.View, y, last int) {
	current := defaultStyle
	for x := 0; x <= last; x++ {
		cell := view.Cell(x, y)
		next := styleOf(cell)
		if next != current {
			writeStyle(out, next)
			current = next
		}
		ch := cell.Char
		if ch == 0 {
			ch = ' '
		}
		out.WriteRune(ch)
	}
	if current != defaultStyle {
		out.WriteString("\x1b[0m")
	}
}

// lastPaintedColumn returns the index of the last cell in row y that
// is not a default-styled blank, or -1 for an empty row.
func lastPaintedColumn(view vt10x.View, y, cols int) int {
	for x := cols - 1; x >= 0; x-- {
		cell := view.Cell(x, y)
		if (cell.Char != 0 && cell.Char != ' ') || styleOf(cell) != defaultStyle {
			return x
		}
	}
	return -1
}

func writeCursorMove(out *bytes.Buffer, row, col int) {
	out.WriteString("\x1b[")
	out.WriteString(strconv.Itoa(row))
	out.WriteByte(';')
	out.WriteString(strconv.Itoa(col))
	out.WriteByte('H')
}

func writeStyle(out *bytes.Buffer, s style) {
	params := make([]int, 0, 8)
	params = append(params, 0)
	if s.bold {
		params = append(params, 1)
	}
	if s.italic {
		params = append(params, 3)
	}
	if s.underline {
		params = append(params, 4)
	}
	if s.blink {
		params = append(params, 5)
	}
	if s.reverse {
		params = append(params, 7)
	}
	params = appendColor(params, s.fg, true)
	params = appendColor(params, s.bg, false)

	out.WriteString("\x1b[")
	for i, p := range params {
		if i > 0 {
			out.WriteByte(';')
		}
		out.WriteString(strconv.Itoa(p))
	}
	out.WriteByte('m')
}

func appendColor(params []int, color vt10x.Color, foreground bool) []int {
	if (foreground && color == vt10x.DefaultFG) || (!foreground && color == vt10x.DefaultBG) {
		return params
	}
	n := int(color)
	switch {
	case n < 0 || n >= 1<<24:
		return params
	case n < 8:
		if foreground {
			return append(params, 30+n)
		}
		return append(params, 40+n)
	case n < 16:
		if foreground {
			return append(params, 90+n-8)
		}
		return append(params, 100+n-8)
	case n < 256:
		if foreground {
			return append(params, 38, 5, n)
		}
		return append(params, 48, 5, n)
	default:
		// Truecolor is packed as 0xRRGGBB.
		r, g, b := (n>>16)&0xff, (n>>8)&0xff, n&0xff
		if foreground {
			return append(params, 38, 2, r, g, b)
		}
		return append(params, 48, 2, r, g, b)
	}
}
