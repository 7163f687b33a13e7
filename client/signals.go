// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/bureau-foundation/tether/protocol"
)

// TerminalSize returns the size of the terminal on fd, or the zero size
// when fd is not a terminal.
func TerminalSize(fd int) protocol.TTYSize {
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return protocol.TTYSize{}
	}
	return protocol.TTYSize{Rows: uint16(rows), Cols: uint16(cols)}
}

// WatchResize delivers the size of the terminal on fd after every
// SIGWINCH until ctx is cancelled. Sizes are coalesced: a slow reader
// sees only the latest.
func WatchResize(ctx context.Context, fd int) <-chan protocol.TTYSize {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGWINCH)
	sizes := make(chan protocol.TTYSize, 1)

	go func() {
		defer signal.Stop(signals)
		defer close(sizes)
		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
			}
			size := TerminalSize(fd)
			if size.Rows == 0 || size.Cols == 0 {
				continue
			}
			select {
			case <-sizes:
			default:
			}
			sizes <- size
		}
	}()
	return sizes
}
