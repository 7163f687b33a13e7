// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies errors from client connections.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsPeerGone reports whether err means the other end of a connection
// went away: EOF, a locally closed connection, a broken pipe, or a
// reset. A client that detaches by closing its socket produces one of
// these on whichever side is mid-read or mid-write, so they are logged
// at debug level rather than treated as failures.
func IsPeerGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
