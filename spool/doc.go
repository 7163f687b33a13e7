// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spool keeps a session's recent shell output so a reattaching
// client can be shown what it missed.
//
// Every byte the shell writes goes through [Spool.Process], whether or
// not a client is attached. On reattach the daemon sends
// [Spool.RestoreBuffer] before resuming the live stream. What the
// buffer contains depends on the [RestoreMode] chosen when the session
// is created:
//
//   - simple: nothing; the client sees only new output.
//   - screen: the visible frame of a VT emulator sized to the client
//     terminal, including colors, cursor position and the alternate
//     screen.
//   - lines:N: the last N rows of output from an emulator N rows high
//     and very wide, so long lines are not wrapped at the old terminal
//     width.
//
// Emulation is delegated to github.com/hinshun/vt10x. All spools are
// safe for concurrent use.
package spool
