// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon implements the tether session engine: the registry of
// persistent shells, the attach/detach protocol, the TTL reaper and
// the control-socket server.
//
// A [Session] owns a PTY master and the shell process forked onto its
// slave. One background goroutine per session reads the PTY for the
// session's whole life, feeding every byte to the session's spool and,
// when a client is attached, to that client's connection. Clients come
// and go; the shell keeps running until it exits, is killed, or its
// TTL expires.
//
// Locking: [Registry] guards its session map and every session's
// attachment slot with a single mutex. A session's output lock is only
// ever taken while holding the registry mutex or on its own, never the
// other way round. Attachment pointers are read lock-free by the PTY
// reader.
//
// The [Reaper] owns a min-heap of deadlines tagged with per-name
// generation numbers. Scheduling a name again, killing it, or creating
// a new session under it bumps the generation, which turns every
// outstanding deadline for that name into a no-op when it pops.
package daemon
