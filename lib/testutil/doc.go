// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketPath] places a control socket in a short private directory,
// since unix socket paths are limited to 108 bytes. [RequireReceive]
// and [RequireClosed] wrap the select-with-timeout safety valve so
// tests do not hang forever when a goroutine never delivers.
//
// All helpers call t.Fatalf on failure.
package testutil
