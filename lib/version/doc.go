// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version identifies the running tether build.
//
// Release builds stamp [GitCommit], [GitDirty], [BuildTime], and
// [Version] with -ldflags -X. Plain "go build" binaries fall back to the
// VCS information the go command embeds. The daemon sends [Short] at the
// start of every connection and the client uses [Compatible] to decide
// whether to warn about a mismatch.
package version
