// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shell prepares a freshly started shell for use inside a
// tether session.
//
// Setup relies on sentinels. The daemon types a command that re-runs
// the tether binary with TETHER__INTERNAL__PRINT_SENTINEL set; that
// process prints a fixed marker and exits (see
// [PrintSentinelIfRequested]). Output is discarded until the marker
// shows up in the PTY stream, which hides rc-file noise and the echoed
// setup commands from the user. The startup sentinel proves the shell
// is reading input; the prompt sentinel proves the prompt-prefix
// script has been evaluated.
//
// [ClearCodes] caches the terminal's clear-screen sequence per TERM so
// the daemon can recognize a shell clearing the screen.
package shell
