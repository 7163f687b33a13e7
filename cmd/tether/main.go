// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Tether keeps shell sessions alive on a host so a client can detach
// and later reattach to the same running shell.
//
// One binary serves both roles. "tether daemon" owns the sessions and
// listens on a Unix socket; every other subcommand is a client of that
// socket:
//
//	tether daemon &
//	tether attach main        # create or reattach
//	Ctrl-Space Ctrl-q         # detach; the shell keeps running
//	tether list
//	tether kill main
//
// The binary also prints shell-setup sentinels when the daemon runs it
// inside a new session with TETHER__INTERNAL__PRINT_SENTINEL set.
package main

import (
	"os"

	"github.com/bureau-foundation/tether/lib/process"
	"github.com/bureau-foundation/tether/shell"
)

func main() {
	shell.PrintSentinelIfRequested()
	process.Exit(root().Execute(os.Args[1:]))
}
