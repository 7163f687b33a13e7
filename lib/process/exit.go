// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// exitCoder is implemented by errors that carry their own exit status,
// such as cli.ExitError or a shell's exit status relayed by the daemon.
type exitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits with code 1.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// Exit terminates the process for the error returned by a command. A
// nil error exits 0. Errors carrying an exit code exit with that code
// without printing anything, since the command has already reported
// whatever it needed to.
func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		os.Exit(coder.ExitCode())
	}
	Fatal(err)
}
