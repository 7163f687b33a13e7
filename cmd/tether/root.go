// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bureau-foundation/tether/cmd/tether/cli"
	"github.com/bureau-foundation/tether/daemon"
	"github.com/bureau-foundation/tether/lib/version"
)

func root() *cli.Command {
	return &cli.Command{
		Name:    "tether",
		Summary: "Persistent shell sessions",
		Description: `Tether keeps shells running on this host after you disconnect.

Start the daemon once, then attach to named sessions. Detaching (or
losing your connection) leaves the shell running; attaching again picks
up where you left off.`,
		Subcommands: []*cli.Command{
			attachCommand(),
			detachCommand(),
			killCommand(),
			listCommand(),
			daemonCommand(),
			versionCommand(),
		},
		Examples: []cli.Example{
			{Description: "Start the daemon", Command: "tether daemon"},
			{Description: "Create or reattach to a session", Command: "tether attach main"},
			{Description: "Take a session over from another terminal", Command: "tether attach -f main"},
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			fmt.Printf("tether %s\n", version.Full())
			return nil
		},
	}
}

// sessionNames returns args, or the enclosing session's name when args
// is empty and the command runs inside a tether session.
func sessionNames(args []string, usage string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if name := os.Getenv(daemon.EnvSessionName); name != "" {
		return []string{name}, nil
	}
	return nil, cli.Validation("no session named and $%s is not set\n\nUsage: %s", daemon.EnvSessionName, usage)
}

// connectionError categorizes a failure to reach the daemon.
func connectionError(err error, socketPath string) error {
	if diagnosed := cli.DiagnoseSocketError(err, socketPath); diagnosed != nil {
		return diagnosed
	}
	var toolError *cli.ToolError
	if errors.As(err, &toolError) {
		return err
	}
	return cli.Transient("%w", err)
}
