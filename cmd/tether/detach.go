// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tether/client"
	"github.com/bureau-foundation/tether/cmd/tether/cli"
)

func detachCommand() *cli.Command {
	var params cli.GlobalFlags
	return &cli.Command{
		Name:    "detach",
		Summary: "Disconnect the clients of sessions",
		Description: `Disconnect whatever client is attached to each named session. The
shells keep running. With no names, detaches the session this command
runs inside.

Exits non-zero if any name is unknown or had no client attached.`,
		Usage: "tether detach [name...]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("detach", &params)
		},
		Run: func(args []string) error {
			names, err := sessionNames(args, "tether detach [name...]")
			if err != nil {
				return err
			}
			socketPath := params.SocketPath()
			reply, err := client.New(socketPath, cli.NewCommandLogger(warnLevel)).Detach(names)
			if err != nil {
				return connectionError(err, socketPath)
			}
			for _, name := range reply.NotFound {
				fmt.Fprintf(os.Stderr, "tether: no session named %q\n", name)
			}
			for _, name := range reply.NotAttached {
				fmt.Fprintf(os.Stderr, "tether: session %q is not attached\n", name)
			}
			if len(reply.NotFound)+len(reply.NotAttached) > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
