// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tether/client"
	"github.com/bureau-foundation/tether/cmd/tether/cli"
)

const warnLevel = slog.LevelWarn

func killCommand() *cli.Command {
	var params cli.GlobalFlags
	return &cli.Command{
		Name:    "kill",
		Summary: "Terminate sessions",
		Description: `Terminate each named session. The shell's process group gets SIGHUP,
then SIGKILL if it has not exited within two seconds. An attached
client sees the shell exit. With no names, kills the session this
command runs inside.`,
		Usage: "tether kill [name...]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("kill", &params)
		},
		Run: func(args []string) error {
			names, err := sessionNames(args, "tether kill [name...]")
			if err != nil {
				return err
			}
			socketPath := params.SocketPath()
			reply, err := client.New(socketPath, cli.NewCommandLogger(warnLevel)).Kill(names)
			if err != nil {
				return connectionError(err, socketPath)
			}
			for _, name := range reply.NotFound {
				fmt.Fprintf(os.Stderr, "tether: no session named %q\n", name)
			}
			if len(reply.NotFound) > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
