// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/tether/client"
	"github.com/bureau-foundation/tether/cmd/tether/cli"
	"github.com/bureau-foundation/tether/protocol"
)

// maxNameWidth truncates long session names in the table.
const maxNameWidth = 40

const timeLayout = "2006-01-02 15:04:05"

type listParams struct {
	cli.GlobalFlags
	cli.JSONOutput
}

func listCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Summary: "List sessions",
		Usage:   "tether list [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			socketPath := params.SocketPath()
			sessions, err := client.New(socketPath, cli.NewCommandLogger(warnLevel)).List()
			if err != nil {
				return connectionError(err, socketPath)
			}
			if done, err := params.EmitJSON(sessions); done {
				return err
			}
			return writeSessionTable(os.Stdout, sessions, term.IsTerminal(int(os.Stdout.Fd())))
		},
	}
}

var (
	attachedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	disconnectedStyle = lipgloss.NewStyle().Faint(true)
)

// writeSessionTable prints sessions as an aligned table. The status
// column is last so its color codes cannot disturb alignment.
func writeSessionTable(w io.Writer, sessions []protocol.Session, styled bool) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "no sessions")
		return err
	}

	table := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(table, "NAME\tSTARTED\tLAST CONNECTED\tSTATUS")
	for _, session := range sessions {
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\n",
			ansi.Truncate(session.Name, maxNameWidth, "…"),
			formatTime(session.StartedAt),
			formatTime(session.LastConnectedAt),
			formatStatus(session.Status, styled),
		)
	}
	return table.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func formatStatus(status protocol.SessionStatus, styled bool) string {
	text := string(status)
	if !styled {
		return text
	}
	if status == protocol.SessionAttached {
		return attachedStyle.Render(text)
	}
	return disconnectedStyle.Render(text)
}
