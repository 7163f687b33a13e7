// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/tether/client"
	"github.com/bureau-foundation/tether/cmd/tether/cli"
	"github.com/bureau-foundation/tether/protocol"
)

type attachParams struct {
	cli.GlobalFlags
	TTL   time.Duration `flag:"ttl" desc:"kill the session this long after it is created (e.g. 8h)"`
	Force bool          `flag:"force,f" desc:"detach any client already attached"`
	Cmd   string        `flag:"cmd,c" desc:"run this command via sh -c instead of the shell"`
	Dir   string        `flag:"dir,d" desc:"working directory for a new session"`
}

func attachCommand() *cli.Command {
	var params attachParams
	return &cli.Command{
		Name:    "attach",
		Summary: "Create or reattach to a session",
		Description: `Attach this terminal to the named session, creating it if it does not
exist. The terminal is switched to raw mode; press the detach binding
(Ctrl-Space Ctrl-q by default) to leave the shell running and return.

If another client is attached the command fails unless --force is
given, in which case the other client is detached first.

When the shell exits, tether exits with the shell's exit status.`,
		Usage: "tether attach <name> [flags]",
		Examples: []cli.Example{
			{Description: "Attach to the session called main", Command: "tether attach main"},
			{Description: "A session that is killed after a working day", Command: "tether attach --ttl 8h scratch"},
			{Description: "Run a single program in a session", Command: "tether attach --cmd 'htop' monitor"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("attach", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("exactly one session name required\n\nUsage: tether attach <name> [flags]")
			}
			if params.TTL < 0 {
				return cli.Validation("--ttl must not be negative")
			}
			return runAttach(args[0], &params)
		},
	}
}

func runAttach(name string, params *attachParams) error {
	cfg, err := params.LoadConfig()
	if err != nil {
		return err
	}
	bindings, err := client.ParseBindings(cfg.Keybindings)
	if err != nil {
		return cli.Validation("%w", err)
	}

	socketPath := params.SocketPath()
	logger := cli.NewCommandLogger(slog.LevelWarn).With("session", name)
	tetherClient := client.New(socketPath, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGTERM)
	defer stop()

	stdinFd := int(os.Stdin.Fd())
	var restore func()
	defer func() {
		if restore != nil {
			restore()
		}
	}()

	onReply := func(reply protocol.AttachReplyHeader) {
		for _, warning := range reply.Warnings {
			fmt.Fprintf(os.Stderr, "tether: warning: %s\n", warning)
		}
		if !term.IsTerminal(stdinFd) {
			return
		}
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			logger.Warn("could not put terminal in raw mode", "error", err)
			return
		}
		restore = func() { term.Restore(stdinFd, oldState) }
	}

	result, err := tetherClient.Attach(ctx, client.AttachOptions{
		Name:  name,
		Size:  client.TerminalSize(stdinFd),
		Env:   os.Environ(),
		TTL:   params.TTL,
		Cmd:   params.Cmd,
		Dir:   params.Dir,
		Force: params.Force,
	}, client.Terminal{
		Input:    os.Stdin,
		Output:   os.Stdout,
		Resized:  client.WatchResize(ctx, stdinFd),
		Bindings: bindings,
	}, onReply)

	if restore != nil {
		restore()
		restore = nil
	}

	switch {
	case errors.Is(err, client.ErrBusy):
		return cli.Conflict("%w", err).
			WithHint("Another client is attached. Use 'tether attach --force " + name + "' to take the session over.")
	case err != nil && result.Status == protocol.AttachForbidden:
		return cli.Forbidden("%w", err)
	case err != nil && result.Status == "":
		return connectionError(err, socketPath)
	case err != nil:
		return cli.Internal("%w", err)
	}

	if !result.Exited {
		fmt.Fprintf(os.Stderr, "\r\n[detached from %s]\n", name)
		return nil
	}
	if result.ExitStatus != 0 {
		return &cli.ExitError{Code: result.ExitStatus}
	}
	return nil
}
