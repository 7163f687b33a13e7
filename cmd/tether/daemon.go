// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tether/cmd/tether/cli"
	"github.com/bureau-foundation/tether/daemon"
	"github.com/bureau-foundation/tether/lib/version"
)

type daemonParams struct {
	cli.GlobalFlags
	Verbose bool `flag:"verbose,v" desc:"log at debug level"`
}

func daemonCommand() *cli.Command {
	var params daemonParams
	return &cli.Command{
		Name:    "daemon",
		Summary: "Run the session daemon",
		Description: `Run the daemon that owns all sessions, listening on the control socket
until SIGINT or SIGTERM. Stopping the daemon kills every session.

Logs are JSON on stderr.`,
		Usage: "tether daemon [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("daemon", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runDaemon(&params)
		},
	}
}

func runDaemon(params *daemonParams) error {
	cfg, err := params.LoadConfig()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if params.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := daemon.NewRegistry(daemon.Options{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return cli.Internal("%w", err)
	}

	socketPath := params.SocketPath()
	listener, err := daemon.Listen(socketPath)
	if err != nil {
		return cli.Internal("%w", err)
	}
	defer os.Remove(socketPath)

	logger.Info("tether daemon starting",
		"version", version.Info(),
		"socket", socketPath,
		"restore_mode", cfg.RestoreMode().String(),
	)

	go registry.Run(ctx)
	return daemon.NewServer(registry, logger).Serve(ctx, listener)
}
