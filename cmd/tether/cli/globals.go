// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tether/lib/config"
)

// EnvSocket overrides the default control socket path.
const EnvSocket = "TETHER_SOCKET"

// GlobalFlags are accepted by every command that talks to the daemon.
type GlobalFlags struct {
	Socket     string
	ConfigFile string
}

// AddFlags registers --socket and --config-file.
func (g *GlobalFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&g.Socket, "socket", "", "daemon control socket (default $"+EnvSocket+" or "+DefaultSocketPath()+")")
	flagSet.StringVar(&g.ConfigFile, "config-file", "", "configuration file (default $"+config.EnvConfigPath+" or "+config.DefaultPath()+")")
}

// SocketPath resolves the control socket: the flag, then $TETHER_SOCKET,
// then [DefaultSocketPath].
func (g *GlobalFlags) SocketPath() string {
	if g.Socket != "" {
		return g.Socket
	}
	if path := os.Getenv(EnvSocket); path != "" {
		return path
	}
	return DefaultSocketPath()
}

// LoadConfig loads the configuration named by --config-file or the
// environment.
func (g *GlobalFlags) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.ConfigFile)
	if err != nil {
		return nil, Validation("%w", err)
	}
	return cfg, nil
}

// DefaultSocketPath is $XDG_RUNTIME_DIR/tether/tether.sock, or a
// per-user directory under the system temp directory.
func DefaultSocketPath() string {
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		return filepath.Join(runtime, "tether", "tether.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("tether-%d", os.Getuid()), "tether.sock")
}

// DiagnoseSocketError turns a failure to reach the daemon into a
// categorized error with a hint. Returns nil for errors that are not
// connection failures.
func DiagnoseSocketError(err error, socketPath string) *ToolError {
	switch {
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ECONNREFUSED):
		return Transient("no daemon listening on %s", socketPath).
			WithHint("Start one with 'tether daemon', or pass --socket if it listens elsewhere.")
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return Forbidden("permission denied accessing %s", socketPath).
			WithHint("The control socket is private to the user running the daemon. " +
				"Check its owner with: ls -la " + filepath.Dir(socketPath))
	}
	return nil
}
