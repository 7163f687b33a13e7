// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"os"
	"sort"
	"strings"

	"github.com/bureau-foundation/tether/lib/config"
)

// EnvSessionName is set inside every session to the session's name.
const EnvSessionName = "TETHER_SESSION_NAME"

// alwaysForwarded are copied from the client even when not listed in
// forward_env.
var alwaysForwarded = []string{"TERM", "DISPLAY", "LANG", "COLORTERM"}

// inheritedFromDaemon are copied from the daemon's own environment.
var inheritedFromDaemon = []string{"HOME", "USER", "LOGNAME", "SHELL", "TMPDIR", "XDG_RUNTIME_DIR"}

const defaultPath = "/usr/local/bin:/usr/bin:/bin"

// sessionEnv builds a new shell's environment. Precedence, lowest
// first: daemon identity variables, PATH, forwarded client variables,
// configured env, the session name.
func sessionEnv(cfg *config.Config, name string, clientEnv []string) []string {
	env := make(map[string]string)
	for _, key := range inheritedFromDaemon {
		if value, ok := os.LookupEnv(key); ok {
			env[key] = value
		}
	}

	env["PATH"] = defaultPath
	if value, ok := os.LookupEnv("PATH"); ok && value != "" {
		env["PATH"] = value
	}
	if cfg.InitialPath != "" {
		env["PATH"] = cfg.InitialPath
	}

	client := parseEnv(clientEnv)
	for _, key := range append(append([]string(nil), alwaysForwarded...), cfg.ForwardEnv...) {
		if value, ok := client[key]; ok {
			env[key] = value
		}
	}

	for key, value := range cfg.Env {
		env[key] = value
	}
	env[EnvSessionName] = name

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		result = append(result, key+"="+env[key])
	}
	return result
}

// parseEnv converts os.Environ-style entries to a map. Later entries
// win; entries without '=' are ignored.
func parseEnv(entries []string) map[string]string {
	env := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// lookupEnv returns the value of key in an os.Environ-style slice.
func lookupEnv(entries []string, key string) string {
	return parseEnv(entries)[key]
}
