// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind is a shell family with known prompt hooks.
type Kind string

const (
	Bash    Kind = "bash"
	Zsh     Kind = "zsh"
	Fish    Kind = "fish"
	Unknown Kind = "unknown"
)

// Detect identifies the shell running as pid. It reads the process's
// executable from /proc and falls back to the name of shellPath, which
// may be a symlink such as /bin/sh.
func Detect(pid int, shellPath string) Kind {
	if pid > 0 {
		if exe, err := os.Readlink("/proc/" + strconv.Itoa(pid) + "/exe"); err == nil {
			if kind := kindOf(exe); kind != Unknown {
				return kind
			}
		}
	}
	if resolved, err := filepath.EvalSymlinks(shellPath); err == nil {
		if kind := kindOf(resolved); kind != Unknown {
			return kind
		}
	}
	return kindOf(shellPath)
}

func kindOf(path string) Kind {
	name := strings.TrimPrefix(filepath.Base(path), "-")
	// Versioned binaries such as bash5.2 or zsh-5.9.
	name = strings.TrimRight(name, "0123456789.-")
	switch name {
	case "bash":
		return Bash
	case "zsh":
		return Zsh
	case "fish":
		return Fish
	}
	return Unknown
}
