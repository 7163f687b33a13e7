// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
)

func TestSocketPathPrecedence(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv(EnvSocket, "")

	var flags GlobalFlags
	if got := flags.SocketPath(); got != filepath.Join("/run/user/1000", "tether", "tether.sock") {
		t.Errorf("default SocketPath() = %q", got)
	}

	t.Setenv(EnvSocket, "/tmp/env.sock")
	if got := flags.SocketPath(); got != "/tmp/env.sock" {
		t.Errorf("env SocketPath() = %q", got)
	}

	flags.Socket = "/tmp/flag.sock"
	if got := flags.SocketPath(); got != "/tmp/flag.sock" {
		t.Errorf("flag SocketPath() = %q", got)
	}
}

func TestDiagnoseSocketError(t *testing.T) {
	missing := fmt.Errorf("dial: %w", syscall.ENOENT)
	diagnosed := DiagnoseSocketError(missing, "/tmp/t.sock")
	if diagnosed == nil || diagnosed.Category != CategoryTransient {
		t.Fatalf("ENOENT diagnosis = %+v, want transient", diagnosed)
	}
	if !strings.Contains(diagnosed.Error(), "tether daemon") {
		t.Errorf("hint missing from %q", diagnosed.Error())
	}

	denied := fmt.Errorf("dial: %w", syscall.EACCES)
	if diagnosed := DiagnoseSocketError(denied, "/tmp/t.sock"); diagnosed == nil || diagnosed.Category != CategoryForbidden {
		t.Fatalf("EACCES diagnosis = %+v, want forbidden", diagnosed)
	}

	if diagnosed := DiagnoseSocketError(errors.New("other"), "/tmp/t.sock"); diagnosed != nil {
		t.Fatalf("unrelated error diagnosed as %+v", diagnosed)
	}
}
