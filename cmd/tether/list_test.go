// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/tether/protocol"
)

func TestWriteSessionTable(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)
	sessions := []protocol.Session{
		{Name: "alpha", StartedAt: started, LastConnectedAt: started.Add(time.Hour), Status: protocol.SessionAttached, Attachment: "a1"},
		{Name: strings.Repeat("n", 60), StartedAt: started, Status: protocol.SessionDisconnected},
	}

	var plain bytes.Buffer
	if err := writeSessionTable(&plain, sessions, false); err != nil {
		t.Fatalf("writeSessionTable: %v", err)
	}
	lines := strings.Split(strings.TrimRight(plain.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("table has %d lines, want 3:\n%s", len(lines), plain.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.HasSuffix(lines[0], "STATUS") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "2026-03-01 10:00:00") || !strings.HasSuffix(lines[1], "attached") {
		t.Errorf("alpha row = %q", lines[1])
	}
	if !strings.Contains(lines[2], strings.Repeat("n", maxNameWidth-1)+"…") || strings.Contains(lines[2], strings.Repeat("n", maxNameWidth+1)) {
		t.Errorf("long name not truncated: %q", lines[2])
	}
	if !strings.Contains(lines[2], " - ") {
		t.Errorf("missing last-connected placeholder: %q", lines[2])
	}

	var styled bytes.Buffer
	if err := writeSessionTable(&styled, sessions, true); err != nil {
		t.Fatalf("writeSessionTable styled: %v", err)
	}
	if ansi.Strip(styled.String()) != plain.String() {
		t.Errorf("styled table differs from plain once escapes are stripped:\n%q\n%q", ansi.Strip(styled.String()), plain.String())
	}
}

func TestWriteSessionTableEmpty(t *testing.T) {
	var buffer bytes.Buffer
	if err := writeSessionTable(&buffer, nil, false); err != nil {
		t.Fatalf("writeSessionTable: %v", err)
	}
	if buffer.String() != "no sessions\n" {
		t.Errorf("output = %q", buffer.String())
	}
}

func TestSessionNamesFallsBackToEnvironment(t *testing.T) {
	t.Setenv("TETHER_SESSION_NAME", "inside")
	names, err := sessionNames(nil, "tether detach")
	if err != nil || len(names) != 1 || names[0] != "inside" {
		t.Fatalf("sessionNames = %v, %v; want [inside]", names, err)
	}

	t.Setenv("TETHER_SESSION_NAME", "")
	if _, err := sessionNames(nil, "tether detach"); err == nil {
		t.Fatal("sessionNames succeeded with no names and no environment")
	}
	names, _ = sessionNames([]string{"a", "b"}, "tether detach")
	if len(names) != 2 {
		t.Fatalf("explicit names = %v", names)
	}
}
