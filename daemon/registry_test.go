// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/tether/lib/config"
	"github.com/bureau-foundation/tether/lib/testutil"
	"github.com/bureau-foundation/tether/protocol"
)

func TestAttachCreatesSessionAndRefusesSecondClient(t *testing.T) {
	daemon := startDaemon(t, nil)

	client, reply := daemon.attach(t, protocol.AttachHeader{Name: "alpha"})
	if reply.Status != protocol.AttachCreated {
		t.Fatalf("first attach status = %q, want created", reply.Status)
	}
	daemon.hooks.requireEvent(t, "new_session", "alpha")

	client.send(t, "echo mark-$((40+2))\n")
	client.waitFor(t, "mark-42")

	second, reply := daemon.attach(t, protocol.AttachHeader{Name: "alpha"})
	if reply.Status != protocol.AttachBusy || second != nil {
		t.Fatalf("second attach status = %q, want busy", reply.Status)
	}
	daemon.hooks.requireEvent(t, "busy", "alpha")

	// The refused attach must not disturb the live client.
	client.send(t, "echo still-$((1+1))\n")
	client.waitFor(t, "still-2")
}

func TestDetachAndReattachRestoresScreen(t *testing.T) {
	daemon := startDaemon(t, nil)

	client, _ := daemon.attach(t, protocol.AttachHeader{Name: "work"})
	daemon.hooks.requireEvent(t, "new_session", "work")
	client.send(t, "echo restored-$((6*7))\n")
	client.waitFor(t, "restored-42")

	reply := daemon.detach(t, "work", "missing")
	if len(reply.NotAttached) != 0 {
		t.Fatalf("NotAttached = %v, want none", reply.NotAttached)
	}
	if len(reply.NotFound) != 1 || reply.NotFound[0] != "missing" {
		t.Fatalf("NotFound = %v, want [missing]", reply.NotFound)
	}
	testutil.RequireClosed(t, client.closed, outputTimeout, "detached client connection stayed open")
	daemon.hooks.requireEvent(t, "client_disconnect", "work")

	reply = daemon.detach(t, "work")
	if len(reply.NotAttached) != 1 || reply.NotAttached[0] != "work" {
		t.Fatalf("second detach NotAttached = %v, want [work]", reply.NotAttached)
	}

	again, attachReply := daemon.attach(t, protocol.AttachHeader{Name: "work"})
	if attachReply.Status != protocol.AttachAttached {
		t.Fatalf("reattach status = %q, want attached", attachReply.Status)
	}
	daemon.hooks.requireEvent(t, "reattach", "work")
	again.waitFor(t, "restored-42")
}

func TestConcurrentAttachGrantsOneClient(t *testing.T) {
	daemon := startDaemon(t, nil)

	client, _ := daemon.attach(t, protocol.AttachHeader{Name: "shared"})
	client.send(t, "echo ready-$((2+3))\n")
	client.waitFor(t, "ready-5")
	daemon.detach(t, "shared")
	testutil.RequireClosed(t, client.closed, outputTimeout, "detached client connection stayed open")

	const contenders = 8
	statuses := make(chan protocol.AttachStatus, contenders)
	var wait sync.WaitGroup
	for range contenders {
		wait.Add(1)
		go func() {
			defer wait.Done()
			_, reply := daemon.attach(t, protocol.AttachHeader{Name: "shared"})
			statuses <- reply.Status
		}()
	}
	wait.Wait()
	close(statuses)

	counts := make(map[protocol.AttachStatus]int)
	for status := range statuses {
		counts[status]++
	}
	if counts[protocol.AttachAttached] != 1 || counts[protocol.AttachBusy] != contenders-1 {
		t.Fatalf("attach outcomes = %v, want 1 attached and %d busy", counts, contenders-1)
	}
}

func TestReattachKeepsOriginalEnvironment(t *testing.T) {
	daemon := startDaemon(t, func(cfg *config.Config) {
		cfg.ForwardEnv = []string{"TETHER_TEST_VAR"}
	})

	client, _ := daemon.attach(t, protocol.AttachHeader{
		Name:     "envtest",
		LocalEnv: []string{"TETHER_TEST_VAR=first", "UNFORWARDED_VAR=leak"},
	})
	client.send(t, "echo var=$TETHER_TEST_VAR name=$TETHER_SESSION_NAME other=${UNFORWARDED_VAR:-unset}\n")
	client.waitFor(t, "var=first name=envtest other=unset")

	daemon.detach(t, "envtest")
	testutil.RequireClosed(t, client.closed, outputTimeout, "detached client connection stayed open")

	again, reply := daemon.attach(t, protocol.AttachHeader{
		Name:     "envtest",
		LocalEnv: []string{"TETHER_TEST_VAR=second"},
	})
	if reply.Status != protocol.AttachAttached {
		t.Fatalf("reattach status = %q, want attached", reply.Status)
	}
	again.send(t, "echo again=$TETHER_TEST_VAR\n")
	again.waitFor(t, "again=first")
}

func TestKillTerminatesSession(t *testing.T) {
	daemon := startDaemon(t, nil)

	client, _ := daemon.attach(t, protocol.AttachHeader{Name: "doomed"})
	daemon.hooks.requireEvent(t, "new_session", "doomed")

	reply := daemon.kill(t, "doomed", "ghost")
	if len(reply.NotFound) != 1 || reply.NotFound[0] != "ghost" {
		t.Fatalf("NotFound = %v, want [ghost]", reply.NotFound)
	}
	if status := client.requireExit(t); status == 0 {
		t.Fatalf("killed shell exit status = 0, want non-zero")
	}
	daemon.hooks.requireEvent(t, "shell_disconnect", "doomed")

	if sessions := daemon.list(t); len(sessions) != 0 {
		t.Fatalf("sessions after kill = %v, want none", sessions)
	}
}

func TestShellExitDeliversStatusAndRemovesSession(t *testing.T) {
	daemon := startDaemon(t, nil)

	client, reply := daemon.attach(t, protocol.AttachHeader{Name: "short", Cmd: "echo goodbye; exit 7"})
	if reply.Status != protocol.AttachCreated {
		t.Fatalf("attach status = %q, want created", reply.Status)
	}
	if status := client.requireExit(t); status != 7 {
		t.Fatalf("exit status = %d, want 7", status)
	}
	testutil.RequireClosed(t, client.closed, outputTimeout, "connection stayed open after exit status")
	if !strings.Contains(client.String(), "goodbye") {
		t.Fatalf("output %q lost the shell's final output", client.String())
	}

	if sessions := daemon.list(t); len(sessions) != 0 {
		t.Fatalf("sessions after exit = %v, want none", sessions)
	}

	// The name is free again.
	_, reply = daemon.attach(t, protocol.AttachHeader{Name: "short", Cmd: "exit 0"})
	if reply.Status != protocol.AttachCreated {
		t.Fatalf("attach after exit status = %q, want created", reply.Status)
	}
}

func TestInteractiveExitStatus(t *testing.T) {
	daemon := startDaemon(t, nil)

	client, _ := daemon.attach(t, protocol.AttachHeader{Name: "quitter"})
	client.send(t, "exit 3\n")
	if status := client.requireExit(t); status != 3 {
		t.Fatalf("exit status = %d, want 3", status)
	}
}

func TestListSessions(t *testing.T) {
	daemon := startDaemon(t, nil)

	daemon.attach(t, protocol.AttachHeader{Name: "bravo"})
	daemon.attach(t, protocol.AttachHeader{Name: "alpha"})
	daemon.detach(t, "bravo")

	var sessions []protocol.Session
	testutil.Eventually(t, outputTimeout, func() bool {
		sessions = daemon.list(t)
		return len(sessions) == 2 && sessions[1].Status == protocol.SessionDisconnected
	}, "list never showed bravo disconnected")

	if sessions[0].Name != "alpha" || sessions[1].Name != "bravo" {
		t.Fatalf("session order = [%s %s], want [alpha bravo]", sessions[0].Name, sessions[1].Name)
	}
	if sessions[0].Status != protocol.SessionAttached || sessions[0].Attachment == "" {
		t.Fatalf("alpha = %+v, want attached with an attachment id", sessions[0])
	}
	if sessions[1].Attachment != "" {
		t.Fatalf("bravo attachment = %q, want none", sessions[1].Attachment)
	}
	if sessions[0].StartedAt.IsZero() || sessions[0].LastConnectedAt.Before(sessions[0].StartedAt) {
		t.Fatalf("alpha timestamps = %v / %v", sessions[0].StartedAt, sessions[0].LastConnectedAt)
	}
}

func TestSessionMessages(t *testing.T) {
	daemon := startDaemon(t, nil)

	client, _ := daemon.attach(t, protocol.AttachHeader{
		Name:         "sized",
		LocalTTYSize: protocol.TTYSize{Rows: 24, Cols: 80},
	})

	status := daemon.sessionMessage(t, "sized", protocol.SessionMessagePayload{
		Resize: &protocol.ResizeRequest{TTYSize: protocol.TTYSize{Rows: 40, Cols: 100}},
	})
	if status != protocol.SessionMessageResizeOK {
		t.Fatalf("resize status = %q, want resize_ok", status)
	}
	client.send(t, "stty size\n")
	client.waitFor(t, "40 100")

	status = daemon.sessionMessage(t, "nowhere", protocol.SessionMessagePayload{Detach: true})
	if status != protocol.SessionMessageNotFound {
		t.Fatalf("detach of unknown session = %q, want not_found", status)
	}
	status = daemon.sessionMessage(t, "sized", protocol.SessionMessagePayload{Detach: true})
	if status != protocol.SessionMessageDetachOK {
		t.Fatalf("detach status = %q, want detach_ok", status)
	}
	testutil.RequireClosed(t, client.closed, outputTimeout, "detached client connection stayed open")
}

func TestAttachRejectsInvalidName(t *testing.T) {
	daemon := startDaemon(t, nil)

	client, reply := daemon.attach(t, protocol.AttachHeader{Name: "bad/name"})
	if client != nil || reply.Status != protocol.AttachForbidden {
		t.Fatalf("status = %q, want forbidden", reply.Status)
	}
	if reply.Reason == "" {
		t.Fatal("forbidden reply has no reason")
	}
}

func TestTTLReapsSession(t *testing.T) {
	daemon := startDaemon(t, nil)

	client, _ := daemon.attach(t, protocol.AttachHeader{Name: "ephemeral", TTL: 300 * time.Millisecond})
	client.requireExit(t)
	daemon.hooks.requireEvent(t, "new_session", "ephemeral")
	daemon.hooks.requireEvent(t, "shell_disconnect", "ephemeral")
	if sessions := daemon.list(t); len(sessions) != 0 {
		t.Fatalf("sessions after ttl = %v, want none", sessions)
	}
}

func TestMotdDumpedOnCreate(t *testing.T) {
	motd := filepath.Join(t.TempDir(), "motd")
	if err := os.WriteFile(motd, []byte("welcome to tether\nsecond line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	daemon := startDaemon(t, func(cfg *config.Config) {
		cfg.Motd = config.MotdDump
		cfg.MotdFile = motd
	})

	client, _ := daemon.attach(t, protocol.AttachHeader{Name: "greeted"})
	client.waitFor(t, "welcome to tether\r\nsecond line\r\n")
}

func TestPromptPrefixInjectedIntoBash(t *testing.T) {
	bash, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not installed")
	}
	daemon := startDaemon(t, func(cfg *config.Config) {
		cfg.Shell = bash
		cfg.PromptPrefix = nil
		cfg.Env = map[string]string{"PS1": "$ "}
	})

	client, reply := daemon.attach(t, protocol.AttachHeader{
		Name:     "prompted",
		LocalEnv: []string{"TERM=dumb"},
	})
	if reply.Status != protocol.AttachCreated {
		t.Fatalf("attach status = %q (%s), want created", reply.Status, reply.Message)
	}
	if len(reply.Warnings) != 0 {
		t.Fatalf("setup warnings: %v", reply.Warnings)
	}

	client.send(t, "\n")
	client.waitFor(t, "tether:prompted ")
	if output := client.String(); strings.Contains(output, "TETHER__INTERNAL__PRINT_SENTINEL") {
		t.Fatalf("setup commands leaked into output: %q", output)
	}
}

func TestKillExpiredSparesSuccessorWithSameName(t *testing.T) {
	registry := &Registry{
		logger:   discardLogger(),
		sessions: make(map[string]*Session),
	}
	predecessor := &Session{name: "dup"}
	successor := &Session{name: "dup"}
	registry.sessions["dup"] = successor

	if err := registry.KillExpired("dup", predecessor); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("KillExpired(predecessor) = %v, want ErrSessionNotFound", err)
	}
	if registry.sessions["dup"] != successor {
		t.Fatal("successor was removed by its predecessor's deadline")
	}
}
