// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/tether/daemon"
	"github.com/bureau-foundation/tether/lib/config"
	"github.com/bureau-foundation/tether/lib/testutil"
	"github.com/bureau-foundation/tether/protocol"
	"github.com/bureau-foundation/tether/shell"
)

func TestMain(m *testing.M) {
	shell.PrintSentinelIfRequested()
	os.Exit(m.Run())
}

const outputTimeout = 10 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startDaemon runs a real daemon whose sessions are /bin/sh without
// prompt setup, and returns a client for it.
func startDaemon(t *testing.T) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Shell = "/bin/sh"
	noPrefix := ""
	cfg.PromptPrefix = &noPrefix

	registry, err := daemon.NewRegistry(daemon.Options{Config: cfg, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	socket := testutil.SocketPath(t, "tether.sock")
	listener, err := daemon.Listen(socket)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go registry.Run(ctx)
	served := make(chan struct{})
	go func() {
		daemon.NewServer(registry, discardLogger()).Serve(ctx, listener)
		close(served)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, served, 15*time.Second, "daemon did not shut down")
	})
	return New(socket, discardLogger())
}

// syncBuffer is an io.Writer safe to read while an attachment writes.
type syncBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func (b *syncBuffer) waitFor(t *testing.T, text string) {
	t.Helper()
	testutil.Eventually(t, outputTimeout, func() bool {
		return strings.Contains(b.String(), text)
	}, "output never contained %q; got %q", text, b)
}

type attachRun struct {
	input  *io.PipeWriter
	output *syncBuffer
	done   chan struct{}
	result AttachResult
	err    error
}

// runAttach attaches in the background with a pipe for input.
func runAttach(t *testing.T, client *Client, options AttachOptions, resized <-chan protocol.TTYSize) *attachRun {
	t.Helper()
	bindings, err := ParseBindings(config.Default().Keybindings)
	if err != nil {
		t.Fatalf("ParseBindings: %v", err)
	}
	if options.Size == (protocol.TTYSize{}) {
		options.Size = protocol.TTYSize{Rows: 24, Cols: 80}
	}

	inputReader, inputWriter := io.Pipe()
	run := &attachRun{input: inputWriter, output: &syncBuffer{}, done: make(chan struct{})}
	go func() {
		defer close(run.done)
		run.result, run.err = client.Attach(context.Background(), options, Terminal{
			Input:    inputReader,
			Output:   run.output,
			Resized:  resized,
			Bindings: bindings,
		}, nil)
	}()
	t.Cleanup(func() { inputWriter.Close() })
	return run
}

func (r *attachRun) send(t *testing.T, text string) {
	t.Helper()
	if _, err := r.input.Write([]byte(text)); err != nil {
		t.Fatalf("writing input: %v", err)
	}
}

func (r *attachRun) wait(t *testing.T) {
	t.Helper()
	testutil.RequireClosed(t, r.done, outputTimeout, "attach did not return")
}

func TestAttachReturnsShellExitStatus(t *testing.T) {
	client := startDaemon(t)

	run := runAttach(t, client, AttachOptions{Name: "oneshot", Cmd: "echo from-cmd; exit 5"}, nil)
	run.wait(t)
	if run.err != nil {
		t.Fatalf("Attach: %v", run.err)
	}
	if run.result.Status != protocol.AttachCreated {
		t.Fatalf("status = %q, want created", run.result.Status)
	}
	if !run.result.Exited || run.result.ExitStatus != 5 {
		t.Fatalf("result = %+v, want exit status 5", run.result)
	}
	if !strings.Contains(run.output.String(), "from-cmd") {
		t.Fatalf("output %q missing command output", run.output.String())
	}
}

func TestDetachKeybindingDetaches(t *testing.T) {
	client := startDaemon(t)

	run := runAttach(t, client, AttachOptions{Name: "keys"}, nil)
	run.send(t, "echo typed-$((3+4))\n")
	run.output.waitFor(t, "typed-7")

	// Ctrl-Space Ctrl-q, split across writes.
	run.send(t, "\x00")
	run.send(t, "\x11")
	run.wait(t)
	if run.err != nil {
		t.Fatalf("Attach: %v", run.err)
	}
	if run.result.Exited {
		t.Fatalf("result = %+v, want a detach", run.result)
	}

	sessions, err := client.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Status != protocol.SessionDisconnected {
		t.Fatalf("sessions = %+v, want keys disconnected", sessions)
	}
}

func TestAttachBusyThenForce(t *testing.T) {
	client := startDaemon(t)

	first := runAttach(t, client, AttachOptions{Name: "contested"}, nil)
	first.send(t, "echo first-$((1+1))\n")
	first.output.waitFor(t, "first-2")

	_, err := client.Attach(context.Background(), AttachOptions{Name: "contested"}, Terminal{
		Input:  strings.NewReader(""),
		Output: io.Discard,
	}, nil)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("unforced attach error = %v, want ErrBusy", err)
	}

	second := runAttach(t, client, AttachOptions{Name: "contested", Force: true}, nil)
	first.wait(t)
	if first.err != nil || first.result.Exited {
		t.Fatalf("displaced client result = %+v, %v; want a clean detach", first.result, first.err)
	}
	second.send(t, "echo second-$((2+2))\n")
	second.output.waitFor(t, "second-4")
}

func TestResizeForwardedFromTerminal(t *testing.T) {
	client := startDaemon(t)

	resized := make(chan protocol.TTYSize, 1)
	run := runAttach(t, client, AttachOptions{Name: "stretchy"}, resized)
	run.send(t, "echo ready-$((5+5))\n")
	run.output.waitFor(t, "ready-10")

	resized <- protocol.TTYSize{Rows: 33, Cols: 111}
	run.send(t, "while :; do stty size; sleep 0.2; done\n")
	run.output.waitFor(t, "33 111")
}

func TestDetachAndKillReportMissingSessions(t *testing.T) {
	client := startDaemon(t)

	detached, err := client.Detach([]string{"nobody"})
	if err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if len(detached.NotFound) != 1 {
		t.Fatalf("detach reply = %+v, want nobody not found", detached)
	}
	killed, err := client.Kill([]string{"nobody"})
	if err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if len(killed.NotFound) != 1 {
		t.Fatalf("kill reply = %+v, want nobody not found", killed)
	}
	status, err := client.Resize("nobody", protocol.TTYSize{Rows: 1, Cols: 1})
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if status != protocol.SessionMessageNotFound {
		t.Fatalf("resize status = %q, want not_found", status)
	}
}

// busyDaemon answers every attach with Busy and counts the attempts.
func busyDaemon(t *testing.T) (socket string, attempts *atomic.Int32) {
	t.Helper()
	socket = testutil.SocketPath(t, "busy.sock")
	listener, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	attempts = new(atomic.Int32)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				protocol.WriteHeader(conn, protocol.VersionHeader{Version: "0.1.0"})
				var header protocol.ConnectHeader
				if err := protocol.ReadHeader(conn, &header); err != nil {
					return
				}
				switch header.Action {
				case protocol.ActionAttach:
					attempts.Add(1)
					protocol.WriteHeader(conn, protocol.AttachReplyHeader{Status: protocol.AttachBusy})
				case protocol.ActionDetach:
					protocol.WriteHeader(conn, protocol.DetachReply{})
				}
			}()
		}
	}()
	return socket, attempts
}

func TestForcedAttachGivesUp(t *testing.T) {
	socket, attempts := busyDaemon(t)
	client := New(socket, discardLogger())
	client.retryDelay = time.Millisecond

	_, err := client.Attach(context.Background(), AttachOptions{Name: "stuck", Force: true}, Terminal{
		Input:  strings.NewReader(""),
		Output: io.Discard,
	}, nil)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("error = %v, want ErrBusy", err)
	}
	if got := attempts.Load(); got != forceAttempts {
		t.Fatalf("attach attempts = %d, want %d", got, forceAttempts)
	}
}
