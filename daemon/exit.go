// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/bureau-foundation/tether/lib/clock"
)

// exitNotifier publishes a child's exit status once to any number of
// waiters. The done channel is closed after status is written.
type exitNotifier struct {
	once   sync.Once
	done   chan struct{}
	status int
}

func newExitNotifier() *exitNotifier {
	return &exitNotifier{done: make(chan struct{})}
}

// notify records status and wakes all waiters. Later calls are ignored.
func (n *exitNotifier) notify(status int) {
	n.once.Do(func() {
		n.status = status
		close(n.done)
	})
}

// Done is closed once the child has exited.
func (n *exitNotifier) Done() <-chan struct{} { return n.done }

// wait blocks until the child exits or timeout passes on clk. A
// non-positive timeout waits forever.
func (n *exitNotifier) wait(clk clock.Clock, timeout time.Duration) (status int, exited bool) {
	if timeout <= 0 {
		<-n.done
		return n.status, true
	}
	timer := clk.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-n.done:
		return n.status, true
	case <-timer.C:
		return 0, false
	}
}

// exitCode converts the result of exec.Cmd.Wait into a shell-style
// exit status: the exit code, or 128+signal for a signaled child.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}
