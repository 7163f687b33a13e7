// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/tether/lib/clock"
	"github.com/bureau-foundation/tether/lib/trie"
	"github.com/bureau-foundation/tether/protocol"
	"github.com/bureau-foundation/tether/shell"
	"github.com/bureau-foundation/tether/spool"
)

const (
	// killGracePeriod is how long a session gets to exit after SIGHUP
	// before it is sent SIGKILL.
	killGracePeriod = 2 * time.Second

	// readerDrainTimeout bounds how long the exit watcher waits for
	// the PTY reader after the shell exits. Background jobs can hold
	// the PTY slave open indefinitely.
	readerDrainTimeout = time.Second

	// motdClearWindow is how long after creation a clear-screen from
	// the shell is suppressed so it does not wipe the message of the
	// day.
	motdClearWindow = 2 * time.Second

	readBufferSize = 4096
)

// output phases of a session's PTY reader.
const (
	phaseSetup int32 = iota
	phaseLive
)

// Session is one persistent shell.
type Session struct {
	name      string
	createdAt time.Time
	logger    *slog.Logger
	clock     clock.Clock

	ptmx  *os.File
	cmd   *exec.Cmd
	shell string
	term  string

	exit *exitNotifier

	// closed is closed by the exit watcher once the reader has been
	// joined and any attached client has been sent the exit status.
	closed     chan struct{}
	readerDone chan struct{}

	// writeMu serializes writes to the PTY master so setup commands
	// and client input never interleave.
	writeMu sync.Mutex

	// attachment is the live client, if any. Stored only while holding
	// the registry mutex.
	attachment atomic.Pointer[attachment]

	// lastConnectedAt is guarded by the registry mutex.
	lastConnectedAt time.Time

	// outputMu orders spool updates against attachment handover, so a
	// reattaching client gets a restore buffer and then exactly the
	// output that followed it.
	outputMu sync.Mutex
	spool    spool.Spool
	phase    atomic.Int32

	// Reader-goroutine state.
	sentinels     *trie.Matcher[byte, shell.Sentinel]
	sentinelSeen  chan shell.Sentinel
	trimNewline   bool
	clearMatcher  *trie.Matcher[byte, int]
	suppressClear bool
	clearHeld     []byte // possible start of a clear split across reads
}

// spawnRequest describes the process to fork onto a new PTY.
type spawnRequest struct {
	path string
	args []string
	env  []string
	dir  string
	size protocol.TTYSize
}

// spawn starts the child in its own session with the PTY slave as
// controlling terminal, so the whole job tree shares one process group
// that can be signaled together.
func spawn(request spawnRequest) (*os.File, *exec.Cmd, error) {
	cmd := &exec.Cmd{
		Path: request.path,
		Args: request.args,
		Env:  request.env,
		Dir:  request.dir,
	}
	ptmx, err := pty.StartWithAttrs(cmd, ptyWinsize(request.size), &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("starting %s on a pty: %w", request.path, err)
	}
	return ptmx, cmd, nil
}

func ptyWinsize(size protocol.TTYSize) *pty.Winsize {
	rows, cols := size.Rows, size.Cols
	if rows == 0 || cols == 0 {
		rows, cols = 24, 80
	}
	return &pty.Winsize{Rows: rows, Cols: cols}
}

// loginArgv0 returns "-name" for a shell path, which shells treat as a
// request to run as a login shell.
func loginArgv0(path string) string {
	return "-" + filepath.Base(path)
}

// start launches the PTY reader and the exit watcher. onExit runs on
// the watcher goroutine once the shell has exited and its output has
// been drained.
func (s *Session) start(onExit func(*Session, int)) {
	go s.readLoop()
	go func() {
		status := exitCode(s.cmd.Wait())
		s.exit.notify(status)
		s.logger.Info("shell exited", "session", s.name, "status", status)

		if !s.waitReader() {
			s.logger.Debug("pty still open after shell exit; closing", "session", s.name)
		}
		s.ptmx.Close()
		if !s.waitReader() {
			s.logger.Warn("pty reader did not stop after close", "session", s.name)
		}

		onExit(s, status)
		close(s.closed)
	}()
}

// waitReader waits up to readerDrainTimeout for readLoop to return.
func (s *Session) waitReader() bool {
	timer := s.clock.NewTimer(readerDrainTimeout)
	defer timer.Stop()
	select {
	case <-s.readerDone:
		return true
	case <-timer.C:
		return false
	}
}

// readLoop is the session's single PTY reader. It runs until the PTY
// master returns an error, which happens once every holder of the
// slave has exited or the master is closed.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	buffer := make([]byte, readBufferSize)
	for {
		n, err := s.ptmx.Read(buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			s.handleOutput(chunk)
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) handleOutput(chunk []byte) {
	if s.phase.Load() == phaseSetup {
		chunk = s.scanSetup(chunk)
		if len(chunk) == 0 {
			return
		}
	}

	if s.trimNewline {
		chunk = bytes.TrimLeft(chunk, "\r\n")
		if len(chunk) == 0 {
			return
		}
		s.trimNewline = false
	}

	if s.suppressClear {
		chunk = s.dropFirstClear(chunk)
		if len(chunk) == 0 {
			return
		}
	}

	s.outputMu.Lock()
	defer s.outputMu.Unlock()
	s.spool.Process(chunk)
	if att := s.attachment.Load(); att != nil {
		att.send(chunk)
	}
}

// scanSetup discards output while setup runs. It reports sentinels to
// the setup goroutine and returns whatever followed the prompt
// sentinel, which is live output.
func (s *Session) scanSetup(chunk []byte) []byte {
	var live []byte
	s.sentinels.Scan(chunk, func(sentinel shell.Sentinel, end int) {
		select {
		case s.sentinelSeen <- sentinel:
		default:
		}
		if sentinel == shell.Prompt {
			s.phase.Store(phaseLive)
			s.trimNewline = true
			live = chunk[end:]
		}
	})
	if s.phase.Load() == phaseSetup {
		return nil
	}
	return live
}

// dropFirstClear removes the first clear-screen sequence found within
// motdClearWindow of creation. Trailing bytes that could begin a clear
// are held back until the next chunk settles them.
func (s *Session) dropFirstClear(chunk []byte) []byte {
	held := s.clearHeld
	s.clearHeld = nil
	data := append(held, chunk...)
	if clock.Since(s.clock, s.createdAt) > motdClearWindow {
		s.suppressClear = false
		return data
	}

	// Matches never start before the held bytes, which the matcher has
	// already consumed, so only the new chunk is scanned.
	start, cut := 0, -1
	s.clearMatcher.Scan(chunk, func(length int, end int) {
		if cut < 0 {
			cut = end + len(held)
			start = max(cut-length, 0)
		}
	})
	if cut < 0 {
		keep := len(data) - min(s.clearMatcher.Pending(), len(data))
		s.clearHeld = append([]byte(nil), data[keep:]...)
		return data[:keep]
	}
	s.suppressClear = false
	s.logger.Debug("suppressed clear screen after motd", "session", s.name)
	return append(data[:start:start], data[cut:]...)
}

// goLive ends setup without waiting for a sentinel.
func (s *Session) goLive() {
	s.phase.Store(phaseLive)
}

// writeInput writes client keystrokes to the shell.
func (s *Session) writeInput(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.ptmx.Write(data)
	return err
}

// resize applies size to the PTY (delivering SIGWINCH to the shell)
// and to the spool.
func (s *Session) resize(size protocol.TTYSize) error {
	if size.Rows == 0 || size.Cols == 0 {
		return nil
	}
	if err := pty.Setsize(s.ptmx, ptyWinsize(size)); err != nil {
		return fmt.Errorf("setting pty size: %w", err)
	}
	s.spool.Resize(int(size.Rows), int(size.Cols))
	return nil
}

// connect makes att the live attachment and queues the restore buffer
// as its first output. The caller holds the registry mutex.
func (s *Session) connect(att *attachment) {
	s.outputMu.Lock()
	defer s.outputMu.Unlock()
	if restore := s.spool.RestoreBuffer(); len(restore) > 0 {
		att.send(restore)
	}
	s.attachment.Store(att)
}

// terminate signals the shell's process group with SIGHUP, escalates
// to SIGKILL after killGracePeriod, and waits for the exit watcher to
// finish.
func (s *Session) terminate() error {
	pgid := s.cmd.Process.Pid
	if err := unix.Kill(-pgid, unix.SIGHUP); err != nil && !errors.Is(err, unix.ESRCH) {
		s.logger.Warn("sending SIGHUP failed", "session", s.name, "error", err)
	}
	if _, exited := s.exit.wait(s.clock, killGracePeriod); !exited {
		s.logger.Info("shell ignored SIGHUP; sending SIGKILL", "session", s.name)
		if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("sending SIGKILL to session %s: %w", s.name, err)
		}
	}
	<-s.closed
	return nil
}
