// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/tether/lib/clock"
	"github.com/bureau-foundation/tether/lib/netutil"
	"github.com/bureau-foundation/tether/protocol"
)

const (
	// heartbeatInterval is how long the output stream may stay silent
	// before a heartbeat frame is written.
	heartbeatInterval = 500 * time.Millisecond

	// outputQueueLength is the number of PTY chunks buffered per
	// client. A full queue blocks the session's reader, which in turn
	// stalls the shell, rather than dropping output.
	outputQueueLength = 64
)

// attachment is one connected client. The PTY reader hands it chunks
// through send; writeLoop owns the connection for writing.
type attachment struct {
	id     string
	conn   net.Conn
	clock  clock.Clock
	logger *slog.Logger

	out  chan []byte
	exit chan int32

	closeOnce  sync.Once
	done       chan struct{}
	writerDone chan struct{}
}

func newAttachment(conn net.Conn, clk clock.Clock, logger *slog.Logger) *attachment {
	return &attachment{
		id:         uuid.NewString(),
		conn:       conn,
		clock:      clk,
		logger:     logger,
		out:        make(chan []byte, outputQueueLength),
		exit:       make(chan int32, 1),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// send queues chunk for the client, blocking while the queue is full.
// It returns without queuing once the attachment is closed.
func (a *attachment) send(chunk []byte) {
	select {
	case a.out <- chunk:
	case <-a.done:
	}
}

// finish delivers the shell's exit status after any queued output.
func (a *attachment) finish(status int) {
	select {
	case a.exit <- int32(status):
	default:
	}
}

// close disconnects the client. Safe to call more than once.
func (a *attachment) close() {
	a.closeOnce.Do(func() {
		close(a.done)
		a.conn.Close()
	})
}

// writeLoop forwards queued output to the client and keeps the
// connection alive with heartbeats. It closes the attachment when it
// returns.
func (a *attachment) writeLoop() {
	defer close(a.writerDone)
	defer a.close()

	ticker := a.clock.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	wrote := false

	for {
		var err error
		select {
		case <-a.done:
			return

		case chunk := <-a.out:
			err = protocol.WriteMessage(a.conn, protocol.NewDataMessage(chunk))
			wrote = true

		case <-ticker.C:
			if !wrote {
				err = protocol.WriteMessage(a.conn, protocol.NewHeartbeatMessage())
			}
			wrote = false

		case status := <-a.exit:
			a.drain()
			if err := protocol.WriteMessage(a.conn, protocol.NewExitStatusMessage(status)); err != nil {
				a.logger.Debug("writing exit status failed", "attachment", a.id, "error", err)
			}
			return
		}
		if err != nil {
			if !netutil.IsPeerGone(err) {
				a.logger.Warn("client write failed", "attachment", a.id, "error", err)
			}
			return
		}
	}
}

// drain writes output that was queued before the exit status.
func (a *attachment) drain() {
	for {
		select {
		case chunk := <-a.out:
			if err := protocol.WriteMessage(a.conn, protocol.NewDataMessage(chunk)); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readLoop forwards client keystrokes to the session until the
// connection fails. Input is passed through unexamined.
func (a *attachment) readLoop(session *Session) {
	for {
		message, err := protocol.ReadMessage(a.conn)
		if err != nil {
			if !netutil.IsPeerGone(err) {
				a.logger.Warn("client read failed", "session", session.name, "error", err)
			}
			return
		}
		switch message.Type {
		case protocol.MessageTypeData:
			if len(message.Payload) == 0 {
				continue
			}
			if err := session.writeInput(message.Payload); err != nil {
				a.logger.Debug("writing client input failed", "session", session.name, "error", err)
				return
			}
		default:
			a.logger.Debug("ignoring unexpected client frame",
				"session", session.name,
				"type", message.Type,
			)
		}
	}
}
