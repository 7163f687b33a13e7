// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/tether/lib/config"
	"github.com/bureau-foundation/tether/lib/netutil"
	"github.com/bureau-foundation/tether/protocol"
)

const (
	// forceAttempts bounds a forced attach against a session that
	// keeps getting reattached by someone else.
	forceAttempts = 20

	// forceRetryDelay gives the displaced client time to disconnect.
	forceRetryDelay = 100 * time.Millisecond

	inputBufferSize = 4096
)

// AttachOptions describes an attach request.
type AttachOptions struct {
	Name string
	Size protocol.TTYSize

	// Env is the local environment in os.Environ form.
	Env []string

	// TTL, Cmd and Dir apply when the session is created.
	TTL time.Duration
	Cmd string
	Dir string

	// Force detaches an existing client instead of failing with
	// ErrBusy.
	Force bool
}

// Terminal is the local end of an attachment.
type Terminal struct {
	Input  io.Reader
	Output io.Writer

	// Resized delivers the terminal's new size after each change. It
	// may be nil.
	Resized <-chan protocol.TTYSize

	// Bindings intercept key chords in Input. It may be nil.
	Bindings *Bindings
}

// AttachResult reports how an attachment ended.
type AttachResult struct {
	Status   protocol.AttachStatus
	Warnings []string

	// Exited is true when the shell exited while attached, in which
	// case ExitStatus is its status. Otherwise the client detached.
	Exited     bool
	ExitStatus int
}

// Attach attaches terminal to the named session, creating it if
// needed, and pumps bytes until the client detaches or the shell
// exits. Warnings from session setup are returned in the result and
// are also available before streaming starts through onReply.
func (c *Client) Attach(ctx context.Context, options AttachOptions, terminal Terminal, onReply func(protocol.AttachReplyHeader)) (AttachResult, error) {
	conn, reply, err := c.openAttach(options)
	if err != nil {
		return AttachResult{Status: reply.Status}, err
	}
	defer conn.Close()
	if onReply != nil {
		onReply(reply)
	}

	result := AttachResult{Status: reply.Status, Warnings: reply.Warnings}
	result.Exited, result.ExitStatus, err = c.stream(ctx, conn, options.Name, terminal)
	return result, err
}

// openAttach sends the attach request, retrying through detaches when
// options.Force is set.
func (c *Client) openAttach(options AttachOptions) (net.Conn, protocol.AttachReplyHeader, error) {
	header := protocol.AttachHeader{
		Name:         options.Name,
		LocalTTYSize: options.Size,
		LocalEnv:     options.Env,
		TTL:          options.TTL,
		Cmd:          options.Cmd,
		Dir:          options.Dir,
	}

	for attempt := 1; ; attempt++ {
		conn, reply, err := c.tryAttach(&header)
		if err != nil {
			return nil, reply, err
		}

		switch reply.Status {
		case protocol.AttachAttached, protocol.AttachCreated:
			return conn, reply, nil
		case protocol.AttachForbidden:
			conn.Close()
			return nil, reply, fmt.Errorf("attach to %s refused: %s", options.Name, reply.Reason)
		case protocol.AttachUnexpectedError:
			conn.Close()
			return nil, reply, fmt.Errorf("daemon failed to attach %s: %s", options.Name, reply.Message)
		}

		// Busy.
		conn.Close()
		if !options.Force {
			return nil, reply, fmt.Errorf("%s: %w", options.Name, ErrBusy)
		}
		if attempt == forceAttempts {
			return nil, reply, fmt.Errorf("%s: still attached elsewhere after %d forced attempts: %w", options.Name, forceAttempts, ErrBusy)
		}
		c.logger.Debug("session busy; detaching other client", "session", options.Name, "attempt", attempt)
		if _, err := c.Detach([]string{options.Name}); err != nil {
			return nil, reply, err
		}
		c.clock.Sleep(c.retryDelay)
	}
}

func (c *Client) tryAttach(header *protocol.AttachHeader) (net.Conn, protocol.AttachReplyHeader, error) {
	var reply protocol.AttachReplyHeader
	conn, err := c.dial()
	if err != nil {
		return nil, reply, err
	}
	if err := protocol.WriteHeader(conn, protocol.ConnectHeader{
		Action: protocol.ActionAttach,
		Attach: header,
	}); err != nil {
		conn.Close()
		return nil, reply, fmt.Errorf("sending attach request: %w", err)
	}
	if err := protocol.ReadHeader(conn, &reply); err != nil {
		conn.Close()
		return nil, reply, fmt.Errorf("reading attach reply: %w", err)
	}
	if err := reply.Validate(); err != nil {
		conn.Close()
		return nil, reply, err
	}
	return conn, reply, nil
}

// stream pumps an attached connection. It returns when the daemon
// closes the stream.
func (c *Client) stream(ctx context.Context, conn net.Conn, name string, terminal Terminal) (exited bool, status int, err error) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	if terminal.Resized != nil {
		go c.forwardResizes(name, terminal.Resized, done)
	}
	go c.forwardInput(conn, name, terminal, done)

	for {
		message, err := protocol.ReadMessage(conn)
		if err != nil {
			if ctx.Err() != nil {
				return false, 0, ctx.Err()
			}
			if !netutil.IsPeerGone(err) {
				return false, 0, fmt.Errorf("reading from daemon: %w", err)
			}
			// The daemon closes the stream on detach.
			return false, 0, nil
		}
		switch message.Type {
		case protocol.MessageTypeData:
			if _, err := terminal.Output.Write(message.Payload); err != nil {
				return false, 0, fmt.Errorf("writing to terminal: %w", err)
			}
		case protocol.MessageTypeHeartbeat:
		case protocol.MessageTypeExitStatus:
			code, err := protocol.ParseExitStatusPayload(message.Payload)
			if err != nil {
				return false, 0, err
			}
			return true, int(code), nil
		default:
			c.logger.Debug("ignoring unexpected frame", "type", message.Type)
		}
	}
}

// forwardInput copies terminal input to the daemon, diverting bound
// key chords to their actions.
func (c *Client) forwardInput(conn net.Conn, name string, terminal Terminal, done <-chan struct{}) {
	buffer := make([]byte, inputBufferSize)
	for {
		n, err := terminal.Input.Read(buffer)
		if n > 0 {
			chunk := buffer[:n]
			var actions []string
			if terminal.Bindings != nil {
				chunk, actions = terminal.Bindings.Filter(chunk)
			}
			if len(chunk) > 0 {
				if err := protocol.WriteMessage(conn, protocol.NewDataMessage(chunk)); err != nil {
					return
				}
			}
			for _, action := range actions {
				c.runAction(name, action)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("reading terminal input failed", "error", err)
			}
			return
		}
		select {
		case <-done:
			return
		default:
		}
	}
}

func (c *Client) runAction(name, action string) {
	switch action {
	case config.ActionDetach:
		reply, err := c.Detach([]string{name})
		if err != nil {
			c.logger.Warn("detach failed", "session", name, "error", err)
			return
		}
		if len(reply.NotFound) > 0 || len(reply.NotAttached) > 0 {
			c.logger.Warn("detach had no effect", "session", name)
		}
	default:
		c.logger.Warn("unknown keybinding action", "action", action)
	}
}

// forwardResizes sends each size change as a session message.
func (c *Client) forwardResizes(name string, sizes <-chan protocol.TTYSize, done <-chan struct{}) {
	for {
		select {
		case size, ok := <-sizes:
			if !ok {
				return
			}
			status, err := c.Resize(name, size)
			if err != nil {
				c.logger.Debug("resize failed", "session", name, "error", err)
			} else if status == protocol.SessionMessageNotFound {
				c.logger.Debug("resize found no session", "session", name)
			}
		case <-done:
			return
		}
	}
}
