// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/bureau-foundation/tether/lib/clock"
	"github.com/bureau-foundation/tether/lib/version"
	"github.com/bureau-foundation/tether/protocol"
)

// dialTimeout bounds connecting and the version exchange.
const dialTimeout = 5 * time.Second

// ErrBusy is returned when a session already has a client attached.
var ErrBusy = errors.New("session is busy")

// Client issues requests to one daemon.
type Client struct {
	socketPath string
	logger     *slog.Logger
	clock      clock.Clock

	// retryDelay separates forced-attach attempts.
	retryDelay time.Duration
}

// New returns a client for the daemon listening on socketPath.
func New(socketPath string, logger *slog.Logger) *Client {
	return &Client{
		socketPath: socketPath,
		logger:     logger,
		clock:      clock.Real(),
		retryDelay: forceRetryDelay,
	}
}

// dial connects and reads the daemon's version header. A version
// mismatch is logged and otherwise ignored.
func (c *Client) dial() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon at %s: %w", c.socketPath, err)
	}
	conn.SetReadDeadline(time.Now().Add(dialTimeout))
	var header protocol.VersionHeader
	if err := protocol.ReadHeader(conn, &header); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading daemon version: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	if !version.Compatible(header.Version) {
		c.logger.Warn("daemon version differs from client; consider restarting the daemon",
			"client", version.Short(),
			"daemon", header.Version,
		)
	}
	return conn, nil
}

// roundTrip sends request on a fresh connection and decodes the
// daemon's reply into reply.
func (c *Client) roundTrip(request protocol.ConnectHeader, reply any) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := protocol.WriteHeader(conn, request); err != nil {
		return fmt.Errorf("sending %s request: %w", request.Action, err)
	}
	if err := protocol.ReadHeader(conn, reply); err != nil {
		return fmt.Errorf("reading %s reply: %w", request.Action, err)
	}
	return nil
}

// Detach disconnects the clients attached to the named sessions.
func (c *Client) Detach(names []string) (protocol.DetachReply, error) {
	var reply protocol.DetachReply
	err := c.roundTrip(protocol.ConnectHeader{
		Action: protocol.ActionDetach,
		Detach: &protocol.DetachRequest{Sessions: names},
	}, &reply)
	return reply, err
}

// Kill terminates the named sessions.
func (c *Client) Kill(names []string) (protocol.KillReply, error) {
	var reply protocol.KillReply
	err := c.roundTrip(protocol.ConnectHeader{
		Action: protocol.ActionKill,
		Kill:   &protocol.KillRequest{Sessions: names},
	}, &reply)
	return reply, err
}

// List returns every session, sorted by name.
func (c *Client) List() ([]protocol.Session, error) {
	var reply protocol.ListReply
	if err := c.roundTrip(protocol.ConnectHeader{Action: protocol.ActionList}, &reply); err != nil {
		return nil, err
	}
	return reply.Sessions, nil
}

// Resize tells the daemon the attached terminal changed size.
func (c *Client) Resize(name string, size protocol.TTYSize) (protocol.SessionMessageStatus, error) {
	return c.sessionMessage(name, protocol.SessionMessagePayload{
		Resize: &protocol.ResizeRequest{TTYSize: size},
	})
}

func (c *Client) sessionMessage(name string, payload protocol.SessionMessagePayload) (protocol.SessionMessageStatus, error) {
	var reply protocol.SessionMessageReply
	err := c.roundTrip(protocol.ConnectHeader{
		Action:         protocol.ActionSessionMessage,
		SessionMessage: &protocol.SessionMessageRequest{Name: name, Payload: payload},
	}, &reply)
	return reply.Status, err
}
