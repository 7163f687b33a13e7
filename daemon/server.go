// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/tether/lib/netutil"
	"github.com/bureau-foundation/tether/lib/version"
	"github.com/bureau-foundation/tether/protocol"
)

const (
	// readTimeout is how long a client has to send its connect header.
	readTimeout = 30 * time.Second

	// writeTimeout bounds writing a single reply header.
	writeTimeout = 10 * time.Second
)

// Listen creates the daemon's Unix socket, replacing a stale socket
// file. The socket directory is created 0700 and the socket is made
// 0600 so only the owning user can connect.
func Listen(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restricting socket permissions: %w", err)
	}
	return listener, nil
}

// Server accepts client connections and dispatches them to a Registry.
type Server struct {
	registry *Registry
	logger   *slog.Logger

	// activeConnections tracks handlers so Serve can wait for them.
	activeConnections sync.WaitGroup
}

// NewServer returns a server for registry.
func NewServer(registry *Registry, logger *slog.Logger) *Server {
	return &Server{registry: registry, logger: logger}
}

// Serve accepts connections until ctx is cancelled. On cancellation it
// stops accepting, kills every session, and waits for in-flight
// connections to finish. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("daemon listening", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.logger.Info("daemon shutting down")
	s.registry.Shutdown()
	s.activeConnections.Wait()
	return nil
}

// handleConnection runs the version exchange and one request.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := protocol.WriteHeader(conn, protocol.VersionHeader{Version: version.Short()}); err != nil {
		s.logger.Debug("writing version header failed", "error", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	var header protocol.ConnectHeader
	if err := protocol.ReadHeader(conn, &header); err != nil {
		if !netutil.IsPeerGone(err) {
			s.logger.Debug("reading connect header failed", "error", err)
		}
		return
	}
	if err := header.Validate(); err != nil {
		s.logger.Warn("dropping malformed request", "error", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var reply any
	switch header.Action {
	case protocol.ActionAttach:
		s.attach(ctx, conn, header.Attach)
		return
	case protocol.ActionDetach:
		reply = s.registry.Detach(header.Detach.Sessions)
	case protocol.ActionKill:
		reply = s.registry.Kill(header.Kill.Sessions)
	case protocol.ActionList:
		reply = s.registry.List()
	case protocol.ActionSessionMessage:
		reply = s.registry.HandleSessionMessage(header.SessionMessage)
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := protocol.WriteHeader(conn, reply); err != nil {
		s.logger.Debug("writing reply failed", "action", header.Action, "error", err)
	}
}

// attach replies to an attach request and, on success, pumps the
// connection until either side goes away.
func (s *Server) attach(ctx context.Context, conn net.Conn, request *protocol.AttachHeader) {
	outcome := s.registry.Attach(ctx, request, conn)

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := protocol.WriteHeader(conn, outcome.reply)
	conn.SetWriteDeadline(time.Time{})
	if !outcome.reply.Status.Streams() {
		if err != nil {
			s.logger.Debug("writing attach reply failed", "session", request.Name, "error", err)
		}
		return
	}

	att := outcome.attachment
	if err != nil {
		s.logger.Debug("writing attach reply failed", "session", request.Name, "error", err)
		s.registry.clientGone(outcome.session, att)
		att.close()
		return
	}

	go att.writeLoop()
	att.readLoop(outcome.session)
	s.registry.clientGone(outcome.session, att)
	att.close()
	<-att.writerDone
}
