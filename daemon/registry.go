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
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/bureau-foundation/tether/lib/clock"
	"github.com/bureau-foundation/tether/lib/config"
	"github.com/bureau-foundation/tether/lib/trie"
	"github.com/bureau-foundation/tether/protocol"
	"github.com/bureau-foundation/tether/shell"
	"github.com/bureau-foundation/tether/spool"
)

// DefaultSetupTimeout bounds each sentinel wait during shell setup.
const DefaultSetupTimeout = 5 * time.Second

// maxNameLength bounds session names.
const maxNameLength = 255

// Options configures a Registry.
type Options struct {
	Config *config.Config
	Clock  clock.Clock
	Logger *slog.Logger

	// Hooks defaults to NoopHooks.
	Hooks Hooks

	// Executable is run inside new shells to print setup sentinels.
	// Defaults to os.Executable().
	Executable string

	// ClearCodes defaults to a tput-backed cache.
	ClearCodes *shell.ClearCodes

	// SetupTimeout defaults to DefaultSetupTimeout.
	SetupTimeout time.Duration
}

// Registry owns every session in the daemon.
type Registry struct {
	config       *config.Config
	clock        clock.Clock
	logger       *slog.Logger
	hooks        Hooks
	executable   string
	clearCodes   *shell.ClearCodes
	setupTimeout time.Duration
	sentinels    *trie.Trie[byte, shell.Sentinel]
	reaper       *Reaper

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry. Call Run before serving.
func NewRegistry(options Options) (*Registry, error) {
	if options.Config == nil {
		return nil, errors.New("registry requires a config")
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		return nil, errors.New("registry requires a logger")
	}
	if options.Hooks == nil {
		options.Hooks = NoopHooks{}
	}
	if options.Executable == "" {
		executable, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolving tether executable: %w", err)
		}
		options.Executable = executable
	}
	if options.ClearCodes == nil {
		options.ClearCodes = shell.NewClearCodes()
	}
	if options.SetupTimeout <= 0 {
		options.SetupTimeout = DefaultSetupTimeout
	}

	r := &Registry{
		config:       options.Config,
		clock:        options.Clock,
		logger:       options.Logger,
		hooks:        options.Hooks,
		executable:   options.Executable,
		clearCodes:   options.ClearCodes,
		setupTimeout: options.SetupTimeout,
		sentinels:    shell.NewSentinelTrie(),
		sessions:     make(map[string]*Session),
	}
	r.reaper = NewReaper(r, options.Clock, options.Logger)
	return r, nil
}

// Run runs the TTL reaper until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	r.reaper.Run(ctx)
}

// attachOutcome is the result of Attach. session and attachment are
// set only when reply.Status streams.
type attachOutcome struct {
	reply      protocol.AttachReplyHeader
	session    *Session
	attachment *attachment
}

// Attach attaches conn to the named session, creating it if needed.
// It never mutates state when the session is busy.
func (r *Registry) Attach(ctx context.Context, header *protocol.AttachHeader, conn net.Conn) attachOutcome {
	if reason := validateName(header.Name); reason != "" {
		return attachOutcome{reply: protocol.AttachReplyHeader{
			Status: protocol.AttachForbidden,
			Reason: reason,
		}}
	}

	r.mu.Lock()
	if existing, ok := r.sessions[header.Name]; ok {
		return r.reattachLocked(existing, header, conn)
	}
	r.mu.Unlock()

	// Resolve everything that may block before taking the lock to fork.
	prepared, err := r.prepare(ctx, header)
	if err != nil {
		return r.unexpected(header.Name, err)
	}

	r.mu.Lock()
	if existing, ok := r.sessions[header.Name]; ok {
		// Another client created it while we were preparing.
		return r.reattachLocked(existing, header, conn)
	}
	session, err := r.create(prepared)
	if err != nil {
		r.mu.Unlock()
		return r.unexpected(header.Name, err)
	}
	att := newAttachment(conn, r.clock, r.logger)
	if len(prepared.motd) > 0 {
		att.send(prepared.motd)
	}
	session.attachment.Store(att)
	session.lastConnectedAt = session.createdAt
	r.sessions[header.Name] = session
	// Scheduling under the lock orders this deadline before anything a
	// later session of the same name schedules.
	r.reaper.Schedule(header.Name, session, r.deadline(header.TTL, true))
	r.mu.Unlock()

	session.start(r.sessionExited)
	r.logger.Info("session created",
		"session", header.Name,
		"pid", session.cmd.Process.Pid,
		"attachment", att.id,
	)

	warnings := r.setupShell(ctx, session, prepared)
	for _, warning := range warnings {
		r.logger.Warn("shell setup", "session", header.Name, "warning", warning)
	}
	r.hooks.OnNewSession(header.Name)

	return attachOutcome{
		reply: protocol.AttachReplyHeader{
			Status:   protocol.AttachCreated,
			Warnings: warnings,
		},
		session:    session,
		attachment: att,
	}
}

// reattachLocked handles an attach to an existing session. It is
// called with r.mu held and releases it.
func (r *Registry) reattachLocked(session *Session, header *protocol.AttachHeader, conn net.Conn) attachOutcome {
	if current := session.attachment.Load(); current != nil {
		r.mu.Unlock()
		r.logger.Info("attach refused: session busy", "session", header.Name, "attachment", current.id)
		r.hooks.OnBusy(header.Name)
		return attachOutcome{reply: protocol.AttachReplyHeader{Status: protocol.AttachBusy}}
	}

	var warnings []string
	if err := session.resize(header.LocalTTYSize); err != nil {
		warnings = append(warnings, err.Error())
	}
	att := newAttachment(conn, r.clock, r.logger)
	session.connect(att)
	session.lastConnectedAt = r.clock.Now()
	if header.TTL > 0 {
		r.reaper.Schedule(header.Name, session, r.deadline(header.TTL, false))
	}
	r.mu.Unlock()

	r.logger.Info("session reattached", "session", header.Name, "attachment", att.id)
	r.hooks.OnReattach(header.Name)

	return attachOutcome{
		reply: protocol.AttachReplyHeader{
			Status:   protocol.AttachAttached,
			Warnings: warnings,
		},
		session:    session,
		attachment: att,
	}
}

func (r *Registry) unexpected(name string, err error) attachOutcome {
	r.logger.Error("creating session failed", "session", name, "error", err)
	return attachOutcome{reply: protocol.AttachReplyHeader{
		Status:  protocol.AttachUnexpectedError,
		Message: err.Error(),
	}}
}

// deadline converts a requested TTL into a reap time. A zero result
// cancels any outstanding deadline.
func (r *Registry) deadline(ttl time.Duration, applyDefault bool) time.Time {
	if ttl <= 0 && applyDefault {
		ttl = time.Duration(r.config.DefaultTTL)
	}
	if ttl <= 0 {
		return time.Time{}
	}
	return r.clock.Now().Add(ttl)
}

// preparedSession holds everything needed to fork a new session.
type preparedSession struct {
	name        string
	request     spawnRequest
	term        string
	setup       bool
	motd        []byte
	clearTrie   *trie.Trie[byte, int]
	restoreMode spool.RestoreMode
}

func (r *Registry) prepare(ctx context.Context, header *protocol.AttachHeader) (*preparedSession, error) {
	env := sessionEnv(r.config, header.Name, header.LocalEnv)

	var path string
	var args []string
	if header.Cmd != "" {
		path, args = "/bin/sh", []string{"sh", "-c", header.Cmd}
	} else {
		path = r.config.Shell
		if path == "" {
			path = lookupEnv(header.LocalEnv, "SHELL")
		}
		if path == "" {
			path = os.Getenv("SHELL")
		}
		if path == "" {
			path = "/bin/sh"
		}
		args = []string{loginArgv0(path)}
	}
	if !filepath.IsAbs(path) {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return nil, fmt.Errorf("finding shell %q: %w", path, err)
		}
		path = resolved
	}

	dir := header.Dir
	if dir == "" {
		dir = lookupEnv(env, "HOME")
	}
	if dir == "" {
		dir = "/"
	}

	prepared := &preparedSession{
		name: header.Name,
		request: spawnRequest{
			path: path,
			args: args,
			env:  env,
			dir:  dir,
			size: header.LocalTTYSize,
		},
		term:        lookupEnv(env, "TERM"),
		setup:       header.Cmd == "" && r.config.Prompt() != "",
		restoreMode: r.config.RestoreMode(),
	}

	if r.config.Motd == config.MotdDump {
		prepared.motd = r.readMotd()
		if len(prepared.motd) > 0 {
			prepared.clearTrie = r.clearCodes.Trie(ctx, prepared.term)
		}
	}
	return prepared, nil
}

// readMotd returns the message of the day with CRLF line endings for
// a raw-mode client terminal.
func (r *Registry) readMotd() []byte {
	data, err := os.ReadFile(r.config.MotdFile)
	if err != nil {
		r.logger.Debug("no motd", "path", r.config.MotdFile, "error", err)
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return []byte(strings.ReplaceAll(text, "\n", "\r\n"))
}

// create forks the shell. Called with r.mu held. The PTY is closed on
// every failure path by spawn itself.
func (r *Registry) create(prepared *preparedSession) (*Session, error) {
	ptmx, cmd, err := spawn(prepared.request)
	if err != nil {
		return nil, err
	}

	rows, cols := int(prepared.request.size.Rows), int(prepared.request.size.Cols)
	session := &Session{
		name:       prepared.name,
		createdAt:  r.clock.Now(),
		logger:     r.logger,
		clock:      r.clock,
		ptmx:       ptmx,
		cmd:        cmd,
		shell:      prepared.request.path,
		term:       prepared.term,
		exit:       newExitNotifier(),
		closed:     make(chan struct{}),
		readerDone: make(chan struct{}),
		spool:      spool.New(prepared.restoreMode, rows, cols, r.config.VirtualWidth),
	}
	if prepared.setup {
		session.sentinels = trie.NewMatcher(r.sentinels)
		session.sentinelSeen = make(chan shell.Sentinel, 2)
		session.phase.Store(phaseSetup)
	} else {
		session.phase.Store(phaseLive)
	}
	if prepared.clearTrie != nil {
		session.clearMatcher = trie.NewMatcher(prepared.clearTrie)
		session.suppressClear = true
	}
	return session, nil
}

// setupShell runs the sentinel handshake and prompt injection. Every
// failure degrades to a warning and a live session.
func (r *Registry) setupShell(ctx context.Context, session *Session, prepared *preparedSession) []string {
	if !prepared.setup {
		return nil
	}
	defer session.goLive()

	if err := r.awaitSentinel(ctx, session, shell.Startup, ""); err != nil {
		return []string{fmt.Sprintf("shell startup: %v; prompt prefix not applied", err)}
	}

	kind := shell.Detect(session.cmd.Process.Pid, session.shell)
	script, err := shell.PromptScript(kind, r.config.Prompt())
	if err != nil {
		return []string{fmt.Sprintf("%v; prompt prefix not applied", err)}
	}
	if err := r.awaitSentinel(ctx, session, shell.Prompt, script); err != nil {
		return []string{fmt.Sprintf("prompt setup: %v", err)}
	}
	return nil
}

// awaitSentinel types preamble followed by the command printing
// sentinel, then waits for the PTY reader to see it.
func (r *Registry) awaitSentinel(ctx context.Context, session *Session, sentinel shell.Sentinel, preamble string) error {
	if err := session.writeInput([]byte(preamble + sentinel.Command(r.executable))); err != nil {
		return fmt.Errorf("writing %s sentinel command: %w", sentinel, err)
	}
	timer := r.clock.NewTimer(r.setupTimeout)
	defer timer.Stop()
	for {
		select {
		case seen := <-session.sentinelSeen:
			if seen == sentinel {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timed out after %v waiting for %s sentinel", r.setupTimeout, sentinel)
		case <-session.exit.Done():
			return errors.New("shell exited during setup")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sessionExited runs on a session's exit watcher.
func (r *Registry) sessionExited(session *Session, status int) {
	r.mu.Lock()
	if current, ok := r.sessions[session.name]; ok && current == session {
		delete(r.sessions, session.name)
	}
	att := session.attachment.Swap(nil)
	r.mu.Unlock()

	if att != nil {
		att.finish(status)
	}
	r.hooks.OnShellDisconnect(session.name)
}

// clientGone clears att from session if it is still the live
// attachment.
func (r *Registry) clientGone(session *Session, att *attachment) {
	r.mu.Lock()
	cleared := session.attachment.CompareAndSwap(att, nil)
	r.mu.Unlock()

	if cleared {
		r.logger.Info("client disconnected", "session", session.name, "attachment", att.id)
		r.hooks.OnClientDisconnect(session.name)
	}
}

// Detach disconnects the clients of the named sessions.
func (r *Registry) Detach(names []string) protocol.DetachReply {
	var reply protocol.DetachReply
	for _, name := range names {
		switch err := r.detach(name); {
		case errors.Is(err, ErrSessionNotFound):
			reply.NotFound = append(reply.NotFound, name)
		case errors.Is(err, ErrNotAttached):
			reply.NotAttached = append(reply.NotAttached, name)
		}
	}
	return reply
}

func (r *Registry) detach(name string) error {
	r.mu.Lock()
	session, ok := r.sessions[name]
	if !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	att := session.attachment.Swap(nil)
	r.mu.Unlock()

	if att == nil {
		return ErrNotAttached
	}
	att.close()
	r.logger.Info("session detached", "session", name, "attachment", att.id)
	r.hooks.OnClientDisconnect(name)
	return nil
}

// Kill terminates the named sessions.
func (r *Registry) Kill(names []string) protocol.KillReply {
	var reply protocol.KillReply
	for _, name := range names {
		err := r.KillSession(name)
		if errors.Is(err, ErrSessionNotFound) {
			reply.NotFound = append(reply.NotFound, name)
		} else if err != nil {
			r.logger.Error("killing session failed", "session", name, "error", err)
		}
	}
	return reply
}

// KillSession removes the named session and terminates its shell,
// waiting for it to exit.
func (r *Registry) KillSession(name string) error {
	return r.KillExpired(name, nil)
}

// KillExpired is KillSession restricted to owner: a session that has
// since taken over the name is left alone.
func (r *Registry) KillExpired(name string, owner *Session) error {
	r.mu.Lock()
	session, ok := r.sessions[name]
	if ok && owner != nil && session != owner {
		ok = false
	}
	if ok {
		delete(r.sessions, name)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	r.reaper.Cancel(name)
	r.logger.Info("killing session", "session", name)
	return session.terminate()
}

// List describes every session, sorted by name.
func (r *Registry) List() protocol.ListReply {
	r.mu.Lock()
	sessions := make([]protocol.Session, 0, len(r.sessions))
	for name, session := range r.sessions {
		entry := protocol.Session{
			Name:            name,
			StartedAt:       session.createdAt,
			LastConnectedAt: session.lastConnectedAt,
			Status:          protocol.SessionDisconnected,
		}
		if att := session.attachment.Load(); att != nil {
			entry.Status = protocol.SessionAttached
			entry.Attachment = att.id
		}
		sessions = append(sessions, entry)
	}
	r.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Name < sessions[j].Name })
	return protocol.ListReply{Sessions: sessions}
}

// HandleSessionMessage applies an out-of-band message to a session.
func (r *Registry) HandleSessionMessage(request *protocol.SessionMessageRequest) protocol.SessionMessageReply {
	if request.Payload.Detach {
		if errors.Is(r.detach(request.Name), ErrSessionNotFound) {
			return protocol.SessionMessageReply{Status: protocol.SessionMessageNotFound}
		}
		return protocol.SessionMessageReply{Status: protocol.SessionMessageDetachOK}
	}

	r.mu.Lock()
	session, ok := r.sessions[request.Name]
	r.mu.Unlock()
	if !ok {
		return protocol.SessionMessageReply{Status: protocol.SessionMessageNotFound}
	}
	if err := session.resize(request.Payload.Resize.TTYSize); err != nil {
		r.logger.Warn("resize failed", "session", request.Name, "error", err)
	}
	return protocol.SessionMessageReply{Status: protocol.SessionMessageResizeOK}
}

// Shutdown kills every session concurrently and waits for them.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	r.mu.Unlock()

	var wait sync.WaitGroup
	for _, name := range names {
		wait.Add(1)
		go func() {
			defer wait.Done()
			if err := r.KillSession(name); err != nil && !errors.Is(err, ErrSessionNotFound) {
				r.logger.Error("killing session at shutdown", "session", name, "error", err)
			}
		}()
	}
	wait.Wait()
}

// validateName returns a reason the name is refused, or "".
func validateName(name string) string {
	switch {
	case name == "":
		return "session name is empty"
	case len(name) > maxNameLength:
		return fmt.Sprintf("session name is longer than %d bytes", maxNameLength)
	case strings.ContainsRune(name, '/'):
		return "session name contains '/'"
	case strings.IndexFunc(name, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0:
		return "session name contains whitespace or control characters"
	}
	return ""
}
