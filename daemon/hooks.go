// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

// Hooks observes session lifecycle events. Methods are called from
// daemon goroutines after internal locks are released and must not
// block.
type Hooks interface {
	// OnNewSession runs after a session is created and set up.
	OnNewSession(name string)

	// OnReattach runs when a client attaches to an existing session.
	OnReattach(name string)

	// OnBusy runs when an attach is refused because another client is
	// attached.
	OnBusy(name string)

	// OnClientDisconnect runs when an attached client goes away, by
	// detaching or by dropping its connection.
	OnClientDisconnect(name string)

	// OnShellDisconnect runs when a session's shell exits for any
	// reason, including kill and TTL expiry.
	OnShellDisconnect(name string)
}

// NoopHooks ignores every event. Embed it to implement a subset.
type NoopHooks struct{}

func (NoopHooks) OnNewSession(string)       {}
func (NoopHooks) OnReattach(string)         {}
func (NoopHooks) OnBusy(string)             {}
func (NoopHooks) OnClientDisconnect(string) {}
func (NoopHooks) OnShellDisconnect(string)  {}
