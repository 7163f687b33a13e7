// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
	"time"
)

// VersionHeader is the first message on every connection.
type VersionHeader struct {
	Version string `cbor:"version"`
}

// Action selects what a connection does.
type Action string

const (
	ActionAttach         Action = "attach"
	ActionDetach         Action = "detach"
	ActionKill           Action = "kill"
	ActionList           Action = "list"
	ActionSessionMessage Action = "session_message"
)

// ConnectHeader is the client's request. Exactly the field matching
// Action is set; list carries no payload.
type ConnectHeader struct {
	Action         Action                 `cbor:"action"`
	Attach         *AttachHeader          `cbor:"attach,omitempty"`
	Detach         *DetachRequest         `cbor:"detach,omitempty"`
	Kill           *KillRequest           `cbor:"kill,omitempty"`
	SessionMessage *SessionMessageRequest `cbor:"session_message,omitempty"`
}

// Validate checks that the action is known and its payload present.
func (h *ConnectHeader) Validate() error {
	var missing bool
	switch h.Action {
	case ActionAttach:
		missing = h.Attach == nil
	case ActionDetach:
		missing = h.Detach == nil
	case ActionKill:
		missing = h.Kill == nil
	case ActionList:
	case ActionSessionMessage:
		if h.SessionMessage == nil {
			missing = true
		} else if err := h.SessionMessage.Payload.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown action %q", h.Action)
	}
	if missing {
		return fmt.Errorf("%s request has no payload", h.Action)
	}
	return nil
}

// TTYSize is a terminal size in character cells.
type TTYSize struct {
	Rows uint16 `cbor:"rows"`
	Cols uint16 `cbor:"cols"`
}

// AttachHeader asks to attach to (or create) a session.
type AttachHeader struct {
	Name         string  `cbor:"name"`
	LocalTTYSize TTYSize `cbor:"local_tty_size"`

	// LocalEnv is the client environment in os.Environ form. Only the
	// forwarded subset reaches a new shell; it is ignored on reattach.
	LocalEnv []string `cbor:"local_env,omitempty"`

	// TTL is how long the session may live before being reaped. Zero
	// means the daemon's default. On reattach a non-zero TTL replaces
	// the outstanding deadline.
	TTL time.Duration `cbor:"ttl,omitempty"`

	// Cmd replaces the configured shell for a new session, run via
	// "sh -c". Ignored on reattach.
	Cmd string `cbor:"cmd,omitempty"`

	// Dir is the working directory for a new session.
	Dir string `cbor:"dir,omitempty"`
}

// AttachStatus is the outcome of an attach.
type AttachStatus string

const (
	// AttachBusy means another client is attached.
	AttachBusy AttachStatus = "busy"

	// AttachForbidden means the request was refused, for example
	// because the name is invalid. Reason explains why.
	AttachForbidden AttachStatus = "forbidden"

	// AttachAttached means an existing session was reattached.
	AttachAttached AttachStatus = "attached"

	// AttachCreated means a new session was created.
	AttachCreated AttachStatus = "created"

	// AttachUnexpectedError means the daemon failed. Message explains.
	AttachUnexpectedError AttachStatus = "unexpected_error"
)

// Known reports whether s is one of the defined statuses.
func (s AttachStatus) Known() bool {
	switch s {
	case AttachBusy, AttachForbidden, AttachAttached, AttachCreated, AttachUnexpectedError:
		return true
	}
	return false
}

// Streams reports whether the connection switches to the data stream.
func (s AttachStatus) Streams() bool {
	return s == AttachAttached || s == AttachCreated
}

// AttachReplyHeader answers an AttachHeader.
type AttachReplyHeader struct {
	Status   AttachStatus `cbor:"status"`
	Warnings []string     `cbor:"warnings,omitempty"`
	Reason   string       `cbor:"reason,omitempty"`
	Message  string       `cbor:"message,omitempty"`
}

// Validate rejects statuses this build does not understand.
func (h *AttachReplyHeader) Validate() error {
	if !h.Status.Known() {
		return fmt.Errorf("unknown attach status %q", h.Status)
	}
	return nil
}

// DetachRequest names the sessions to detach.
type DetachRequest struct {
	Sessions []string `cbor:"sessions"`
}

// DetachReply lists per-name failures. Names absent from both lists
// were detached.
type DetachReply struct {
	NotFound    []string `cbor:"not_found,omitempty"`
	NotAttached []string `cbor:"not_attached,omitempty"`
}

// KillRequest names the sessions to kill.
type KillRequest struct {
	Sessions []string `cbor:"sessions"`
}

// KillReply lists names that did not exist.
type KillReply struct {
	NotFound []string `cbor:"not_found,omitempty"`
}

// SessionStatus describes whether a client is attached.
type SessionStatus string

const (
	SessionAttached     SessionStatus = "attached"
	SessionDisconnected SessionStatus = "disconnected"
)

// Session is one entry in a ListReply. JSON tags double as CBOR keys
// because list --json prints these directly.
type Session struct {
	Name            string        `json:"name"`
	StartedAt       time.Time     `json:"started_at"`
	LastConnectedAt time.Time     `json:"last_connected_at"`
	Status          SessionStatus `json:"status"`
	Attachment      string        `json:"attachment,omitempty"`
}

// ListReply lists every session, sorted by name.
type ListReply struct {
	Sessions []Session `json:"sessions"`
}

// SessionMessageRequest delivers an out-of-band message to a session.
type SessionMessageRequest struct {
	Name    string                `cbor:"name"`
	Payload SessionMessagePayload `cbor:"payload"`
}

// SessionMessagePayload holds exactly one message.
type SessionMessagePayload struct {
	Resize *ResizeRequest `cbor:"resize,omitempty"`
	Detach bool           `cbor:"detach,omitempty"`
}

// Validate checks that exactly one message is set.
func (p SessionMessagePayload) Validate() error {
	switch {
	case p.Resize != nil && p.Detach:
		return errors.New("session message carries both resize and detach")
	case p.Resize == nil && !p.Detach:
		return errors.New("session message is empty")
	}
	return nil
}

// ResizeRequest carries the client's new terminal size.
type ResizeRequest struct {
	TTYSize TTYSize `cbor:"tty_size"`
}

// SessionMessageStatus is the outcome of a session message.
type SessionMessageStatus string

const (
	SessionMessageNotFound SessionMessageStatus = "not_found"
	SessionMessageResizeOK SessionMessageStatus = "resize_ok"
	SessionMessageDetachOK SessionMessageStatus = "detach_ok"
)

// SessionMessageReply answers a SessionMessageRequest.
type SessionMessageReply struct {
	Status SessionMessageStatus `cbor:"status"`
}
