// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the wire format spoken on the tether control
// socket.
//
// Every message is a frame: a 1-byte type, a 4-byte big-endian payload
// length, and the payload. Header frames carry a single CBOR value
// (see lib/codec). Because headers are length-prefixed, a reader never
// consumes terminal bytes that follow a header.
//
// A connection proceeds as:
//
//  1. daemon → client: [VersionHeader]
//  2. client → daemon: [ConnectHeader] naming one action
//  3. daemon → client: the action's reply header
//
// For an attach that succeeds (status attached or created), both sides
// then exchange Data frames until either side closes. The daemon also
// sends Heartbeat frames while the shell is idle and a final ExitStatus
// frame if the shell exits while the client is attached. Every other
// action closes the connection after its reply.
package protocol
