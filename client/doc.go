// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client talks to a tether daemon over its control socket.
//
// Every request opens its own connection: the daemon writes a version
// header, the client writes one [protocol.ConnectHeader], and the
// daemon answers. [Client.Attach] keeps its connection open and pumps
// terminal bytes in both directions until the client detaches or the
// shell exits. Resize and detach requests issued while attached travel
// on separate connections so they never queue behind terminal output.
package client
