// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by the control
// socket protocol.
//
// Every header that crosses the control socket (connect headers,
// replies, the version header) is encoded with [Marshal] and carried
// as the payload of one length-prefixed frame, so readers never have
// to guess where a header ends and the raw terminal stream begins.
//
// # Struct Tag Rules
//
//   - `cbor` tag: the type only ever travels over the control socket.
//   - `json` tag: the type is also printed by `tether list --json`.
//     fxamacker/cbor falls back to json tags when cbor tags are absent,
//     so one tag controls both encodings.
//
// Never put both tags on one field.
package codec
