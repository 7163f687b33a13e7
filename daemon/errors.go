// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import "errors"

var (
	// ErrSessionNotFound is returned for a name with no live session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotAttached is returned when detaching a session that has no
	// client.
	ErrNotAttached = errors.New("session not attached")
)
