// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the tether binary:
// reporting a fatal error before the structured logger exists, and
// exiting with a code chosen by a command.
package process
