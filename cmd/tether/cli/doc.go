// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the tether CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree in cmd/tether and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and structured help output with examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3).
//
// Flags are declared as tagged struct fields and bound with
// [FlagsFromParams]. [GlobalFlags] carries the --socket and
// --config-file flags every client command accepts.
//
// Errors returned from Run are categorized with [ToolError]
// constructors; [ExitError] carries an exit code for commands that have
// already reported their own failure.
package cli
