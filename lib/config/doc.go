// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the tether configuration file.
//
// Configuration comes from a single file named by the --config-file
// flag or the TETHER_CONFIG environment variable. Without either, the
// default path $XDG_CONFIG_HOME/tether/config.toml is used if it exists
// and built-in defaults otherwise. An explicitly named file that does
// not exist is an error.
//
// The format is chosen by extension: .toml (go-toml), .yaml/.yml
// (yaml.v3), .json/.jsonc (JSON with comments and trailing commas).
// Unknown keys are rejected in every format.
//
// A loaded [Config] is an immutable snapshot. The daemon reads it once
// at startup and hands values to each session at creation time.
package config
