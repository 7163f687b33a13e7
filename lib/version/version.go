// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags -X. When GitCommit is left at "unknown", the VCS
// stamp embedded by the go command is used instead.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"

	// Version is bumped by hand for releases.
	Version = "0.1.0-dev"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info returns "VERSION (COMMIT[-dirty], TIME)" for version output and
// logs.
func Info() string {
	commit, dirty, built := GitCommit, GitDirty == "true", BuildTime
	if commit == "unknown" {
		commit, dirty, built = vcsStamp(built)
	}
	if dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, built)
}

// vcsStamp reads the commit, dirty flag, and commit time recorded by
// the go command. Anything missing keeps its ldflags default.
func vcsStamp(built string) (commit string, dirty bool, time string) {
	commit, time = "unknown", built
	info, ok := readBuildInfo()
	if !ok {
		return commit, false, time
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		case "vcs.time":
			if time == "unknown" {
				time = setting.Value
			}
		}
	}
	return commit, dirty, time
}

// Full adds the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short is the bare version sent in the protocol version header.
func Short() string {
	return Version
}

// Compatible reports whether a peer at version other can be used
// without a warning: major.minor must match, patch and pre-release
// suffixes are ignored.
func Compatible(other string) bool {
	return majorMinor(other) == majorMinor(Version)
}

func majorMinor(v string) string {
	v = strings.TrimPrefix(v, "v")
	if index := strings.IndexAny(v, "-+"); index >= 0 {
		v = v[:index]
	}
	major, rest, ok := strings.Cut(v, ".")
	if !ok {
		return v
	}
	minor, _, _ := strings.Cut(rest, ".")
	return major + "." + minor
}
