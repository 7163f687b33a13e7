// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestInfoIncludesDirtyMarker(t *testing.T) {
	originalCommit, originalDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = originalCommit, originalDirty })

	GitCommit = "abc1234"

	GitDirty = "true"
	if info := Info(); !strings.Contains(info, "-dirty") {
		t.Errorf("Info() = %q, want a -dirty marker", info)
	}
	GitDirty = "false"
	if info := Info(); strings.Contains(info, "-dirty") {
		t.Errorf("Info() = %q, want no -dirty marker", info)
	}
}

func TestInfoFallsBackToBuildInfo(t *testing.T) {
	originalCommit, originalRead := GitCommit, readBuildInfo
	t.Cleanup(func() { GitCommit, readBuildInfo = originalCommit, originalRead })

	GitCommit = "unknown"
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2026-03-01T12:00:00Z"},
		}}, true
	}

	info := Info()
	for _, want := range []string{"0123456789ab-dirty", "2026-03-01T12:00:00Z"} {
		if !strings.Contains(info, want) {
			t.Errorf("Info() = %q, want it to contain %q", info, want)
		}
	}
}

func TestCompatible(t *testing.T) {
	originalVersion := Version
	t.Cleanup(func() { Version = originalVersion })
	Version = "1.4.2"

	tests := []struct {
		other string
		want  bool
	}{
		{"1.4.2", true},
		{"1.4.0", true},
		{"v1.4.9-rc1", true},
		{"1.5.0", false},
		{"2.4.2", false},
		{"1.4", true},
		{"", false},
	}
	for _, test := range tests {
		if got := Compatible(test.other); got != test.want {
			t.Errorf("Compatible(%q) = %v, want %v", test.other, got, test.want)
		}
	}
}
