// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfoUsesInjectedValues(t *testing.T) {
	defer func(commit, dirty, built, version string) {
		GitCommit, GitDirty, BuildTime, Version = commit, dirty, built, version
	}(GitCommit, GitDirty, BuildTime, Version)

	GitCommit, GitDirty, BuildTime, Version = "abc1234", "true", "2026-01-01T00:00:00Z", "1.2.3"

	if got, want := Info(), "1.2.3 (abc1234-dirty, 2026-01-01T00:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) {
		t.Errorf("Full() = %q does not start with Info()", full)
	}
	if !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() = %q missing platform", full)
	}
}
