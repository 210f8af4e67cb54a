// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/wasteland/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns "0.1.0-dev (abc1234-dirty, 2026-10-16T...)". When the
// commit was not injected it falls back to the VCS stamp the Go
// toolchain embeds.
func Info() string {
	commit, dirty, built := GitCommit, GitDirty == "true", BuildTime
	if commit == "unknown" {
		if stamped, ok := vcsStamp(); ok {
			commit, dirty, built = stamped.revision, stamped.modified, stamped.time
		}
	}
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, suffix, built)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

type stamp struct {
	revision string
	modified bool
	time     string
}

func vcsStamp() (stamp, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return stamp{}, false
	}
	var result stamp
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			result.revision = setting.Value
			if len(result.revision) > 7 {
				result.revision = result.revision[:7]
			}
		case "vcs.modified":
			result.modified = setting.Value == "true"
		case "vcs.time":
			result.time = setting.Value
		}
	}
	if result.revision == "" {
		return stamp{}, false
	}
	if result.time == "" {
		result.time = "unknown"
	}
	return result, true
}
