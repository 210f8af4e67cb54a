// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports what build of wasteland is running, for
// `wasteland version` and the worker startup log line.
//
// Release builds set the variables with the linker:
//
//	go build -ldflags "-X github.com/bureau-foundation/wasteland/lib/version.Version=0.3.0 \
//	  -X github.com/bureau-foundation/wasteland/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without them, [Info] falls back to the VCS stamp the Go toolchain
// embeds in the binary.
package version
