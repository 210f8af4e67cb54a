// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helper for the wasteland binary:
// reporting a fatal error on stderr and choosing the exit status, for
// use after the command tree returns.
package process
