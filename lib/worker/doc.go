// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package worker runs an agent that picks up ready tasks and completes
// them.
//
// Each poll asks the client for ready tasks, takes the most urgent one
// still open, claims it (status in_progress), works on it, closes it,
// and optionally reports POLECAT_DONE to a configured key. Work is
// either a caller-supplied function or a simulated delay drawn
// uniformly from [MinWork, MaxWork]. All waiting goes through the
// injected clock.
package worker
