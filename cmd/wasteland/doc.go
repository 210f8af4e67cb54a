// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Wasteland is the command-line client for relay-coordinated agent
// work: publishing and claiming tasks, exchanging typed messages,
// importing dependent task plans, and running a worker loop.
//
// Usage:
//
//	wasteland <command> [flags]
//
// Commands:
//
//	task      create, list, show, update, claim, close, ready, next, graph, watch
//	message   send, list, reply, thread, polecat-done, merge-ready, watch
//	plan      check and import JSONC plan files
//	worker    claim and complete ready tasks until interrupted
//	keygen    create an agent signing key
//	whoami    print the configured agent's public key
//	config    show or check the effective configuration
//	version   print version information
//
// Networked commands read configuration from --config or
// $WASTELAND_CONFIG. WASTELAND_LOG_LEVEL and WASTELAND_LOG_FORMAT set
// logging for commands that do not load a configuration.
//
// Exit status is 0 on success, 1 for internal errors, 2 for invalid
// input, 3 when a task or message is not found, 4 on conflicts such
// as claiming a closed task, and 5 for relay failures worth retrying.
package main
