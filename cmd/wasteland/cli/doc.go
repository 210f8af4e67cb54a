// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the wasteland
// binary.
//
// A [Command] tree dispatches on the first positional argument. Leaf
// commands declare their flags as a tagged params struct returned by
// Command.Params; [BindFlags] turns the struct tags into pflag
// bindings, so the same struct carries both the flag definitions and
// the parsed values seen by Run:
//
//	type listParams struct {
//	    cli.JSONOutput
//	    Status string `flag:"status,s" desc:"filter by status"`
//	}
//
// Errors returned from Run may be categorized with [Validation],
// [NotFound], [Transient] and friends. [ExitError] requests a specific
// exit status without an extra error line.
package cli
