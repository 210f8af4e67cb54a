// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package plan imports a batch of dependent tasks from a JSONC file.
//
// A plan names its tasks with local keys and wires dependencies with
// "after" lists of those keys:
//
//	{
//	  // Tasks may appear in any order.
//	  "parent": "wl-7f3a",
//	  "tasks": [
//	    {"key": "deploy", "title": "Deploy", "after": ["build", "test"]},
//	    {"key": "build", "title": "Build", "priority": "high"},
//	    {"key": "test", "title": "Test", "after": ["build"]},
//	  ],
//	}
//
// [Apply] creates the tasks blockers-first, so each task's blocked-by
// tags carry the task ids its blockers were actually given. Plans with
// unknown keys or cycles are rejected by [Validate] before anything is
// published.
package plan
