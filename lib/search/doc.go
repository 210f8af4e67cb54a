// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package search ranks tasks against a free-text query with Okapi
// BM25. Titles weigh more than task ids, and ids more than bodies;
// field weighting is done by repeating a field's tokens.
package search
