// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot reads and writes exported dependency graphs.
//
// A snapshot file is a short header followed by the CBOR encoding of a
// [depgraph.Snapshot], optionally compressed:
//
//	magic "WLGS" | format version (1 byte) | compression (1 byte) |
//	uncompressed length (uvarint) | payload
//
// Compression is none, lz4 (block mode) or zstd. Data that does not
// shrink under the requested algorithm is stored uncompressed and the
// header says so.
package snapshot
