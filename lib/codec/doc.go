// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the module's one CBOR configuration.
//
// Relay traffic is JSON because NIP-01 says so. CBOR is used for what
// wasteland writes for itself: exported dependency graph snapshots
// (see lib/snapshot). The encoder uses Core Deterministic Encoding
// (RFC 8949 §4.2), so the same graph always exports to the same bytes
// and snapshots can be compared by hash.
//
//	data, err := codec.Marshal(snapshot)
//	err = codec.Unmarshal(data, &snapshot)
//
// Types that also appear in --json output carry only `json` tags;
// fxamacker/cbor reads them when no `cbor` tag is present. Never put
// both tags on one field.
package codec
