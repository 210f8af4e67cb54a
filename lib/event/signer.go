// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

// Signer turns templates into signed events and verifies signatures.
// Implementations must be safe for concurrent use.
type Signer interface {
	// PublicKey returns the lowercase hex public key stamped on every
	// event this signer produces.
	PublicKey() string

	// Sign assigns PubKey, ID and Sig.
	Sign(template Template) (Event, error)

	// Verify reports whether e carries a valid id and signature.
	Verify(e Event) bool
}
