// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package signer provides the production [event.Signer]: BIP-340
// Schnorr signatures over secp256k1 as NIP-01 requires, implemented by
// fiatjaf.com/nostr.
//
// Keys come from one of three places:
//
//   - a key file holding the hex secret key, optionally age-encrypted
//     ([LoadKeyFile]);
//   - a shared seed plus an agent name, expanded with HKDF-SHA256
//     ([Derive]), so a fleet of agents can be provisioned from one
//     secret;
//   - [Generate], for `wasteland keygen` and tests.
//
// Nothing outside this package sees nostr library types.
package signer
