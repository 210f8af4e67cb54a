// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds agent key material outside the Go heap.
//
// A [Buffer] is an anonymous mmap region locked against swap (mlock)
// and excluded from core dumps (MADV_DONTDUMP). Close zeros, unlocks
// and unmaps it; any later access panics.
//
// lib/signer reads key files through [ReadFile] and keeps decrypted
// age plaintext in a Buffer until the signing key has been parsed.
package secret
