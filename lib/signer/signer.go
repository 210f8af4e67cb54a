// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"

	"fiatjaf.com/nostr"
	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/wasteland/lib/event"
)

// hkdfInfoAgentKey is the HKDF info prefix for per-agent keys. The
// agent name follows it.
var hkdfInfoAgentKey = []byte("wasteland.agent.key.v1:")

// ErrInvalidKey is returned for secret keys that cannot sign.
var ErrInvalidKey = errors.New("signer: invalid secret key")

// KeySigner signs with one secp256k1 secret key. Safe for concurrent
// use.
type KeySigner struct {
	secretKey nostr.SecretKey
	publicKey string
}

var _ event.Signer = (*KeySigner)(nil)

// Generate returns a signer with a fresh random key.
func Generate() *KeySigner {
	return newKeySigner(nostr.Generate())
}

// FromHex returns a signer for a 64-character hex secret key.
func FromHex(secretHex string) (*KeySigner, error) {
	if len(secretHex) != 64 {
		return nil, fmt.Errorf("%w: want 64 hex characters, got %d", ErrInvalidKey, len(secretHex))
	}
	if _, err := hex.DecodeString(secretHex); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	secretKey, err := nostr.SecretKeyFromHex(secretHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if secretKey == (nostr.SecretKey{}) {
		return nil, ErrInvalidKey
	}
	return newKeySigner(secretKey), nil
}

// Derive returns the signer for agent under seed. The same seed and
// name always produce the same key; different names produce unrelated
// keys.
func Derive(seed []byte, agent string) (*KeySigner, error) {
	if len(seed) < 16 {
		return nil, fmt.Errorf("signer: seed must be at least 16 bytes, got %d", len(seed))
	}
	if agent == "" {
		return nil, fmt.Errorf("signer: agent name is required for key derivation")
	}

	info := append(append([]byte(nil), hkdfInfoAgentKey...), agent...)
	reader := hkdf.New(sha256.New, seed, nil, info)
	var secretKey nostr.SecretKey
	if _, err := io.ReadFull(reader, secretKey[:]); err != nil {
		return nil, fmt.Errorf("signer: HKDF key derivation failed: %w", err)
	}
	return newKeySigner(secretKey), nil
}

func newKeySigner(secretKey nostr.SecretKey) *KeySigner {
	return &KeySigner{
		secretKey: secretKey,
		publicKey: secretKey.Public().Hex(),
	}
}

// PublicKey returns the x-only public key in lowercase hex.
func (s *KeySigner) PublicKey() string {
	return s.publicKey
}

// SecretHex returns the secret key in hex, for writing key files.
func (s *KeySigner) SecretHex() string {
	return s.secretKey.Hex()
}

// Sign stamps template with this signer's public key, id and
// signature.
func (s *KeySigner) Sign(template event.Template) (event.Event, error) {
	if template.Kind < 0 || template.Kind > math.MaxUint16 {
		return event.Event{}, fmt.Errorf("signer: kind %d out of range", template.Kind)
	}

	signed := toNostr(event.Event{
		CreatedAt: template.CreatedAt,
		Kind:      template.Kind,
		Tags:      template.Tags,
		Content:   template.Content,
	})
	if err := signed.Sign(s.secretKey); err != nil {
		return event.Event{}, fmt.Errorf("signer: signing: %w", err)
	}

	result := event.Event{
		ID:        signed.ID.Hex(),
		PubKey:    signed.PubKey.Hex(),
		CreatedAt: template.CreatedAt,
		Kind:      template.Kind,
		Tags:      template.Tags.Clone(),
		Content:   template.Content,
		Sig:       hex.EncodeToString(signed.Sig[:]),
	}
	if !result.CheckID() {
		return event.Event{}, fmt.Errorf("signer: signed id %s does not match the NIP-01 serialization", result.ID)
	}
	return result, nil
}

// Verify reports whether e has a correct id and a valid signature by
// e.PubKey.
func (s *KeySigner) Verify(e event.Event) bool {
	return Verify(e)
}

// Verify reports whether e has a correct id and a valid signature by
// e.PubKey. It needs no secret key.
func Verify(e event.Event) bool {
	if e.Kind < 0 || e.Kind > math.MaxUint16 || !e.CheckID() {
		return false
	}
	converted := toNostr(e)

	publicKey, err := nostr.PubKeyFromHex(e.PubKey)
	if err != nil {
		return false
	}
	id, err := nostr.IDFromHex(e.ID)
	if err != nil {
		return false
	}
	signature, err := hex.DecodeString(e.Sig)
	if err != nil || len(signature) != len(converted.Sig) {
		return false
	}

	converted.PubKey = publicKey
	converted.ID = id
	copy(converted.Sig[:], signature)
	return converted.VerifySignature()
}

// toNostr converts the fields that take part in the id. Kind must
// already be range-checked.
func toNostr(e event.Event) nostr.Event {
	tags := make(nostr.Tags, len(e.Tags))
	for i, tag := range e.Tags {
		tags[i] = nostr.Tag(append([]string(nil), tag...))
	}
	return nostr.Event{
		CreatedAt: nostr.Timestamp(e.CreatedAt),
		Kind:      nostr.Kind(e.Kind),
		Tags:      tags,
		Content:   e.Content,
	}
}
