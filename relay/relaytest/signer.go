// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relaytest

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/bureau-foundation/wasteland/lib/event"
)

// Signer is a deterministic event.Signer for tests. Ids are real
// NIP-01 ids; signatures are a marker derived from the id and are
// only meaningful to another Signer.
type Signer struct {
	publicKey string
}

// NewSigner returns a signer whose public key is derived from name.
func NewSigner(name string) *Signer {
	sum := sha256.Sum256([]byte("relaytest:" + name))
	return &Signer{publicKey: hex.EncodeToString(sum[:])}
}

// PublicKey returns the hex public key.
func (s *Signer) PublicKey() string { return s.publicKey }

// Sign stamps the template with this signer's key.
func (s *Signer) Sign(template event.Template) (event.Event, error) {
	id, err := event.ComputeID(s.publicKey, template)
	if err != nil {
		return event.Event{}, err
	}
	tags := template.Tags
	if tags == nil {
		tags = event.Tags{}
	}
	return event.Event{
		ID:        id,
		PubKey:    s.publicKey,
		CreatedAt: template.CreatedAt,
		Kind:      template.Kind,
		Tags:      tags,
		Content:   template.Content,
		Sig:       marker(id),
	}, nil
}

// Verify checks the id and the marker signature.
func (s *Signer) Verify(e event.Event) bool {
	return e.CheckID() && e.Sig == marker(e.ID)
}

func marker(id string) string {
	sum := sha256.Sum256([]byte("sig:" + id))
	return hex.EncodeToString(sum[:]) + hex.EncodeToString(sum[:])
}

// MustSign signs or panics.
func (s *Signer) MustSign(template event.Template) event.Event {
	e, err := s.Sign(template)
	if err != nil {
		panic("relaytest: signing: " + err.Error())
	}
	return e
}
