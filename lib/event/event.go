// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Event kinds used by wasteland.
const (
	// KindTask is a parameterized-replaceable task record.
	KindTask = 30100

	// KindMessage is a directed agent-to-agent message.
	KindMessage = 31000

	// KindTaskWisp is the ephemeral counterpart of KindTask. Relays
	// forward it to live subscribers without storing it.
	KindTaskWisp = 20100

	// KindEphemeralMessage is the ephemeral counterpart of KindMessage.
	KindEphemeralMessage = 21000
)

// Event is a signed relay event.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Template is an unsigned event. A Signer fills in PubKey, ID and Sig.
type Template struct {
	Kind      int
	CreatedAt int64
	Tags      Tags
	Content   string
}

// Template returns the unsigned part of e. The tag slices are copied
// so edits to the template do not alias the event.
func (e Event) Template() Template {
	return Template{
		Kind:      e.Kind,
		CreatedAt: e.CreatedAt,
		Tags:      e.Tags.Clone(),
		Content:   e.Content,
	}
}

// IsEphemeral reports whether the kind is in the 20000-29999 range
// that relays never store.
func IsEphemeral(kind int) bool {
	return kind >= 20000 && kind < 30000
}

// IsAddressable reports whether relays keep only the newest event per
// (pubkey, kind, "d" tag) for kind.
func IsAddressable(kind int) bool {
	return kind >= 30000 && kind < 40000
}

// ComputeID returns the NIP-01 event id: the lowercase hex SHA-256 of
// the canonical serialization [0, pubkey, created_at, kind, tags, content].
func ComputeID(pubkey string, template Template) (string, error) {
	tags := template.Tags
	if tags == nil {
		tags = Tags{}
	}
	// NIP-01 serializes <, > and & literally.
	var serialized bytes.Buffer
	encoder := json.NewEncoder(&serialized)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode([]any{0, pubkey, template.CreatedAt, template.Kind, tags, template.Content}); err != nil {
		return "", fmt.Errorf("event: serializing for id: %w", err)
	}
	sum := sha256.Sum256(bytes.TrimSuffix(serialized.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:]), nil
}

// CheckID reports whether e.ID matches its content.
func (e Event) CheckID() bool {
	id, err := ComputeID(e.PubKey, e.Template())
	return err == nil && id == e.ID
}
