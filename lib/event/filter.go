// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Filter selects events. Empty fields do not constrain. A REQ carries
// one or more filters and an event matches the REQ if it matches any
// of them.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Since   *int64
	Until   *int64
	Limit   int

	// Tags constrains single-letter and named tags. The key is the tag
	// name without the "#" prefix; an event matches when it has a tag
	// with that name whose first value is one of the listed values.
	Tags map[string][]string
}

// Int64 returns a pointer to v, for Since and Until.
func Int64(v int64) *int64 { return &v }

// Matches reports whether e satisfies every constraint in f. Limit is
// a relay-side result cap and is not consulted.
func (f Filter) Matches(e Event) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, e.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, e.Kind) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	for name, wanted := range f.Tags {
		if len(wanted) == 0 {
			continue
		}
		if !slices.ContainsFunc(e.Tags.Values(name), func(v string) bool {
			return slices.Contains(wanted, v)
		}) {
			return false
		}
	}
	return true
}

// MatchesAny reports whether e matches at least one filter. No
// filters matches nothing.
func MatchesAny(filters []Filter, e Event) bool {
	for _, f := range filters {
		if f.Matches(e) {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the NIP-01 filter object.
func (f Filter) MarshalJSON() ([]byte, error) {
	object := make(map[string]any)
	if len(f.IDs) > 0 {
		object["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		object["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		object["kinds"] = f.Kinds
	}
	if f.Since != nil {
		object["since"] = *f.Since
	}
	if f.Until != nil {
		object["until"] = *f.Until
	}
	if f.Limit > 0 {
		object["limit"] = f.Limit
	}
	for name, values := range f.Tags {
		if len(values) > 0 {
			object["#"+name] = values
		}
	}
	return json.Marshal(object)
}

// UnmarshalJSON decodes the NIP-01 filter object. Unknown keys
// without a "#" prefix are rejected.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return fmt.Errorf("event: decoding filter: %w", err)
	}

	*f = Filter{}
	for key, raw := range object {
		var err error
		switch key {
		case "ids":
			err = json.Unmarshal(raw, &f.IDs)
		case "authors":
			err = json.Unmarshal(raw, &f.Authors)
		case "kinds":
			err = json.Unmarshal(raw, &f.Kinds)
		case "since":
			f.Since = new(int64)
			err = json.Unmarshal(raw, f.Since)
		case "until":
			f.Until = new(int64)
			err = json.Unmarshal(raw, f.Until)
		case "limit":
			err = json.Unmarshal(raw, &f.Limit)
		default:
			name, ok := strings.CutPrefix(key, "#")
			if !ok || name == "" {
				return fmt.Errorf("event: unknown filter field %q", key)
			}
			var values []string
			err = json.Unmarshal(raw, &values)
			if err == nil {
				if f.Tags == nil {
					f.Tags = make(map[string][]string)
				}
				f.Tags[name] = values
			}
		}
		if err != nil {
			return fmt.Errorf("event: decoding filter field %q: %w", key, err)
		}
	}
	return nil
}
