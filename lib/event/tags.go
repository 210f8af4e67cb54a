// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

// Tag is one tag array: a name followed by values.
type Tag []string

// Name returns the tag name, or "" for an empty tag.
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the first value after the name, or "".
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Tags is an ordered list of tags. Order is preserved on the wire and
// is significant for ids.
type Tags []Tag

// Find returns the first tag with the given name.
func (tags Tags) Find(name string) (Tag, bool) {
	for _, tag := range tags {
		if tag.Name() == name {
			return tag, true
		}
	}
	return nil, false
}

// Value returns the first value of the first tag with the given name.
func (tags Tags) Value(name string) string {
	tag, _ := tags.Find(name)
	return tag.Value()
}

// Values returns the first value of every tag with the given name, in
// order. Tags with no value are skipped.
func (tags Tags) Values(name string) []string {
	var values []string
	for _, tag := range tags {
		if tag.Name() == name && len(tag) >= 2 {
			values = append(values, tag[1])
		}
	}
	return values
}

// FindAll returns every tag with the given name.
func (tags Tags) FindAll(name string) []Tag {
	var found []Tag
	for _, tag := range tags {
		if tag.Name() == name {
			found = append(found, tag)
		}
	}
	return found
}

// Clone returns a deep copy.
func (tags Tags) Clone() Tags {
	if tags == nil {
		return nil
	}
	clone := make(Tags, len(tags))
	for i, tag := range tags {
		clone[i] = append(Tag(nil), tag...)
	}
	return clone
}
