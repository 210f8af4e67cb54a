// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import "sync"

// DefaultSeenCapacity is the default SeenCache bound.
const DefaultSeenCapacity = 10000

// SeenCache is a bounded, insertion-ordered set of event ids. When an
// insert pushes the size past capacity, the oldest half is evicted.
// An evicted id counts as unseen and will be delivered again. It is
// safe for concurrent use.
type SeenCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	ids      map[string]struct{}
}

// NewSeenCache returns an empty cache. capacity <= 0 means
// DefaultSeenCapacity.
func NewSeenCache(capacity int) *SeenCache {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	return &SeenCache{
		capacity: capacity,
		ids:      make(map[string]struct{}),
	}
}

// Add records id and reports whether it was new.
func (s *SeenCache) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[id]; exists {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.capacity {
		s.evictLocked()
	}
	return true
}

// evictLocked keeps the newest capacity/2 ids (at least one).
func (s *SeenCache) evictLocked() {
	keep := max(s.capacity/2, 1)
	evicted := s.order[:len(s.order)-keep]
	for _, id := range evicted {
		delete(s.ids, id)
	}
	s.order = append([]string(nil), s.order[len(s.order)-keep:]...)
}

// Contains reports whether id is in the cache.
func (s *SeenCache) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.ids[id]
	return exists
}

// Len returns the number of cached ids.
func (s *SeenCache) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Clear empties the cache.
func (s *SeenCache) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.ids = make(map[string]struct{})
}
