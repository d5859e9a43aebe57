// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry tracks which stream handles are currently active for
// each StreamUsage. It is pure bookkeeping: no policy decisions live here,
// only "who is active right now", grounded on original_source's
// active_streams_playback_/active_streams_capture_ per-usage
// unordered_sets and on the teacher's per-user active-stream lookup in
// internal/detection/concurrent_streams.go.
package registry

import (
	"sync"

	"github.com/tomtom215/audiopolicyd/internal/usage"
)

// Sets is a usage-indexed collection of active stream handles. The zero
// value is not ready for use; call New.
type Sets struct {
	mu      sync.RWMutex
	byUsage map[usage.StreamUsage]map[usage.StreamHandle]struct{}
}

// New returns an empty Sets.
func New() *Sets {
	return &Sets{byUsage: make(map[usage.StreamUsage]map[usage.StreamHandle]struct{})}
}

// Add records handle as active under u. Returns the resulting count of
// active handles under u and whether this call actually changed
// membership (false if handle was already present — Add is idempotent).
func (s *Sets) Add(u usage.StreamUsage, handle usage.StreamHandle) (count int, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.byUsage[u]
	if !ok {
		set = make(map[usage.StreamHandle]struct{})
		s.byUsage[u] = set
	}
	if _, present := set[handle]; present {
		return len(set), false
	}
	set[handle] = struct{}{}
	return len(set), true
}

// Remove drops handle from u's active set. Removing a handle that was
// never added (or already removed) is a no-op: count reflects the
// unchanged set size and changed is false.
func (s *Sets) Remove(u usage.StreamUsage, handle usage.StreamHandle) (count int, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.byUsage[u]
	if !ok {
		return 0, false
	}
	if _, present := set[handle]; !present {
		return len(set), false
	}
	delete(set, handle)
	return len(set), true
}

// Count returns the number of handles currently active under u.
func (s *Sets) Count(u usage.StreamUsage) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUsage[u])
}

// IsActive reports whether u has at least one active handle.
func (s *Sets) IsActive(u usage.StreamUsage) bool {
	return s.Count(u) > 0
}

// ActiveUsages returns every StreamUsage with at least one active handle,
// in usage.Space() order. Used by the admin engine's decision loop to
// enumerate "which active usages currently impose something".
func (s *Sets) ActiveUsages() []usage.StreamUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]usage.StreamUsage, 0, len(s.byUsage))
	for _, u := range usage.Space() {
		if set, ok := s.byUsage[u]; ok && len(set) > 0 {
			out = append(out, u)
		}
	}
	return out
}
