// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package policy holds the interaction matrix (the policy store) and the
// loader that parses a declarative JSON policy document into it.
package policy

import (
	"sync"

	"github.com/tomtom215/audiopolicyd/internal/usage"
)

// Store is the (active, affected) -> Behavior interaction matrix. A cell is
// addressed by the matrix index of each StreamUsage (usage.Space order),
// so every (render,render)/(render,capture)/(capture,render)/(capture,
// capture) quadrant is reachable through the same SetRule/GetRule calls.
//
// Reads may come from goroutines other than the admin dispatcher (e.g. an
// HTTP query handler), so the matrix is guarded by a RWMutex rather than
// relying solely on dispatcher single-threading.
type Store struct {
	mu     sync.RWMutex
	matrix [][]usage.Behavior
}

// NewStore returns a Store with every cell set to NONE.
func NewStore() *Store {
	s := &Store{}
	s.resetLocked()
	return s
}

// SetRule overwrites the (active, affected) cell. Idempotent.
func (s *Store) SetRule(active, affected usage.StreamUsage, behavior usage.Behavior) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrix[active.Index()][affected.Index()] = behavior
}

// GetRule is a total function: every (active, affected) pair has a defined
// Behavior, defaulting to NONE.
func (s *Store) GetRule(active, affected usage.StreamUsage) usage.Behavior {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matrix[active.Index()][affected.Index()]
}

// ResetAll sets every cell back to NONE.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Store) resetLocked() {
	space := usage.Space()
	n := len(space)
	s.matrix = make([][]usage.Behavior, n)
	for i := range s.matrix {
		s.matrix[i] = make([]usage.Behavior, n)
	}
}

// Snapshot returns a read-only copy of the current rules, keyed by
// (active, affected) StreamUsage pairs whose behavior is not NONE. Used by
// the admin engine's decision loop, which needs to scan "which active
// usages impose something on u" without holding the store's lock across
// the whole recompute.
func (s *Store) Snapshot() map[[2]usage.StreamUsage]usage.Behavior {
	s.mu.RLock()
	defer s.mu.RUnlock()

	space := usage.Space()
	out := make(map[[2]usage.StreamUsage]usage.Behavior)
	for _, active := range space {
		for _, affected := range space {
			b := s.matrix[active.Index()][affected.Index()]
			if b != usage.BehaviorNone {
				out[[2]usage.StreamUsage{active, affected}] = b
			}
		}
	}
	return out
}
