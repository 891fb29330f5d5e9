// Package favorites provides the per-session favorites set.
package favorites

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sidebox/internal/infra/storage"
)

// StorageKey is the key the favorites set is persisted under.
const StorageKey = "favorites"

// Store is the favorites set. The in-memory set is authoritative for the
// session; every mutation is written through to the backing store.
type Store struct {
	mu      sync.RWMutex
	backend storage.Store
	ids     []string // insertion order
	members map[string]bool
}

// NewStore rehydrates the favorites set from backend.
// A missing or malformed stored value yields an empty set.
func NewStore(ctx context.Context, backend storage.Store) *Store {
	stored := storage.Decode(ctx, backend, StorageKey, []string{})

	s := &Store{
		backend: backend,
		ids:     make([]string, 0, len(stored)),
		members: make(map[string]bool, len(stored)),
	}
	for _, id := range stored {
		if id == "" || s.members[id] {
			continue
		}
		s.members[id] = true
		s.ids = append(s.ids, id)
	}

	zlog.Debug().Msgf("favorites: rehydrated %d ids", len(s.ids))
	return s
}

// Toggle adds id if absent or removes it if present, then persists the set.
// It returns whether id is a favorite afterwards.
// Persistence failures are logged and otherwise ignored.
func (s *Store) Toggle(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var now bool
	if s.members[id] {
		delete(s.members, id)
		for i, v := range s.ids {
			if v == id {
				s.ids = append(s.ids[:i], s.ids[i+1:]...)
				break
			}
		}
	} else {
		s.members[id] = true
		s.ids = append(s.ids, id)
		now = true
	}

	// The whole set is written every time, so a failed write is
	// repaired by the next successful one.
	if err := storage.Encode(ctx, s.backend, StorageKey, s.ids); err != nil {
		zlog.Warn().Err(err).Msgf("favorites: failed to persist after toggling %s", id)
	}
	return now
}

// IsFavorite reports whether id is in the set.
func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[id]
}

// IDs returns the favorites in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, len(s.ids))
	copy(result, s.ids)
	return result
}

// Len returns the number of favorites.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
