package state

import (
	"sync"

	"github.com/osa030/sidebox/internal/domain/playlist"
)

// Manager manages session view state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	// Session identity
	sessionID string

	// Queue inputs
	activePlaylist string
	searchQuery    string
	shuffle        bool
}

// New creates a new state manager with the all playlist active.
func New(sessionID string) *Manager {
	return &Manager{
		sessionID:      sessionID,
		activePlaylist: playlist.AllID,
	}
}

// GetSessionID returns the session ID.
func (m *Manager) GetSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// GetActivePlaylist returns the active playlist ID.
func (m *Manager) GetActivePlaylist() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activePlaylist
}

// SetActivePlaylist sets the active playlist ID.
// It reports whether the value changed.
func (m *Manager) SetActivePlaylist(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activePlaylist == id {
		return false
	}
	m.activePlaylist = id
	return true
}

// GetSearchQuery returns the search text.
func (m *Manager) GetSearchQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchQuery
}

// SetSearchQuery sets the search text.
// It reports whether the value changed.
func (m *Manager) SetSearchQuery(q string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchQuery == q {
		return false
	}
	m.searchQuery = q
	return true
}

// IsShuffle returns the shuffle flag.
func (m *Manager) IsShuffle() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shuffle
}

// ToggleShuffle flips the shuffle flag and returns the new value.
func (m *Manager) ToggleShuffle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shuffle = !m.shuffle
	return m.shuffle
}

// Inputs returns a consistent copy of the queue inputs.
func (m *Manager) Inputs() Inputs {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Inputs{
		ActivePlaylist: m.activePlaylist,
		SearchQuery:    m.searchQuery,
		Shuffle:        m.shuffle,
	}
}
