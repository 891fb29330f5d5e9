package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManager_Defaults(t *testing.T) {
	m := New("session-1")

	assert.Equal(t, "session-1", m.GetSessionID())
	assert.Equal(t, Inputs{ActivePlaylist: "all"}, m.Inputs())
}

func TestManager_Setters(t *testing.T) {
	m := New("s")

	assert.True(t, m.SetActivePlaylist("chill"))
	assert.False(t, m.SetActivePlaylist("chill"))
	assert.True(t, m.SetSearchQuery("tycho"))
	assert.False(t, m.SetSearchQuery("tycho"))
	assert.True(t, m.ToggleShuffle())

	assert.Equal(t, Inputs{ActivePlaylist: "chill", SearchQuery: "tycho", Shuffle: true}, m.Inputs())
	assert.False(t, m.ToggleShuffle())
	assert.False(t, m.IsShuffle())
}
