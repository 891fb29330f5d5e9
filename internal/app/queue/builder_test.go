package queue

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/sidebox/internal/domain/catalog"
	"github.com/osa030/sidebox/internal/domain/playlist"
	"github.com/osa030/sidebox/internal/domain/track"
)

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func favoritesOf(ids ...string) func(string) bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(id string) bool { return set[id] }
}

func TestFilter_Predicate(t *testing.T) {
	c := defaultCatalog(t)

	tests := []struct {
		name     string
		params   Params
		expected []string
	}{
		{
			name:     "all",
			params:   Params{Playlist: "all"},
			expected: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13"},
		},
		{
			name:     "empty playlist means all",
			params:   Params{},
			expected: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13"},
		},
		{
			name:     "electronic tag",
			params:   Params{Playlist: "electronic"},
			expected: []string{"2", "3", "4", "8", "12", "13"},
		},
		{
			name:     "favorites in catalog order",
			params:   Params{Playlist: "favorites", Favorites: favoritesOf("9", "2", "unknown")},
			expected: []string{"2", "9"},
		},
		{
			name:     "favorites without lookup",
			params:   Params{Playlist: "favorites"},
			expected: []string{},
		},
		{
			name:     "search by artist across playlist",
			params:   Params{Playlist: "focus", Query: "porter"},
			expected: []string{"4", "7"},
		},
		{
			name:     "search matching album only",
			params:   Params{Playlist: "all", Query: "kid a"},
			expected: []string{"5"},
		},
		{
			name:     "search and tag disjoint",
			params:   Params{Playlist: "electronic", Query: "weightless"},
			expected: []string{},
		},
		{
			name:     "unknown playlist",
			params:   Params{Playlist: "jazz"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(c.Tracks(), tt.params)
			assert.Equal(t, tt.expected, playlist.TrackIDs(got))
		})
	}
}

func TestBuilder_UnshuffledIsCatalogOrder(t *testing.T) {
	c := defaultCatalog(t)
	b := NewBuilder()

	got := b.Build(c, Params{Playlist: "chill"})
	assert.Equal(t, []string{"1", "2", "3", "6", "7", "10", "11"}, playlist.TrackIDs(got))
}

func TestBuilder_ShuffleKeepsMultiset(t *testing.T) {
	c := defaultCatalog(t)
	b := NewBuilder(WithRand(rand.New(rand.NewPCG(1, 2))))

	plain := b.Build(c, Params{Playlist: "all"})
	shuffled := b.Build(c, Params{Playlist: "all", Shuffle: true})
	b.Build(c, Params{Playlist: "all"})
	reshuffled := b.Build(c, Params{Playlist: "all", Shuffle: true})

	assert.ElementsMatch(t, playlist.TrackIDs(plain), playlist.TrackIDs(shuffled))
	assert.ElementsMatch(t, playlist.TrackIDs(plain), playlist.TrackIDs(reshuffled))
	assert.NotEqual(t, playlist.TrackIDs(plain), playlist.TrackIDs(shuffled),
		"13 tracks are practically never shuffled into catalog order")
}

func TestBuilder_ShuffleIsStableForSameInputs(t *testing.T) {
	c := defaultCatalog(t)
	b := NewBuilder(WithRand(rand.New(rand.NewPCG(7, 7))))
	favorites := favoritesOf("1")

	first := b.Build(c, Params{Playlist: "focus", Shuffle: true, Favorites: favorites})
	// A favorites change does not alter a tag playlist's filtered set.
	favorites = favoritesOf("1", "2")
	second := b.Build(c, Params{Playlist: "focus", Shuffle: true, Favorites: favorites})
	third := b.Build(c, Params{Playlist: "focus", Shuffle: true, Favorites: favorites})

	assert.Equal(t, playlist.TrackIDs(first), playlist.TrackIDs(second))
	assert.Equal(t, playlist.TrackIDs(first), playlist.TrackIDs(third))
}

func TestBuilder_FilteredSetChangeReshuffles(t *testing.T) {
	c := defaultCatalog(t)
	b := NewBuilder(WithRand(rand.New(rand.NewPCG(3, 4))))

	all := b.Build(c, Params{Playlist: "all", Shuffle: true})
	narrowed := b.Build(c, Params{Playlist: "all", Query: "porter", Shuffle: true})

	assert.Len(t, all, 13)
	assert.ElementsMatch(t, []string{"4", "7"}, playlist.TrackIDs(narrowed))
}

func TestBuilder_ReturnsCopy(t *testing.T) {
	c := defaultCatalog(t)
	b := NewBuilder()

	got := b.Build(c, Params{Playlist: "all", Shuffle: true})
	got[0] = track.Track{ID: "mutated"}

	again := b.Build(c, Params{Playlist: "all", Shuffle: true})
	assert.NotEqual(t, "mutated", again[0].ID)
}

func TestBuilder_Invalidate(t *testing.T) {
	c := defaultCatalog(t)
	b := NewBuilder(WithRand(rand.New(rand.NewPCG(5, 6))))

	first := b.Build(c, Params{Playlist: "all", Shuffle: true})
	b.Invalidate()
	second := b.Build(c, Params{Playlist: "all", Shuffle: true})

	assert.ElementsMatch(t, playlist.TrackIDs(first), playlist.TrackIDs(second))
}

func TestBuilder_EmptyQueue(t *testing.T) {
	c := defaultCatalog(t)
	b := NewBuilder()

	assert.Empty(t, b.Build(c, Params{Playlist: "favorites", Shuffle: true}))
}
