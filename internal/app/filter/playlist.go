package filter

import (
	"github.com/osa030/sidebox/internal/domain/playlist"
	"github.com/osa030/sidebox/internal/domain/track"
)

// PlaylistFilter accepts tracks belonging to the active playlist.
// "all" accepts everything, "favorites" consults the favorites lookup,
// any other ID is matched against the track's tags.
type PlaylistFilter struct {
	playlistID string
	isFavorite func(string) bool
}

// NewPlaylistFilter creates a playlist filter.
func NewPlaylistFilter(playlistID string, isFavorite func(string) bool) *PlaylistFilter {
	return &PlaylistFilter{
		playlistID: playlistID,
		isFavorite: isFavorite,
	}
}

// Name returns the filter name.
func (f *PlaylistFilter) Name() string {
	return "playlist"
}

// Check checks playlist membership.
func (f *PlaylistFilter) Check(t *track.Track) Result {
	if playlist.Includes(f.playlistID, t, f.isFavorite) {
		return Accept()
	}
	return Reject(f.Name())
}
