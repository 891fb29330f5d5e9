// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/sidebox/internal/domain/track"

// Virtual playlist IDs. They are not backed by track tags.
const (
	AllID       = "all"
	FavoritesID = "favorites"
)

// Playlist represents a named grouping of catalog tracks.
type Playlist struct {
	ID   string // Playlist ID (tag name for static playlists)
	Name string // Display name
	Icon string // Icon reference
}

// IsVirtual reports whether the playlist is derived rather than tag-backed.
func (p *Playlist) IsVirtual() bool {
	return IsVirtualID(p.ID)
}

// IsVirtualID reports whether id names a virtual playlist.
func IsVirtualID(id string) bool {
	return id == AllID || id == FavoritesID
}

// Includes reports whether t belongs to the playlist with the given ID.
// favorites is consulted only for the favorites playlist.
func Includes(id string, t *track.Track, favorites func(string) bool) bool {
	switch id {
	case AllID:
		return true
	case FavoritesID:
		return favorites != nil && favorites(t.ID)
	default:
		return t.HasTag(id)
	}
}

// TrackIDs returns the IDs of the given tracks in order.
func TrackIDs(tracks []track.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
