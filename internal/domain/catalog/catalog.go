// Package catalog provides the static, read-only track catalog.
package catalog

import (
	_ "embed"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/sidebox/internal/domain/playlist"
	"github.com/osa030/sidebox/internal/domain/track"
)

//go:embed default.yaml
var defaultCatalog []byte

// File is the on-disk catalog document.
type File struct {
	Playlists []PlaylistEntry `yaml:"playlists" validate:"dive"`
	Tracks    []TrackEntry    `yaml:"tracks" validate:"dive"`
}

// PlaylistEntry is a playlist record in the catalog document.
type PlaylistEntry struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required"`
	Icon string `yaml:"icon" default:"Music"`
}

// TrackEntry is a track record in the catalog document.
type TrackEntry struct {
	ID        string   `yaml:"id" validate:"required"`
	Title     string   `yaml:"title" validate:"required"`
	Artist    string   `yaml:"artist" validate:"required"`
	Album     string   `yaml:"album"`
	Duration  string   `yaml:"duration" validate:"required"`
	Playlists []string `yaml:"playlists" validate:"dive,required"`
	Cover     string   `yaml:"cover,omitempty"`
	AudioURL  string   `yaml:"audio_url" validate:"required"`
}

// Catalog is the loaded, immutable set of tracks and playlists.
type Catalog struct {
	tracks    []track.Track
	byID      map[string]int
	playlists []playlist.Playlist
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file. An empty path loads the default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog file")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog %s", path)
	}
	return c, nil
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}
	return New(f)
}

// New builds a catalog from a decoded document.
func New(f File) (*Catalog, error) {
	for i := range f.Playlists {
		if err := defaults.Set(&f.Playlists[i]); err != nil {
			return nil, errors.Wrap(err, "failed to set defaults")
		}
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, errors.Wrap(err, "catalog validation failed")
	}

	c := &Catalog{
		tracks: make([]track.Track, 0, len(f.Tracks)),
		byID:   make(map[string]int, len(f.Tracks)),
	}

	known := make(map[string]bool, len(f.Playlists))
	for _, p := range f.Playlists {
		if known[p.ID] {
			return nil, errors.Newf("duplicate playlist id %q", p.ID)
		}
		known[p.ID] = true
		c.playlists = append(c.playlists, playlist.Playlist{ID: p.ID, Name: p.Name, Icon: p.Icon})
	}
	// The virtual playlists always exist, even if the document omits them.
	if !known[playlist.AllID] {
		c.playlists = append([]playlist.Playlist{{ID: playlist.AllID, Name: "All Tracks", Icon: "Music"}}, c.playlists...)
	}
	if !known[playlist.FavoritesID] {
		c.playlists = append(c.playlists, playlist.Playlist{ID: playlist.FavoritesID, Name: "Favorites", Icon: "Heart"})
	}

	for _, e := range f.Tracks {
		if _, dup := c.byID[e.ID]; dup {
			return nil, errors.Newf("duplicate track id %q", e.ID)
		}
		d, err := track.ParseDuration(e.Duration)
		if err != nil {
			return nil, errors.Wrapf(err, "track %s", e.ID)
		}
		for _, tag := range e.Playlists {
			if playlist.IsVirtualID(tag) {
				return nil, errors.Newf("track %s: %q is a virtual playlist and cannot be used as a tag", e.ID, tag)
			}
			if !known[tag] {
				zlog.Warn().Msgf("catalog: track %s tagged with undeclared playlist %q", e.ID, tag)
			}
		}

		c.byID[e.ID] = len(c.tracks)
		c.tracks = append(c.tracks, track.Track{
			ID:        e.ID,
			Title:     e.Title,
			Artist:    e.Artist,
			Album:     e.Album,
			Duration:  d,
			Playlists: append([]string(nil), e.Playlists...),
			CoverURL:  e.Cover,
			AudioURL:  e.AudioURL,
		})
	}

	return c, nil
}

// Tracks returns a copy of all tracks in catalog order.
func (c *Catalog) Tracks() []track.Track {
	result := make([]track.Track, len(c.tracks))
	copy(result, c.tracks)
	return result
}

// Track returns the track with the given ID.
func (c *Catalog) Track(id string) (track.Track, bool) {
	i, ok := c.byID[id]
	if !ok {
		return track.Track{}, false
	}
	return c.tracks[i], true
}

// Contains reports whether the catalog has a track with the given ID.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// Playlists returns a copy of the playlists in display order.
func (c *Catalog) Playlists() []playlist.Playlist {
	result := make([]playlist.Playlist, len(c.playlists))
	copy(result, c.playlists)
	return result
}

// Playlist returns the playlist with the given ID.
func (c *Catalog) Playlist(id string) (playlist.Playlist, bool) {
	for _, p := range c.playlists {
		if p.ID == id {
			return p, true
		}
	}
	return playlist.Playlist{}, false
}

// Count returns the number of tracks in a playlist.
// favorites is consulted only for the favorites playlist.
func (c *Catalog) Count(playlistID string, favorites func(string) bool) int {
	if playlistID == playlist.AllID {
		return len(c.tracks)
	}
	n := 0
	for i := range c.tracks {
		if playlist.Includes(playlistID, &c.tracks[i], favorites) {
			n++
		}
	}
	return n
}

// Encode renders a catalog document as YAML.
func Encode(f File) ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode catalog")
	}
	return data, nil
}
