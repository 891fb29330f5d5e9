// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Track represents a playable catalog entry.
// Tracks are immutable once loaded from the catalog.
type Track struct {
	ID        string        // Stable catalog ID
	Title     string        // Track title
	Artist    string        // Artist display name
	Album     string        // Album name
	Duration  time.Duration // Authoritative display duration (not the live one)
	Playlists []string      // Playlist tags
	CoverURL  string        // Cover art reference
	AudioURL  string        // Audio source reference
}

// HasTag reports whether the track is tagged with the given playlist ID.
func (t *Track) HasTag(playlistID string) bool {
	for _, tag := range t.Playlists {
		if tag == playlistID {
			return true
		}
	}
	return false
}

// Matches reports whether query is a case-insensitive substring of the
// title, artist or album. An empty query matches every track.
func (t *Track) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.Artist), q) ||
		strings.Contains(strings.ToLower(t.Album), q)
}

// maxDurationSeconds is the largest whole-second count a time.Duration holds.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// ParseDuration parses a "m:ss" or "h:mm:ss" display duration.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errors.Newf("invalid duration %q: expected m:ss", s)
	}

	var total int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, errors.Newf("invalid duration %q", s)
		}
		// Every field after the first is a base-60 digit.
		if i > 0 && n >= 60 {
			return 0, errors.Newf("invalid duration %q: field out of range", s)
		}
		if total > (maxDurationSeconds-n)/60 {
			return 0, errors.Newf("invalid duration %q: out of range", s)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

// FormatDuration renders d as "m:ss". Negative durations render as "0:00".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
