package filter

import (
	"github.com/osa030/sidebox/internal/domain/track"
)

// SearchFilter accepts tracks whose title, artist or album contains the
// query, ignoring case. An empty query accepts everything.
type SearchFilter struct {
	query string
}

// NewSearchFilter creates a search filter. The query is matched as typed;
// only the empty string accepts everything.
func NewSearchFilter(query string) *SearchFilter {
	return &SearchFilter{query: query}
}

// Name returns the filter name.
func (f *SearchFilter) Name() string {
	return "search"
}

// Check checks the query against the track metadata.
func (f *SearchFilter) Check(t *track.Track) Result {
	if t.Matches(f.query) {
		return Accept()
	}
	return Reject(f.Name())
}
