package filter

import (
	"github.com/osa030/sidebox/internal/domain/track"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain(filters ...Filter) *Chain {
	c := &Chain{
		filters: make([]Filter, 0, len(filters)),
	}
	for _, f := range filters {
		c.Add(f)
	}
	return c
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(t *track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(t)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply returns the tracks accepted by every filter, preserving order.
func (c *Chain) Apply(tracks []track.Track) []track.Track {
	result := make([]track.Track, 0, len(tracks))
	for i := range tracks {
		if c.Execute(&tracks[i]).Accepted {
			result = append(result, tracks[i])
		}
	}
	return result
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
