// Package queue derives the active playback queue from the catalog.
package queue

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sidebox/internal/app/filter"
	"github.com/osa030/sidebox/internal/domain/catalog"
	"github.com/osa030/sidebox/internal/domain/playlist"
	"github.com/osa030/sidebox/internal/domain/track"
)

// Params are the user inputs the queue depends on.
type Params struct {
	Playlist  string            // Active playlist ID
	Query     string            // Search text
	Favorites func(string) bool // Favorites lookup
	Shuffle   bool              // Shuffle flag
}

// Filter returns the tracks matching p in their original order.
func Filter(tracks []track.Track, p Params) []track.Track {
	playlistID := p.Playlist
	if playlistID == "" {
		playlistID = playlist.AllID
	}
	chain := filter.NewChain(
		filter.NewPlaylistFilter(playlistID, p.Favorites),
		filter.NewSearchFilter(p.Query),
	)
	return chain.Apply(tracks)
}

// Builder builds queues. The shuffled order is cached against the filtered
// ID list and the shuffle flag, so unrelated state changes never reshuffle.
type Builder struct {
	mu  sync.Mutex
	rng *rand.Rand

	cacheKey []string
	shuffled bool
	cached   []track.Track
	valid    bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(b *Builder) {
		b.rng = r
	}
}

// NewBuilder creates a new queue builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		seed := uint64(time.Now().UnixNano())
		b.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return b
}

// Build returns the queue for the catalog and params.
// The returned slice is owned by the caller.
func (b *Builder) Build(c *catalog.Catalog, p Params) []track.Track {
	filtered := Filter(c.Tracks(), p)
	ids := playlist.TrackIDs(filtered)

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.valid || b.shuffled != p.Shuffle || !slices.Equal(b.cacheKey, ids) {
		if p.Shuffle {
			b.rng.Shuffle(len(filtered), func(i, j int) {
				filtered[i], filtered[j] = filtered[j], filtered[i]
			})
			zlog.Debug().Msgf("queue: reshuffled %d tracks", len(filtered))
		}
		b.cacheKey = ids
		b.shuffled = p.Shuffle
		b.cached = filtered
		b.valid = true
	}

	return slices.Clone(b.cached)
}

// Invalidate drops the cached order. The next Build recomputes it.
func (b *Builder) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.valid = false
}
