// Package spotify imports Spotify playlists into catalog documents.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/osa030/sidebox/internal/domain/catalog"
	"github.com/osa030/sidebox/internal/domain/track"
)

const pageLimit = 100

// Client is a read-only Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// Skipped describes a playlist item that could not become a catalog track.
type Skipped struct {
	ID     string
	Name   string
	Reason string
}

// New creates a client authenticated with the client-credentials flow.
// No user scopes are needed to read public playlists.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := creds.Token(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to obtain spotify token")
	}

	return newClient(spotify.New(creds.Client(ctx)), cfg.Market), nil
}

func newClient(c *spotify.Client, market string) *Client {
	if market == "" {
		market = "JP"
	}
	return &Client{
		client:     c,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// PlaylistTracks reads every track of a playlist as catalog entries tagged
// with tag. Items without a preview clip, episodes and duplicates are
// reported as skipped.
func (c *Client) PlaylistTracks(ctx context.Context, playlistURL, tag string) ([]catalog.TrackEntry, []Skipped, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, nil, errors.New("invalid playlist URL")
	}

	var (
		entries []catalog.TrackEntry
		skipped []Skipped
		seen    = make(map[string]bool)
	)

	for offset := 0; ; offset += pageLimit {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(pageLimit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			t := item.Track.Track
			if t == nil || t.ID == "" {
				skipped = append(skipped, Skipped{Reason: "not a track"})
				continue
			}
			id := string(t.ID)
			if seen[id] {
				skipped = append(skipped, Skipped{ID: id, Name: t.Name, Reason: "duplicate"})
				continue
			}
			seen[id] = true

			entry, ok := convertTrack(t, tag)
			if !ok {
				skipped = append(skipped, Skipped{ID: id, Name: t.Name, Reason: "no preview"})
				continue
			}
			entries = append(entries, entry)
		}

		if len(page.Items) < pageLimit {
			break
		}
	}

	zlog.Info().Msgf("spotify: playlist %s: %d tracks imported, %d skipped", playlistID, len(entries), len(skipped))
	return entries, skipped, nil
}

// Document builds a catalog document holding one playlist.
func Document(tag, name string, entries []catalog.TrackEntry) catalog.File {
	return catalog.File{
		Playlists: []catalog.PlaylistEntry{{ID: tag, Name: name, Icon: "Music"}},
		Tracks:    entries,
	}
}

// convertTrack converts a Spotify FullTrack to a catalog entry.
// Tracks without a preview clip have no playable source.
func convertTrack(t *spotify.FullTrack, tag string) (catalog.TrackEntry, bool) {
	if t.PreviewURL == "" {
		return catalog.TrackEntry{}, false
	}

	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var cover string
	if len(t.Album.Images) > 0 {
		cover = t.Album.Images[0].URL
	}

	return catalog.TrackEntry{
		ID:        string(t.ID),
		Title:     t.Name,
		Artist:    strings.Join(artists, ", "),
		Album:     t.Album.Name,
		Duration:  track.FormatDuration(time.Duration(t.Duration) * time.Millisecond),
		Playlists: []string{tag},
		Cover:     cover,
		AudioURL:  t.PreviewURL,
	}, true
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	if id, ok := strings.CutPrefix(input, "spotify:playlist:"); ok {
		return id
	}

	// open.spotify.com/playlist/ID and open.spotify.com/intl-xx/playlist/ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/playlist/") {
		parts := strings.Split(input, "/playlist/")
		id, _, _ := strings.Cut(parts[len(parts)-1], "?")
		return strings.TrimRight(id, "/")
	}

	return input
}
