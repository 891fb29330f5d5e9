// Package session provides the session facade consumed by the presentation layer.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sidebox/internal/app/favorites"
	"github.com/osa030/sidebox/internal/app/notification"
	"github.com/osa030/sidebox/internal/app/playback"
	"github.com/osa030/sidebox/internal/app/queue"
	"github.com/osa030/sidebox/internal/app/session/state"
	"github.com/osa030/sidebox/internal/domain/catalog"
	"github.com/osa030/sidebox/internal/domain/playlist"
	"github.com/osa030/sidebox/internal/domain/track"
	"github.com/osa030/sidebox/internal/infra/audio"
)

// noopErrors are engine errors that mean "documented no-op".
var noopErrors = []error{
	playback.ErrNoTrack,
	playback.ErrQueueEmpty,
	playback.ErrDurationUnknown,
	playback.ErrNotReady,
	playback.ErrInvalidPosition,
	playback.ErrNotInQueue,
}

// Config holds facade configuration.
type Config struct {
	SessionID string
	Playback  playback.Config
}

// PlaylistView is a sidebar entry.
type PlaylistView struct {
	playlist.Playlist
	Count int
}

// State is the read model rendered by the presentation layer.
type State struct {
	SessionID string

	// Transport
	CurrentTrack *track.Track
	PlayState    playback.State
	Position     time.Duration
	Duration     time.Duration
	Volume       float64
	Muted        bool
	Repeat       playback.RepeatMode
	LastError    *playback.Failure

	// Queue inputs
	ActivePlaylist string
	SearchQuery    string
	Shuffle        bool

	// Derived
	Queue     []track.Track
	Playlists []PlaylistView
	Favorites map[string]bool
}

// IsFavorite reports whether id is a favorite.
func (s *State) IsFavorite(id string) bool {
	return s.Favorites[id]
}

// IsCurrent reports whether id is the current track.
func (s *State) IsCurrent(id string) bool {
	return s.CurrentTrack != nil && s.CurrentTrack.ID == id
}

// Facade composes the catalog, favorites, queue builder and playback engine
// into one read model and one command surface.
//
// Commands never return errors or panic. Failures are recorded as the
// engine's lastError; commands that cannot apply are logged no-ops.
type Facade struct {
	catalog   *catalog.Catalog
	favorites *favorites.Store
	builder   *queue.Builder
	engine    *playback.Engine
	notifier  *notification.Manager
	view      *state.Manager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a facade. The facade owns output from here on.
func New(
	cat *catalog.Catalog,
	favs *favorites.Store,
	output audio.Output,
	cfg Config,
	opts ...queue.Option,
) *Facade {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Facade{
		catalog:   cat,
		favorites: favs,
		builder:   queue.NewBuilder(opts...),
		notifier:  notification.NewManager(),
		view:      state.New(cfg.SessionID),
		ctx:       ctx,
		cancel:    cancel,
	}
	f.engine = playback.NewEngine(output, f, cfg.Playback)
	return f
}

// Start starts the signal pump and the event loop.
func (f *Facade) Start() {
	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		f.engine.Run(f.ctx)
	}()
	go func() {
		defer f.wg.Done()
		f.eventLoop()
	}()
	zlog.Info().Msgf("session started: session_id=%s", f.view.GetSessionID())
}

// Close stops the loops and releases the audio output.
func (f *Facade) Close() {
	f.once.Do(func() {
		f.cancel()
		if err := f.engine.Close(); err != nil {
			zlog.Warn().Err(err).Msg("failed to close audio output")
		}
		f.wg.Wait()
		f.notifier.Close()
	})
}

// Subscribe registers a notification stream and returns its ID.
func (f *Facade) Subscribe(stream notification.Stream) string {
	return f.notifier.Subscribe(stream)
}

// Unsubscribe removes a notification stream.
func (f *Facade) Unsubscribe(id string) {
	f.notifier.Unsubscribe(id)
}

// CurrentQueue returns the active queue. It implements playback.QueueProvider.
func (f *Facade) CurrentQueue() []track.Track {
	in := f.view.Inputs()
	return f.builder.Build(f.catalog, queue.Params{
		Playlist:  in.ActivePlaylist,
		Query:     in.SearchQuery,
		Favorites: f.favorites.IsFavorite,
		Shuffle:   in.Shuffle,
	})
}

// State returns the current read model.
func (f *Facade) State() State {
	snap := f.engine.Snapshot()
	in := f.view.Inputs()

	favs := make(map[string]bool, f.favorites.Len())
	for _, id := range f.favorites.IDs() {
		favs[id] = true
	}

	playlists := f.catalog.Playlists()
	views := make([]PlaylistView, len(playlists))
	for i, p := range playlists {
		views[i] = PlaylistView{
			Playlist: p,
			Count:    f.catalog.Count(p.ID, f.favorites.IsFavorite),
		}
	}

	return State{
		SessionID:      f.view.GetSessionID(),
		CurrentTrack:   snap.CurrentTrack,
		PlayState:      snap.State,
		Position:       snap.Position,
		Duration:       snap.Duration,
		Volume:         snap.Volume,
		Muted:          snap.Muted,
		Repeat:         snap.Repeat,
		LastError:      snap.LastError,
		ActivePlaylist: in.ActivePlaylist,
		SearchQuery:    in.SearchQuery,
		Shuffle:        in.Shuffle,
		Queue:          f.CurrentQueue(),
		Playlists:      views,
		Favorites:      favs,
	}
}

// Play plays the catalog track with the given ID.
func (f *Facade) Play(trackID string) {
	f.run("play", func() error {
		t, ok := f.catalog.Track(trackID)
		if !ok {
			return errors.Newf("unknown track %q", trackID)
		}
		f.engine.Play(t)
		return nil
	})
}

// Select toggles play/pause on the current track, or plays another track.
func (f *Facade) Select(trackID string) {
	f.run("select", func() error {
		snap := f.engine.Snapshot()
		if snap.CurrentTrack != nil && snap.CurrentTrack.ID == trackID {
			return f.engine.TogglePlayPause()
		}
		t, ok := f.catalog.Track(trackID)
		if !ok {
			return errors.Newf("unknown track %q", trackID)
		}
		f.engine.Play(t)
		return nil
	})
}

// TogglePlayPause flips between playing and paused.
func (f *Facade) TogglePlayPause() {
	f.run("toggle", f.engine.TogglePlayPause)
}

// Seek moves to a percentage of the current track.
func (f *Facade) Seek(percentage float64) {
	f.run("seek", func() error { return f.engine.Seek(percentage) })
}

// SetVolume sets the volume; values are clamped to [0,1].
func (f *Facade) SetVolume(level float64) {
	f.run("volume", func() error {
		f.engine.SetVolume(level)
		return nil
	})
}

// ToggleMute mutes or restores the volume.
func (f *Facade) ToggleMute() {
	f.run("mute", func() error {
		f.engine.ToggleMute()
		return nil
	})
}

// Next plays the next queue track.
func (f *Facade) Next() {
	f.run("next", f.engine.Next)
}

// Previous plays the previous queue track.
func (f *Facade) Previous() {
	f.run("previous", f.engine.Previous)
}

// Stop stops playback and keeps the current track.
func (f *Facade) Stop() {
	f.run("stop", f.engine.Stop)
}

// DismissError clears the last error.
func (f *Facade) DismissError() {
	f.run("dismiss_error", func() error {
		f.engine.DismissError()
		return nil
	})
}

// CycleRepeat advances the repeat mode.
func (f *Facade) CycleRepeat() {
	f.run("repeat", func() error {
		m := f.engine.CycleRepeat()
		zlog.Debug().Msgf("repeat mode: %s", m)
		return nil
	})
}

// ToggleShuffle flips the shuffle flag.
func (f *Facade) ToggleShuffle() {
	f.run("shuffle", func() error {
		on := f.view.ToggleShuffle()
		zlog.Debug().Msgf("shuffle: %t", on)
		return nil
	})
}

// ToggleFavorite adds or removes a catalog track from the favorites.
func (f *Facade) ToggleFavorite(trackID string) {
	f.run("favorite", func() error {
		if !f.catalog.Contains(trackID) {
			return errors.Newf("unknown track %q", trackID)
		}
		f.favorites.Toggle(f.ctx, trackID)
		return nil
	})
}

// SetActivePlaylist switches the playlist the queue is built from.
func (f *Facade) SetActivePlaylist(id string) {
	f.run("playlist", func() error {
		if _, ok := f.catalog.Playlist(id); !ok {
			return errors.Newf("unknown playlist %q", id)
		}
		f.view.SetActivePlaylist(id)
		return nil
	})
}

// SetSearchQuery sets the search text.
func (f *Facade) SetSearchQuery(q string) {
	f.run("search", func() error {
		f.view.SetSearchQuery(q)
		return nil
	})
}

// run executes a command, absorbing errors and panics, then notifies
// subscribers.
func (f *Facade) run(reason string, cmd func() error) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("command %s panicked: %v", reason, r)
		}
		f.notifier.Broadcast(reason)
	}()

	if err := cmd(); err != nil {
		if isNoop(err) {
			zlog.Debug().Msgf("command %s: no-op: %v", reason, err)
			return
		}
		zlog.Warn().Err(err).Msgf("command %s failed", reason)
	}
}

func isNoop(err error) bool {
	for _, target := range noopErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// eventLoop broadcasts engine events.
func (f *Facade) eventLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("event loop panicked: %v", r)
			// Restart loop to keep notifications flowing
			f.wg.Add(1)
			go func() {
				defer f.wg.Done()
				f.eventLoop()
			}()
		}
	}()

	for {
		select {
		case <-f.ctx.Done():
			return
		case ev, ok := <-f.engine.Events():
			if !ok {
				return
			}
			f.handleEvent(ev)
		}
	}
}

func (f *Facade) handleEvent(ev playback.Event) {
	switch ev.Type {
	case playback.EventPositionChanged:
		// Frequent; not worth a log line.
	case playback.EventTrackStarted, playback.EventError:
		title := ""
		if ev.Track != nil {
			title = fmt.Sprintf("%s - %s", ev.Track.Artist, ev.Track.Title)
		}
		zlog.Info().Msgf("playback event: type=%s state=%s track=%q", ev.Type, ev.State, title)
	default:
		zlog.Debug().Msgf("playback event: type=%s state=%s", ev.Type, ev.State)
	}
	f.notifier.Broadcast(ev.Type.String())
}
