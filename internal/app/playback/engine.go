package playback

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/sidebox/internal/domain/track"
	"github.com/osa030/sidebox/internal/infra/audio"
)

// Errors
var (
	ErrNoTrack         = errors.New("no current track")
	ErrQueueEmpty      = errors.New("queue is empty")
	ErrDurationUnknown = errors.New("duration is not known yet")
	ErrNotReady        = errors.New("track is still loading")
	ErrInvalidPosition = errors.New("seek position is not a number")
	ErrNotInQueue      = errors.New("current track is not in the queue")
)

// DefaultVolume is the initial and unmute volume when none is configured.
const DefaultVolume = 0.7

// QueueProvider supplies the active queue used to resolve next and previous.
type QueueProvider interface {
	CurrentQueue() []track.Track
}

// Config holds engine configuration.
type Config struct {
	DefaultVolume    float64 // Initial volume in [0,1]
	WrapOnRepeatNone bool    // Wrap to the first track at the end of the queue with repeat off
}

// Snapshot is a consistent copy of the transport state.
type Snapshot struct {
	CurrentTrack *track.Track
	State        State
	Position     time.Duration
	Duration     time.Duration
	Volume       float64
	Muted        bool
	Repeat       RepeatMode
	LastError    *Failure
	Generation   uint64
}

// Engine owns the transport state and the audio output.
//
// Every load gets a new generation; output signals carrying an older
// generation are discarded.
type Engine struct {
	mu sync.RWMutex

	output audio.Output
	queue  QueueProvider
	config Config

	current    *track.Track
	state      State
	position   time.Duration
	duration   time.Duration
	volume     float64
	unmuted    float64 // volume restored by ToggleMute
	repeat     RepeatMode
	lastError  *Failure
	generation uint64

	eventCh chan Event
	closed  bool
}

// NewEngine creates a new playback engine driving output.
func NewEngine(output audio.Output, queue QueueProvider, config Config) *Engine {
	volume := config.DefaultVolume
	if volume <= 0 || volume > 1 {
		volume = DefaultVolume
	}
	config.DefaultVolume = volume

	e := &Engine{
		output:  output,
		queue:   queue,
		config:  config,
		state:   StateIdle,
		volume:  volume,
		unmuted: volume,
		eventCh: make(chan Event, 64),
	}
	output.SetVolume(volume)
	return e
}

// Events returns the event channel.
func (e *Engine) Events() <-chan Event {
	return e.eventCh
}

// Run pumps output signals into the engine until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	signals := e.output.Signals()
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			e.HandleSignal(sig)
		}
	}
}

// Snapshot returns the current transport state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Snapshot{
		State:      e.state,
		Position:   e.position,
		Duration:   e.duration,
		Volume:     e.volume,
		Muted:      e.volume == 0,
		Repeat:     e.repeat,
		Generation: e.generation,
	}
	if e.current != nil {
		t := *e.current
		s.CurrentTrack = &t
	}
	if e.lastError != nil {
		f := *e.lastError
		s.LastError = &f
	}
	return s
}

// Play loads t and starts it once the output reports it can play.
// It returns immediately with the engine in the loading state.
func (e *Engine) Play(t track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.playLocked(t)
}

// TogglePlayPause flips between playing and paused.
// From idle or errored it reloads the current track.
func (e *Engine) TogglePlayPause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ErrNoTrack
	}

	switch e.state {
	case StatePlaying:
		e.output.Pause()
		e.state = StatePaused
		e.sendEventLocked(EventStateChanged)
	case StatePaused:
		if err := e.output.Play(); err != nil {
			e.failLocked(PlaybackFailure, err)
			return errors.Wrap(err, "failed to resume")
		}
		e.state = StatePlaying
		e.lastError = nil
		e.sendEventLocked(EventStateChanged)
	case StateLoading:
		return ErrNotReady
	default:
		e.playLocked(*e.current)
	}
	return nil
}

// Seek moves to percentage (clamped to [0,100]) of the known duration.
func (e *Engine) Seek(percentage float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ErrNoTrack
	}
	if e.duration <= 0 {
		return ErrDurationUnknown
	}
	if math.IsNaN(percentage) {
		return ErrInvalidPosition
	}

	pct := lo.Clamp(percentage, 0, 100)
	pos := time.Duration(float64(e.duration) * pct / 100)
	if err := e.output.SetPosition(pos); err != nil {
		e.failLocked(PlaybackFailure, err)
		return errors.Wrap(err, "failed to seek")
	}
	e.position = pos
	e.sendEventLocked(EventPositionChanged)
	return nil
}

// SetVolume sets the volume, clamped to [0,1]. NaN leaves it unchanged.
func (e *Engine) SetVolume(level float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if math.IsNaN(level) {
		zlog.Debug().Msg("playback: ignoring NaN volume")
		return
	}
	e.setVolumeLocked(level)
}

// ToggleMute switches between silence and the last audible volume.
func (e *Engine) ToggleMute() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.volume > 0 {
		e.unmuted = e.volume
		e.setVolumeLocked(0)
		return
	}
	restore := e.unmuted
	if restore <= 0 {
		restore = e.config.DefaultVolume
	}
	e.setVolumeLocked(restore)
}

func (e *Engine) setVolumeLocked(level float64) {
	e.volume = lo.Clamp(level, 0, 1)
	if e.volume > 0 {
		e.unmuted = e.volume
	}
	e.output.SetVolume(e.volume)
	e.sendEventLocked(EventVolumeChanged)
}

// Next plays the track after the current one, wrapping to the first.
func (e *Engine) Next() error {
	q := e.queue.CurrentQueue()

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.nextLocked(q)
}

// Previous plays the track before the current one, wrapping to the last.
// Without a current track in the queue there is nothing to step back from.
func (e *Engine) Previous() error {
	q := e.queue.CurrentQueue()

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(q) == 0 {
		return ErrQueueEmpty
	}
	idx := e.indexLocked(q)
	switch idx {
	case -1:
		return ErrNotInQueue
	case 0:
		idx = len(q)
	}
	e.playLocked(q[idx-1])
	return nil
}

// Stop cancels the current load or playback and returns to idle.
// The current track is kept.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ErrNoTrack
	}
	e.stopLocked()
	return nil
}

// DismissError clears lastError. The playback state is unchanged.
func (e *Engine) DismissError() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastError == nil {
		return
	}
	e.lastError = nil
	e.sendEventLocked(EventErrorDismissed)
}

// CycleRepeat advances the repeat mode and returns the new mode.
func (e *Engine) CycleRepeat() RepeatMode {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.repeat = e.repeat.Next()
	e.sendEventLocked(EventRepeatChanged)
	return e.repeat
}

// SetRepeat sets the repeat mode.
func (e *Engine) SetRepeat(m RepeatMode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.repeat = m
	e.sendEventLocked(EventRepeatChanged)
}

// HandleSignal applies an output signal.
func (e *Engine) HandleSignal(sig audio.Signal) {
	var q []track.Track
	if sig.Kind == audio.SignalEnded {
		q = e.queue.CurrentQueue()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if sig.Generation != e.generation {
		zlog.Debug().Msgf("playback: ignoring %s from superseded load %d (current %d)",
			sig.Kind, sig.Generation, e.generation)
		return
	}

	switch sig.Kind {
	case audio.SignalLoadStart:
		// Already loading since Play.
	case audio.SignalCanPlay:
		if e.state != StateLoading {
			return
		}
		if err := e.output.Play(); err != nil {
			e.failLocked(PlaybackFailure, err)
			return
		}
		e.state = StatePlaying
		zlog.Info().Msgf("playback: playing %s - %s", e.current.Artist, e.current.Title)
		e.sendEventLocked(EventTrackStarted)
	case audio.SignalTimeUpdate:
		e.position = sig.Position
		if e.duration > 0 && e.position > e.duration {
			e.position = e.duration
		}
		e.sendEventLocked(EventPositionChanged)
	case audio.SignalDurationChange:
		e.duration = sig.Duration
		if e.duration > 0 && e.position > e.duration {
			e.position = e.duration
		}
		e.sendEventLocked(EventPositionChanged)
	case audio.SignalEnded:
		e.onTrackEndLocked(q)
	case audio.SignalError:
		kind := PlaybackFailure
		if e.state == StateLoading {
			kind = LoadFailure
		}
		e.failLocked(kind, sig.Err)
	}
}

// Close releases the audio output and closes the event channel.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.generation++
	close(e.eventCh)
	e.mu.Unlock()

	return e.output.Close()
}

// playLocked starts a new load generation for t.
// Must be called with lock held.
func (e *Engine) playLocked(t track.Track) {
	e.generation++
	e.current = &t
	e.position = 0
	e.duration = 0
	e.lastError = nil
	e.state = StateLoading

	zlog.Debug().Msgf("playback: loading %s (generation %d)", t.ID, e.generation)
	e.output.Load(e.generation, t.AudioURL)
	e.sendEventLocked(EventTrackLoading)
}

func (e *Engine) nextLocked(q []track.Track) error {
	if len(q) == 0 {
		return ErrQueueEmpty
	}
	idx := e.indexLocked(q)
	e.playLocked(q[(idx+1)%len(q)])
	return nil
}

// indexLocked returns the current track's index in q, or -1.
func (e *Engine) indexLocked(q []track.Track) int {
	if e.current == nil {
		return -1
	}
	id := e.current.ID
	_, idx, _ := lo.FindIndexOf(q, func(t track.Track) bool { return t.ID == id })
	return idx
}

// onTrackEndLocked applies the completion policy.
func (e *Engine) onTrackEndLocked(q []track.Track) {
	if e.state != StatePlaying {
		return
	}
	e.position = e.duration
	e.sendEventLocked(EventTrackEnded)

	if e.repeat == RepeatOne {
		e.position = 0
		if err := e.output.SetPosition(0); err != nil {
			e.failLocked(PlaybackFailure, err)
			return
		}
		if err := e.output.Play(); err != nil {
			e.failLocked(PlaybackFailure, err)
			return
		}
		e.sendEventLocked(EventTrackStarted)
		return
	}

	if len(q) == 0 {
		e.stopLocked()
		return
	}

	if e.repeat == RepeatNone && !e.config.WrapOnRepeatNone {
		if idx := e.indexLocked(q); idx == len(q)-1 {
			zlog.Info().Msg("playback: reached the end of the queue")
			e.stopLocked()
			return
		}
	}

	_ = e.nextLocked(q)
}

// stopLocked invalidates the current generation and goes idle.
func (e *Engine) stopLocked() {
	e.generation++
	e.output.Pause()
	e.position = 0
	e.state = StateIdle
	e.sendEventLocked(EventStateChanged)
}

// failLocked records a failure and enters the errored state.
func (e *Engine) failLocked(kind ErrorKind, err error) {
	title := "track"
	if e.current != nil {
		title = fmt.Sprintf("%q", e.current.Title)
	}

	var msg string
	switch kind {
	case LoadFailure:
		msg = fmt.Sprintf("Could not load %s", title)
	default:
		msg = fmt.Sprintf("Could not play %s", title)
	}
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}

	zlog.Error().Err(err).Msgf("playback: %s", kind)
	e.output.Pause()
	e.state = StateErrored
	e.lastError = &Failure{Kind: kind, Message: msg}
	e.sendEventLocked(EventError)
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (e *Engine) sendEventLocked(t EventType) {
	if e.closed {
		return
	}
	ev := Event{Type: t, State: e.state, Generation: e.generation}
	if e.current != nil {
		c := *e.current
		ev.Track = &c
	}
	select {
	case e.eventCh <- ev:
	default:
		// Channel full, drop event
	}
}
