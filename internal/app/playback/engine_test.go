package playback

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/sidebox/internal/domain/track"
	"github.com/osa030/sidebox/internal/infra/audio"
)

type loadCall struct {
	generation uint64
	source     string
}

// fakeOutput records calls and lets tests inject signals.
type fakeOutput struct {
	mu        sync.Mutex
	loads     []loadCall
	plays     int
	pauses    int
	positions []time.Duration
	volume    float64
	playErr   error
	seekErr   error
	closed    bool
	signals   chan audio.Signal
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{signals: make(chan audio.Signal, 16)}
}

func (f *fakeOutput) Load(generation uint64, source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, loadCall{generation, source})
}

func (f *fakeOutput) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return f.playErr
}

func (f *fakeOutput) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeOutput) SetPosition(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seekErr != nil {
		return f.seekErr
	}
	f.positions = append(f.positions, d)
	return nil
}

func (f *fakeOutput) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeOutput) Signals() <-chan audio.Signal { return f.signals }

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeOutput) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays
}

// staticQueue is a QueueProvider over a fixed slice.
type staticQueue struct {
	mu     sync.Mutex
	tracks []track.Track
}

func (q *staticQueue) CurrentQueue() []track.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]track.Track(nil), q.tracks...)
}

func (q *staticQueue) set(tracks []track.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = tracks
}

func makeTracks(n int) []track.Track {
	ids := []string{"a", "b", "c", "d", "e", "f"}
	tracks := make([]track.Track, n)
	for i := range n {
		tracks[i] = track.Track{
			ID:       ids[i],
			Title:    "Track " + ids[i],
			AudioURL: "/audio/" + ids[i] + ".mp3",
			Duration: 3 * time.Minute,
		}
	}
	return tracks
}

func newTestEngine(t *testing.T, n int, cfg Config) (*Engine, *fakeOutput, *staticQueue) {
	t.Helper()
	out := newFakeOutput()
	q := &staticQueue{tracks: makeTracks(n)}
	return NewEngine(out, q, cfg), out, q
}

// ready completes the current load with the given duration.
func ready(e *Engine, d time.Duration) {
	gen := e.Snapshot().Generation
	e.HandleSignal(audio.Signal{Kind: audio.SignalLoadStart, Generation: gen})
	e.HandleSignal(audio.Signal{Kind: audio.SignalDurationChange, Generation: gen, Duration: d})
	e.HandleSignal(audio.Signal{Kind: audio.SignalCanPlay, Generation: gen})
}

// end simulates the output reaching the end of the current track.
func end(e *Engine) {
	e.HandleSignal(audio.Signal{Kind: audio.SignalEnded, Generation: e.Snapshot().Generation})
}

func currentID(e *Engine) string {
	s := e.Snapshot()
	if s.CurrentTrack == nil {
		return ""
	}
	return s.CurrentTrack.ID
}

func TestEngine_PlayLifecycle(t *testing.T) {
	e, out, q := newTestEngine(t, 3, Config{})
	tracks := q.CurrentQueue()

	s := e.Snapshot()
	assert.Equal(t, StateIdle, s.State)
	assert.Nil(t, s.CurrentTrack)
	assert.InDelta(t, DefaultVolume, s.Volume, 1e-9)
	assert.InDelta(t, DefaultVolume, out.volume, 1e-9)

	e.Play(tracks[1])
	s = e.Snapshot()
	assert.Equal(t, StateLoading, s.State)
	assert.Equal(t, "b", s.CurrentTrack.ID)
	assert.Equal(t, []loadCall{{1, "/audio/b.mp3"}}, out.loads)
	assert.Equal(t, 0, out.playCount(), "output starts only when ready")

	ready(e, 2*time.Minute)
	s = e.Snapshot()
	assert.Equal(t, StatePlaying, s.State)
	assert.Equal(t, 2*time.Minute, s.Duration)
	assert.Equal(t, 1, out.playCount())
}

func TestEngine_GenerationToken(t *testing.T) {
	e, out, q := newTestEngine(t, 3, Config{})
	tracks := q.CurrentQueue()

	e.Play(tracks[0])
	genA := e.Snapshot().Generation
	e.Play(tracks[1])
	genB := e.Snapshot().Generation
	require.Greater(t, genB, genA)

	// The superseded load finishes late.
	e.HandleSignal(audio.Signal{Kind: audio.SignalDurationChange, Generation: genA, Duration: time.Minute})
	e.HandleSignal(audio.Signal{Kind: audio.SignalCanPlay, Generation: genA})
	e.HandleSignal(audio.Signal{Kind: audio.SignalError, Generation: genA, Err: errors.New("late")})
	e.HandleSignal(audio.Signal{Kind: audio.SignalEnded, Generation: genA})

	s := e.Snapshot()
	assert.Equal(t, "b", s.CurrentTrack.ID)
	assert.Equal(t, StateLoading, s.State)
	assert.Zero(t, s.Duration)
	assert.Nil(t, s.LastError)
	assert.Equal(t, 0, out.playCount())

	ready(e, time.Minute)
	assert.Equal(t, StatePlaying, e.Snapshot().State)
	assert.Equal(t, "b", currentID(e))
}

func TestEngine_NextWraparound(t *testing.T) {
	for n := 1; n <= 5; n++ {
		e, _, q := newTestEngine(t, n, Config{})
		tracks := q.CurrentQueue()

		start := tracks[n/2]
		e.Play(start)
		for range n {
			require.NoError(t, e.Next())
		}
		assert.Equal(t, start.ID, currentID(e), "queue length %d", n)
	}
}

func TestEngine_PreviousWraps(t *testing.T) {
	e, _, q := newTestEngine(t, 3, Config{})
	tracks := q.CurrentQueue()

	e.Play(tracks[0])
	require.NoError(t, e.Previous())
	assert.Equal(t, "c", currentID(e))
	require.NoError(t, e.Previous())
	assert.Equal(t, "b", currentID(e))
}

func TestEngine_NavigationOutsideQueue(t *testing.T) {
	tests := []struct {
		name     string
		navigate func(e *Engine) error
		wantErr  error
		expected string
	}{
		{name: "next from no track", navigate: (*Engine).Next, expected: "a"},
		{name: "previous from no track", navigate: (*Engine).Previous, wantErr: ErrNotInQueue, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, out, _ := newTestEngine(t, 3, Config{})
			err := tt.navigate(e)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, out.loads)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, currentID(e))
		})
	}

	// A current track filtered out of the queue.
	e, out, _ := newTestEngine(t, 3, Config{})
	e.Play(track.Track{ID: "z"})
	require.NoError(t, e.Next())
	assert.Equal(t, "a", currentID(e))

	e.Play(track.Track{ID: "z"})
	ready(e, time.Minute)
	loads := len(out.loads)
	assert.ErrorIs(t, e.Previous(), ErrNotInQueue)
	assert.Equal(t, "z", currentID(e))
	assert.Equal(t, StatePlaying, e.Snapshot().State, "previous leaves playback alone")
	assert.Len(t, out.loads, loads)
}

func TestEngine_EmptyQueueNavigationIsNoop(t *testing.T) {
	e, out, q := newTestEngine(t, 2, Config{})
	e.Play(q.CurrentQueue()[0])
	ready(e, time.Minute)
	q.set(nil)

	assert.ErrorIs(t, e.Next(), ErrQueueEmpty)
	assert.ErrorIs(t, e.Previous(), ErrQueueEmpty)

	s := e.Snapshot()
	assert.Equal(t, "a", s.CurrentTrack.ID)
	assert.Equal(t, StatePlaying, s.State, "an emptied queue does not interrupt playback")
	assert.Len(t, out.loads, 1)
}

func TestEngine_RepeatOneRestarts(t *testing.T) {
	e, out, q := newTestEngine(t, 3, Config{})
	e.SetRepeat(RepeatOne)
	e.Play(q.CurrentQueue()[1])
	ready(e, time.Minute)
	e.HandleSignal(audio.Signal{Kind: audio.SignalTimeUpdate, Generation: e.Snapshot().Generation, Position: 59 * time.Second})

	gen := e.Snapshot().Generation
	end(e)

	s := e.Snapshot()
	assert.Equal(t, "b", s.CurrentTrack.ID)
	assert.Zero(t, s.Position)
	assert.Equal(t, StatePlaying, s.State)
	assert.Equal(t, gen, s.Generation, "restart reuses the loaded source")
	assert.Equal(t, []time.Duration{0}, out.positions)
	assert.Equal(t, 2, out.playCount())
}

func TestEngine_RepeatAllAdvancesAndWraps(t *testing.T) {
	e, _, q := newTestEngine(t, 3, Config{})
	e.SetRepeat(RepeatAll)
	e.Play(q.CurrentQueue()[0])

	var sequence []string
	for range 3 {
		ready(e, time.Minute)
		end(e)
		sequence = append(sequence, currentID(e))
	}

	assert.Equal(t, []string{"b", "c", "a"}, sequence)
}

func TestEngine_RepeatNone(t *testing.T) {
	t.Run("advances mid queue", func(t *testing.T) {
		e, _, q := newTestEngine(t, 3, Config{})
		e.Play(q.CurrentQueue()[1])
		ready(e, time.Minute)
		end(e)
		assert.Equal(t, "c", currentID(e))
		assert.Equal(t, StateLoading, e.Snapshot().State)
	})

	t.Run("stops after the last track", func(t *testing.T) {
		e, out, q := newTestEngine(t, 3, Config{})
		e.Play(q.CurrentQueue()[2])
		ready(e, time.Minute)
		end(e)

		s := e.Snapshot()
		assert.Equal(t, StateIdle, s.State)
		assert.Equal(t, "c", s.CurrentTrack.ID)
		assert.Zero(t, s.Position)
		assert.Len(t, out.loads, 1)
	})

	t.Run("wraps when configured", func(t *testing.T) {
		e, _, q := newTestEngine(t, 3, Config{WrapOnRepeatNone: true})
		e.Play(q.CurrentQueue()[2])
		ready(e, time.Minute)
		end(e)
		assert.Equal(t, "a", currentID(e))
	})
}

func TestEngine_EndedWithEmptyQueueStops(t *testing.T) {
	e, _, q := newTestEngine(t, 2, Config{})
	e.SetRepeat(RepeatAll)
	e.Play(q.CurrentQueue()[0])
	ready(e, time.Minute)
	q.set(nil)

	end(e)

	s := e.Snapshot()
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, "a", s.CurrentTrack.ID)
}

func TestEngine_VolumeClamps(t *testing.T) {
	tests := []struct {
		level    float64
		expected float64
	}{
		{-0.3, 0},
		{1.7, 1},
		{0.25, 0.25},
		{0, 0},
		{1, 1},
		{math.Inf(1), 1},
		{math.Inf(-1), 0},
	}

	for _, tt := range tests {
		e, out, _ := newTestEngine(t, 1, Config{})
		e.SetVolume(tt.level)
		assert.InDelta(t, tt.expected, e.Snapshot().Volume, 1e-9, "SetVolume(%v)", tt.level)
		assert.InDelta(t, tt.expected, out.volume, 1e-9, "forwarded immediately")
	}

	e, out, _ := newTestEngine(t, 1, Config{DefaultVolume: 0.4})
	e.SetVolume(math.NaN())
	assert.InDelta(t, 0.4, e.Snapshot().Volume, 1e-9, "NaN leaves the volume unchanged")
	assert.InDelta(t, 0.4, out.volume, 1e-9)
	assert.False(t, math.IsNaN(out.volume))
}

func TestEngine_ToggleMute(t *testing.T) {
	e, out, _ := newTestEngine(t, 1, Config{DefaultVolume: 0.5})

	e.ToggleMute()
	assert.True(t, e.Snapshot().Muted)
	assert.Zero(t, out.volume)

	e.ToggleMute()
	assert.InDelta(t, 0.5, e.Snapshot().Volume, 1e-9)

	e.SetVolume(0.9)
	e.ToggleMute()
	e.ToggleMute()
	assert.InDelta(t, 0.9, e.Snapshot().Volume, 1e-9, "restores the last audible volume")

	e.SetVolume(0)
	e.ToggleMute()
	assert.InDelta(t, 0.9, e.Snapshot().Volume, 1e-9)
}

func TestEngine_LoadErrorPolicy(t *testing.T) {
	e, out, q := newTestEngine(t, 2, Config{})
	e.Play(q.CurrentQueue()[0])
	e.HandleSignal(audio.Signal{Kind: audio.SignalError, Generation: e.Snapshot().Generation, Err: errors.New("404")})

	s := e.Snapshot()
	assert.Equal(t, StateErrored, s.State)
	require.NotNil(t, s.LastError)
	assert.Equal(t, LoadFailure, s.LastError.Kind)
	assert.Contains(t, s.LastError.Message, `"Track a"`)
	assert.Equal(t, 0, out.playCount(), "no further playback attempts")

	e.DismissError()
	s = e.Snapshot()
	assert.Nil(t, s.LastError)
	assert.Equal(t, StateErrored, s.State, "dismissing does not change the state")

	// A new play clears the error path.
	require.NoError(t, e.TogglePlayPause())
	s = e.Snapshot()
	assert.Equal(t, StateLoading, s.State)
	assert.Len(t, out.loads, 2)
}

func TestEngine_PlaybackFailure(t *testing.T) {
	e, out, q := newTestEngine(t, 2, Config{})
	out.playErr = errors.New("autoplay blocked")

	e.Play(q.CurrentQueue()[0])
	ready(e, time.Minute)

	s := e.Snapshot()
	assert.Equal(t, StateErrored, s.State)
	require.NotNil(t, s.LastError)
	assert.Equal(t, PlaybackFailure, s.LastError.Kind)

	// Signals mid-playback report playback failures.
	out.playErr = nil
	e.Play(q.CurrentQueue()[1])
	ready(e, time.Minute)
	e.HandleSignal(audio.Signal{Kind: audio.SignalError, Generation: e.Snapshot().Generation, Err: errors.New("device lost")})
	assert.Equal(t, PlaybackFailure, e.Snapshot().LastError.Kind)
}

func TestEngine_TogglePlayPause(t *testing.T) {
	e, out, q := newTestEngine(t, 2, Config{})

	assert.ErrorIs(t, e.TogglePlayPause(), ErrNoTrack)

	e.Play(q.CurrentQueue()[0])
	assert.ErrorIs(t, e.TogglePlayPause(), ErrNotReady)

	ready(e, time.Minute)
	require.NoError(t, e.TogglePlayPause())
	assert.Equal(t, StatePaused, e.Snapshot().State)
	assert.Equal(t, 1, out.pauses)

	require.NoError(t, e.TogglePlayPause())
	assert.Equal(t, StatePlaying, e.Snapshot().State)
	assert.Equal(t, 2, out.playCount())

	out.playErr = errors.New("rejected")
	require.NoError(t, e.TogglePlayPause())
	err := e.TogglePlayPause()
	assert.Error(t, err)
	assert.Equal(t, StateErrored, e.Snapshot().State)
}

func TestEngine_Seek(t *testing.T) {
	e, out, q := newTestEngine(t, 1, Config{})

	assert.ErrorIs(t, e.Seek(50), ErrNoTrack)

	e.Play(q.CurrentQueue()[0])
	assert.ErrorIs(t, e.Seek(50), ErrDurationUnknown)
	assert.Empty(t, out.positions)

	ready(e, 200*time.Second)

	tests := []struct {
		pct      float64
		expected time.Duration
	}{
		{50, 100 * time.Second},
		{-10, 0},
		{150, 200 * time.Second},
		{25, 50 * time.Second},
	}
	for _, tt := range tests {
		require.NoError(t, e.Seek(tt.pct))
		assert.Equal(t, tt.expected, e.Snapshot().Position, "Seek(%v)", tt.pct)
	}
	assert.Len(t, out.positions, 4)

	assert.ErrorIs(t, e.Seek(math.NaN()), ErrInvalidPosition)
	assert.Equal(t, 50*time.Second, e.Snapshot().Position, "NaN leaves the position unchanged")
	assert.Len(t, out.positions, 4, "NaN never reaches the output")
	assert.Equal(t, StatePlaying, e.Snapshot().State)

	out.seekErr = errors.New("not seekable")
	assert.Error(t, e.Seek(10))
	s := e.Snapshot()
	assert.Equal(t, 50*time.Second, s.Position)
	assert.Equal(t, StateErrored, s.State)
	require.NotNil(t, s.LastError)
	assert.Equal(t, PlaybackFailure, s.LastError.Kind)
}

func TestEngine_PositionNeverExceedsDuration(t *testing.T) {
	e, _, q := newTestEngine(t, 1, Config{})
	e.Play(q.CurrentQueue()[0])
	gen := e.Snapshot().Generation

	e.HandleSignal(audio.Signal{Kind: audio.SignalTimeUpdate, Generation: gen, Position: 5 * time.Second})
	assert.Equal(t, 5*time.Second, e.Snapshot().Position, "unclamped before duration is known")

	e.HandleSignal(audio.Signal{Kind: audio.SignalDurationChange, Generation: gen, Duration: 3 * time.Second})
	assert.Equal(t, 3*time.Second, e.Snapshot().Position)

	e.HandleSignal(audio.Signal{Kind: audio.SignalTimeUpdate, Generation: gen, Position: 4 * time.Second})
	assert.Equal(t, 3*time.Second, e.Snapshot().Position)
}

func TestEngine_StopDiscardsPendingSignals(t *testing.T) {
	e, out, q := newTestEngine(t, 2, Config{})

	assert.ErrorIs(t, e.Stop(), ErrNoTrack)

	e.Play(q.CurrentQueue()[0])
	gen := e.Snapshot().Generation
	require.NoError(t, e.Stop())

	e.HandleSignal(audio.Signal{Kind: audio.SignalCanPlay, Generation: gen})

	s := e.Snapshot()
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, "a", s.CurrentTrack.ID)
	assert.Equal(t, 0, out.playCount())
}

func TestEngine_CycleRepeat(t *testing.T) {
	e, _, _ := newTestEngine(t, 1, Config{})

	assert.Equal(t, RepeatOne, e.CycleRepeat())
	assert.Equal(t, RepeatAll, e.CycleRepeat())
	assert.Equal(t, RepeatNone, e.CycleRepeat())
}

func TestEngine_RunPumpsSignals(t *testing.T) {
	e, out, q := newTestEngine(t, 1, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	e.Play(q.CurrentQueue()[0])
	out.signals <- audio.Signal{Kind: audio.SignalCanPlay, Generation: 1}

	assert.Eventually(t, func() bool {
		return e.Snapshot().State == StatePlaying
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEngine_EventsAndClose(t *testing.T) {
	e, out, q := newTestEngine(t, 1, Config{})

	e.Play(q.CurrentQueue()[0])
	ready(e, time.Minute)

	var types []EventType
	for len(e.Events()) > 0 {
		types = append(types, (<-e.Events()).Type)
	}
	assert.Equal(t, []EventType{EventTrackLoading, EventPositionChanged, EventTrackStarted}, types)

	require.NoError(t, e.Close())
	assert.True(t, out.closed)
	_, ok := <-e.Events()
	assert.False(t, ok)

	// Late signals after close are ignored.
	e.HandleSignal(audio.Signal{Kind: audio.SignalEnded, Generation: 1})
	require.NoError(t, e.Close())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "errored", StateErrored.String())
	assert.Equal(t, "all", RepeatAll.String())
	assert.Equal(t, "load_failure", LoadFailure.String())
	assert.Equal(t, "track_started", EventTrackStarted.String())
	assert.Equal(t, "load_failure: boom", (&Failure{Kind: LoadFailure, Message: "boom"}).Error())
}
