//go:build (linux && cgo) || windows || darwin

package audio

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"
)

// Available indicates whether speaker output is supported in this build.
const Available = true

// SpeakerOutput plays audio through the system speaker using beep.
type SpeakerOutput struct {
	opts       Options
	client     *http.Client
	sampleRate beep.SampleRate
	signals    chan Signal
	closeCh    chan struct{}
	wg         sync.WaitGroup

	mu         sync.Mutex
	generation uint64
	cancelLoad context.CancelFunc
	streamer   beep.StreamSeekCloser
	format     beep.Format
	ctrl       *beep.Ctrl
	volume     *effects.Volume
	level      float64
	queued     bool // the stream is in the speaker mixer
	closed     bool
}

// NewSpeakerOutput initializes the speaker and returns an output.
func NewSpeakerOutput(opts Options) (*SpeakerOutput, error) {
	opts = opts.withDefaults()
	sr := beep.SampleRate(opts.SampleRate)

	if err := speaker.Init(sr, sr.N(opts.BufferSize)); err != nil {
		return nil, errors.Wrap(err, "failed to initialize speaker")
	}

	o := &SpeakerOutput{
		opts:       opts,
		client:     &http.Client{Timeout: opts.HTTPTimeout},
		sampleRate: sr,
		signals:    make(chan Signal, 64),
		closeCh:    make(chan struct{}),
		level:      1,
	}

	o.wg.Add(1)
	go o.tickLoop()

	zlog.Info().Msgf("audio: speaker initialized at %d Hz", opts.SampleRate)
	return o, nil
}

// Signals returns the signal channel. It is never closed.
func (o *SpeakerOutput) Signals() <-chan Signal {
	return o.signals
}

// Load replaces the current source and starts loading the new one.
func (o *SpeakerOutput) Load(generation uint64, source string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.stopLocked()
	o.generation = generation
	ctx, cancel := context.WithCancel(context.Background())
	o.cancelLoad = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go o.load(ctx, generation, source)
}

func (o *SpeakerOutput) load(ctx context.Context, generation uint64, source string) {
	defer o.wg.Done()

	o.emit(Signal{Kind: SignalLoadStart, Generation: generation})

	data, err := Fetch(ctx, o.client, o.opts.BaseDir, source)
	if err != nil {
		if ctx.Err() == nil {
			o.emit(Signal{Kind: SignalError, Generation: generation, Err: err})
		}
		return
	}
	streamer, format, err := Decode(source, data)
	if err != nil {
		o.emit(Signal{Kind: SignalError, Generation: generation, Err: err})
		return
	}

	o.mu.Lock()
	if o.closed || o.generation != generation {
		o.mu.Unlock()
		streamer.Close()
		zlog.Debug().Msgf("audio: discarded superseded load %d", generation)
		return
	}

	o.streamer = streamer
	o.format = format
	o.ctrl = &beep.Ctrl{Streamer: playbackChain(streamer, format.SampleRate, o.sampleRate), Paused: true}
	o.volume = &effects.Volume{Streamer: o.ctrl, Base: 2}
	o.applyVolumeLocked()
	duration := format.SampleRate.D(streamer.Len())
	o.mu.Unlock()

	o.emit(Signal{Kind: SignalDurationChange, Generation: generation, Duration: duration})
	o.emit(Signal{Kind: SignalCanPlay, Generation: generation})
}

// Play starts or resumes output of the loaded source.
func (o *SpeakerOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctrl == nil {
		return errors.New("no source loaded")
	}

	if !o.queued {
		generation := o.generation
		speaker.Play(beep.Seq(o.volume, beep.Callback(func() {
			// Runs on the speaker goroutine; finish elsewhere to avoid
			// lock inversion with o.mu.
			go o.finished(generation)
		})))
		o.queued = true
	}

	speaker.Lock()
	o.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

// Pause pauses output.
func (o *SpeakerOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctrl != nil {
		speaker.Lock()
		o.ctrl.Paused = true
		speaker.Unlock()
	}
}

// SetPosition relocates the loaded source.
func (o *SpeakerOutput) SetPosition(d time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.streamer == nil || o.ctrl == nil {
		return errors.New("no source loaded")
	}

	speaker.Lock()
	defer speaker.Unlock()

	chain, err := seekChain(o.streamer, o.format.SampleRate, o.sampleRate, d)
	if err != nil {
		return err
	}
	o.ctrl.Streamer = chain
	return nil
}

// SetVolume sets the output level in [0,1].
func (o *SpeakerOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.level = math.Max(0, math.Min(1, v))
	o.applyVolumeLocked()
}

// applyVolumeLocked maps the linear level onto the base-2 volume effect.
func (o *SpeakerOutput) applyVolumeLocked() {
	if o.volume == nil {
		return
	}
	speaker.Lock()
	defer speaker.Unlock()

	o.volume.Silent = o.level <= 0
	if o.level > 0 {
		o.volume.Volume = math.Log2(o.level)
	}
}

// Close stops playback and releases the speaker.
func (o *SpeakerOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.stopLocked()
	o.mu.Unlock()

	close(o.closeCh)
	o.wg.Wait()
	speaker.Close()
	return nil
}

// stopLocked drops the current source (must be called with lock held).
func (o *SpeakerOutput) stopLocked() {
	if o.cancelLoad != nil {
		o.cancelLoad()
		o.cancelLoad = nil
	}
	if o.queued {
		speaker.Clear()
		o.queued = false
	}
	if o.streamer != nil {
		o.streamer.Close()
		o.streamer = nil
	}
	o.ctrl = nil
	o.volume = nil
}

func (o *SpeakerOutput) finished(generation uint64) {
	o.mu.Lock()
	if o.generation != generation || o.closed {
		o.mu.Unlock()
		return
	}
	// The mixer dropped the sequence; a later Play queues it again.
	o.queued = false
	if o.ctrl != nil {
		speaker.Lock()
		o.ctrl.Paused = true
		speaker.Unlock()
	}
	o.mu.Unlock()

	o.emit(Signal{Kind: SignalEnded, Generation: generation})
}

func (o *SpeakerOutput) tickLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.opts.TimeUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.closeCh:
			return
		case <-ticker.C:
			o.mu.Lock()
			if o.streamer == nil || o.ctrl == nil || !o.queued {
				o.mu.Unlock()
				continue
			}
			speaker.Lock()
			paused := o.ctrl.Paused
			pos := o.streamer.Position()
			speaker.Unlock()
			generation := o.generation
			position := o.format.SampleRate.D(pos)
			o.mu.Unlock()

			if !paused {
				o.emitLossy(Signal{Kind: SignalTimeUpdate, Generation: generation, Position: position})
			}
		}
	}
}

// emit delivers s unless the output is closed.
func (o *SpeakerOutput) emit(s Signal) {
	select {
	case o.signals <- s:
	case <-o.closeCh:
	}
}

// emitLossy delivers s if there is room.
func (o *SpeakerOutput) emitLossy(s Signal) {
	select {
	case o.signals <- s:
	default:
	}
}
