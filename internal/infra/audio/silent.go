package audio

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// SilentOutput is an Output that decodes sources but produces no sound.
// Position advances with the wall clock while playing. It backs builds
// without speaker support and the --mute-output flag.
type SilentOutput struct {
	opts    Options
	client  *http.Client
	signals chan Signal
	closeCh chan struct{}
	wg      sync.WaitGroup
	now     func() time.Time

	mu         sync.Mutex
	generation uint64
	cancelLoad context.CancelFunc
	loaded     bool
	duration   time.Duration
	offset     time.Duration // position at startedAt
	startedAt  time.Time
	playing    bool
	closed     bool
}

// NewSilentOutput creates a silent output.
func NewSilentOutput(opts Options) *SilentOutput {
	opts = opts.withDefaults()
	o := &SilentOutput{
		opts:    opts,
		client:  &http.Client{Timeout: opts.HTTPTimeout},
		signals: make(chan Signal, 64),
		closeCh: make(chan struct{}),
		now:     time.Now,
	}

	o.wg.Add(1)
	go o.tickLoop()
	return o
}

// Signals returns the signal channel. It is never closed.
func (o *SilentOutput) Signals() <-chan Signal {
	return o.signals
}

// Load replaces the current source and starts loading the new one.
func (o *SilentOutput) Load(generation uint64, source string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if o.cancelLoad != nil {
		o.cancelLoad()
	}
	o.generation = generation
	o.loaded = false
	o.playing = false
	o.offset = 0
	o.duration = 0
	ctx, cancel := context.WithCancel(context.Background())
	o.cancelLoad = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go o.load(ctx, generation, source)
}

func (o *SilentOutput) load(ctx context.Context, generation uint64, source string) {
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
	duration := format.SampleRate.D(streamer.Len())
	streamer.Close()

	o.mu.Lock()
	if o.closed || o.generation != generation {
		o.mu.Unlock()
		zlog.Debug().Msgf("audio: discarded superseded load %d", generation)
		return
	}
	o.loaded = true
	o.duration = duration
	o.mu.Unlock()

	o.emit(Signal{Kind: SignalDurationChange, Generation: generation, Duration: duration})
	o.emit(Signal{Kind: SignalCanPlay, Generation: generation})
}

// Play starts or resumes the clock.
func (o *SilentOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.loaded {
		return errors.New("no source loaded")
	}
	if !o.playing {
		if o.offset >= o.duration {
			o.offset = 0
		}
		o.startedAt = o.now()
		o.playing = true
	}
	return nil
}

// Pause stops the clock.
func (o *SilentOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.playing {
		o.offset = o.positionLocked()
		o.playing = false
	}
}

// SetPosition relocates the clock.
func (o *SilentOutput) SetPosition(d time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.loaded {
		return errors.New("no source loaded")
	}
	o.offset = max(0, min(d, o.duration))
	o.startedAt = o.now()
	return nil
}

// SetVolume is accepted and ignored.
func (o *SilentOutput) SetVolume(v float64) {}

// Close stops the clock.
func (o *SilentOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	if o.cancelLoad != nil {
		o.cancelLoad()
	}
	o.mu.Unlock()

	close(o.closeCh)
	o.wg.Wait()
	return nil
}

func (o *SilentOutput) positionLocked() time.Duration {
	if !o.playing {
		return o.offset
	}
	return min(o.offset+o.now().Sub(o.startedAt), o.duration)
}

func (o *SilentOutput) tickLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.opts.TimeUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.closeCh:
			return
		case <-ticker.C:
			o.mu.Lock()
			if !o.playing {
				o.mu.Unlock()
				continue
			}
			generation := o.generation
			position := o.positionLocked()
			ended := position >= o.duration
			if ended {
				o.offset = o.duration
				o.playing = false
			}
			o.mu.Unlock()

			if ended {
				o.emit(Signal{Kind: SignalEnded, Generation: generation})
			} else {
				o.emitLossy(Signal{Kind: SignalTimeUpdate, Generation: generation, Position: position})
			}
		}
	}
}

func (o *SilentOutput) emit(s Signal) {
	select {
	case o.signals <- s:
	case <-o.closeCh:
	}
}

func (o *SilentOutput) emitLossy(s Signal) {
	select {
	case o.signals <- s:
	default:
	}
}
