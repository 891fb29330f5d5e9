// Package audio provides the audio-output primitive driven by the playback engine.
package audio

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrAudioUnavailable is returned when the build has no audio backend.
var ErrAudioUnavailable = errors.New("audio output is not available in this build")

// SignalKind identifies an asynchronous notification from an Output.
type SignalKind int

const (
	// SignalLoadStart is emitted when a load begins.
	SignalLoadStart SignalKind = iota
	// SignalCanPlay is emitted when the loaded source is ready.
	SignalCanPlay
	// SignalTimeUpdate carries the current position while playing.
	SignalTimeUpdate
	// SignalDurationChange carries the source duration once known.
	SignalDurationChange
	// SignalEnded is emitted when the source played to completion.
	SignalEnded
	// SignalError carries a load or playback error.
	SignalError
)

// String returns the string representation of the signal kind.
func (k SignalKind) String() string {
	switch k {
	case SignalLoadStart:
		return "loadstart"
	case SignalCanPlay:
		return "canplay"
	case SignalTimeUpdate:
		return "timeupdate"
	case SignalDurationChange:
		return "durationchange"
	case SignalEnded:
		return "ended"
	case SignalError:
		return "error"
	default:
		return fmt.Sprintf("SignalKind(%d)", int(k))
	}
}

// Signal is a notification from an Output.
// Generation is the value passed to the Load call the signal belongs to.
type Signal struct {
	Kind       SignalKind
	Generation uint64
	Position   time.Duration // SignalTimeUpdate
	Duration   time.Duration // SignalDurationChange
	Err        error         // SignalError
}

// Output is a platform media-playback facility.
//
// Load returns immediately; readiness and failure are reported through
// Signals. Only one source is loaded at a time: a new Load replaces the
// previous one.
type Output interface {
	Load(generation uint64, source string)
	Play() error
	Pause()
	SetPosition(d time.Duration) error
	SetVolume(v float64)
	Signals() <-chan Signal
	Close() error
}

// Options configures the speaker output.
type Options struct {
	BaseDir            string        // Directory local sources are resolved against
	SampleRate         int           // Speaker sample rate
	BufferSize         time.Duration // Speaker buffer length
	TimeUpdateInterval time.Duration // Position signal cadence while playing
	HTTPTimeout        time.Duration // Timeout for fetching remote sources
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = 44100
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 100 * time.Millisecond
	}
	if o.TimeUpdateInterval <= 0 {
		o.TimeUpdateInterval = 250 * time.Millisecond
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 30 * time.Second
	}
	return o
}
