//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"time"
)

// Available indicates whether speaker output is supported in this build.
// Speaker output requires cgo for the native sound libraries on Linux.
const Available = false

// SpeakerOutput is unavailable in this build.
type SpeakerOutput struct{}

// NewSpeakerOutput always fails in this build.
func NewSpeakerOutput(opts Options) (*SpeakerOutput, error) {
	return nil, ErrAudioUnavailable
}

// Signals returns nil in this build.
func (o *SpeakerOutput) Signals() <-chan Signal { return nil }

// Load is a no-op in this build.
func (o *SpeakerOutput) Load(generation uint64, source string) {}

// Play always fails in this build.
func (o *SpeakerOutput) Play() error { return ErrAudioUnavailable }

// Pause is a no-op in this build.
func (o *SpeakerOutput) Pause() {}

// SetPosition always fails in this build.
func (o *SpeakerOutput) SetPosition(d time.Duration) error { return ErrAudioUnavailable }

// SetVolume is a no-op in this build.
func (o *SpeakerOutput) SetVolume(v float64) {}

// Close is a no-op in this build.
func (o *SpeakerOutput) Close() error { return nil }
