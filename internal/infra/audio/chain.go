package audio

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
)

// resampleQuality is the interpolation quality passed to beep.Resample.
const resampleQuality = 4

// playbackChain converts s to the output sample rate. Equal rates skip the
// resampler.
func playbackChain(s beep.Streamer, from, to beep.SampleRate) beep.Streamer {
	if from == to {
		return s
	}
	return beep.Resample(resampleQuality, from, to, s)
}

// seekChain moves s to d, clamped to the stream, and returns a new chain
// starting there. A resampler that has reached the end never streams again,
// so the chain must be rebuilt after every seek.
func seekChain(s beep.StreamSeeker, from, to beep.SampleRate, d time.Duration) (beep.Streamer, error) {
	n := from.N(d)
	if n < 0 {
		n = 0
	}
	if last := s.Len() - 1; n > last && last >= 0 {
		n = last
	}
	if err := s.Seek(n); err != nil {
		return nil, errors.Wrap(err, "failed to seek")
	}
	return playbackChain(s, from, to), nil
}
