// Package playback provides the playback engine that drives the audio output.
package playback

import "fmt"

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // Nothing loaded, or stopped
	StateLoading              // Source is loading
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
	StateErrored              // Load or playback failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// RepeatMode controls what happens when a track ends.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota // Advance, stop after the last track
	RepeatOne                    // Restart the same track
	RepeatAll                    // Advance, wrap to the first track
)

// Next returns the mode that follows m in the none, one, all cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatOne
	case RepeatOne:
		return RepeatAll
	default:
		return RepeatNone
	}
}

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatNone:
		return "none"
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "unknown"
	}
}

// ErrorKind classifies failures.
type ErrorKind int

const (
	LoadFailure        ErrorKind = iota // Source could not be fetched or decoded
	PlaybackFailure                     // Output rejected a play or resume
	PersistenceFailure                  // Favorites write failed; logged only
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case LoadFailure:
		return "load_failure"
	case PlaybackFailure:
		return "playback_failure"
	case PersistenceFailure:
		return "persistence_failure"
	default:
		return "unknown"
	}
}

// Failure is the error descriptor surfaced as lastError.
type Failure struct {
	Kind    ErrorKind
	Message string // Human-readable
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}
