package playback

import "github.com/osa030/sidebox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackLoading    EventType = iota // A new load started
	EventTrackStarted                     // Track became audible (first play or repeat)
	EventStateChanged                     // Pause, resume or stop
	EventPositionChanged                  // Position or duration changed
	EventVolumeChanged                    // Volume changed
	EventRepeatChanged                    // Repeat mode changed
	EventTrackEnded                       // Track played to completion
	EventError                            // Load or playback failed
	EventErrorDismissed                   // lastError was cleared
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackLoading:
		return "track_loading"
	case EventTrackStarted:
		return "track_started"
	case EventStateChanged:
		return "state_changed"
	case EventPositionChanged:
		return "position_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventRepeatChanged:
		return "repeat_changed"
	case EventTrackEnded:
		return "track_ended"
	case EventError:
		return "error"
	case EventErrorDismissed:
		return "error_dismissed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type       EventType
	Track      *track.Track // Current track (nil when none)
	State      State        // Playback state after the event
	Generation uint64       // Load generation the event belongs to
}
