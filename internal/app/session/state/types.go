// Package state provides the session's view input state.
package state

// Inputs are the user-controlled inputs the queue is derived from.
type Inputs struct {
	ActivePlaylist string
	SearchQuery    string
	Shuffle        bool
}
