// Package filter provides the filter chain that selects queue tracks.
package filter

import (
	"github.com/osa030/sidebox/internal/domain/track"
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // name of the rejecting filter, e.g. "playlist", "search"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for queue filters.
type Filter interface {
	// Name returns the filter name (used as the rejection code).
	Name() string
	// Check decides whether t belongs in the queue.
	Check(t *track.Track) Result
}
