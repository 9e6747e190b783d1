// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Track represents a playable track returned by a resolver.
// A Track is immutable once resolved.
type Track struct {
	StreamRef  string        // Direct media URL handed to the audio output
	Title      string        // Display title
	WebpageURL string        // Human-facing page (YouTube watch URL etc.)
	Duration   time.Duration // Zero when the source did not report it
	Source     string        // Resolver that produced the track
}

// DisplayTitle returns the title, falling back to a placeholder when the
// source did not provide one.
func (t Track) DisplayTitle() string {
	if strings.TrimSpace(t.Title) == "" {
		return "Untitled"
	}
	return t.Title
}

// Requester represents the user who requested the track.
type Requester struct {
	ID   string // Discord user ID
	Name string // Display name
}

// QueuedTrack represents a track in a guild queue.
type QueuedTrack struct {
	Track     Track     // Resolved track info
	Requester Requester // Requester info
	AddedAt   time.Time // Time when added to queue
}

// Titles projects queued tracks onto their display titles.
func Titles(qts []QueuedTrack) []string {
	titles := make([]string, len(qts))
	for i, qt := range qts {
		titles[i] = qt.Track.DisplayTitle()
	}
	return titles
}
