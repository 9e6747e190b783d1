package playback

import "github.com/osa030/tunebox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted    EventType = iota // Audio session started for a track
	EventTrackEnded                       // Audio session reported completion
	EventTrackSkipped                     // Skip forced the current session to stop
	EventStateChanged                     // Pause/resume
	EventQueueEmpty                       // Advance found nothing to play
	EventStartFailed                      // Audio session could not be started
	EventStopped                          // Stop cleared the guild
	EventStaleCompletion                  // Completion for a superseded session was dropped
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventStateChanged:
		return "state_changed"
	case EventQueueEmpty:
		return "queue_empty"
	case EventStartFailed:
		return "start_failed"
	case EventStopped:
		return "stopped"
	case EventStaleCompletion:
		return "stale_completion"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type       EventType
	GuildID    string
	Track      *track.QueuedTrack // Track concerned (nil for some events)
	State      State              // Playback state after the event
	Generation uint64             // Session generation the event belongs to
	Err        error              // Set for EventStartFailed and failed completions
}
