// Package playback provides the per-guild playback state machine.
//
// Every guild gets a Player: a single goroutine that owns the guild's
// playback state and drains a mailbox of commands and completion signals.
// Audio outputs report completion from their own goroutines; those signals
// are posted to the mailbox and never touch player state directly.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No audio session exists
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
