package connect

import (
	"github.com/osa030/tunebox/internal/app/jukebox"
)

// GetStatusRequest selects a guild; empty returns every guild.
type GetStatusRequest struct {
	GuildID string `json:"guild_id,omitempty"`
}

// GetStatusResponse is the status of the service.
type GetStatusResponse struct {
	Guilds        []jukebox.GuildStatus `json:"guilds"`
	ActivePlayers int                   `json:"active_players"`
	QueuedTracks  int                   `json:"queued_tracks"`
	Subscribers   int                   `json:"subscribers"`
}

// GuildRequest targets one guild.
type GuildRequest struct {
	GuildID string `json:"guild_id"`
}

// QueueEntry is one upcoming track.
type QueueEntry struct {
	Position    int    `json:"position"`
	Title       string `json:"title"`
	URL         string `json:"url,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
	Requester   string `json:"requester,omitempty"`
}

// ListQueueResponse lists a guild's upcoming tracks.
type ListQueueResponse struct {
	GuildID string       `json:"guild_id"`
	Loop    bool         `json:"loop"`
	Tracks  []QueueEntry `json:"tracks"`
}

// ActionResponse reports the outcome of a control operation.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WatchNotificationsRequest selects a guild; empty watches every guild.
type WatchNotificationsRequest struct {
	GuildID string `json:"guild_id,omitempty"`
}
