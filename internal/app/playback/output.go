package playback

import "context"

// Sink receives user-facing announcements for a guild, typically the text
// channel the last command came from.
type Sink interface {
	Send(text string) error
}

// Voice joins voice channels.
type Voice interface {
	// Join connects to channelID in guildID and returns the connection.
	Join(ctx context.Context, guildID, channelID string) (VoiceConn, error)
}

// VoiceConn is an established voice connection for one guild.
type VoiceConn interface {
	// ChannelID returns the voice channel currently joined.
	ChannelID() string

	// Move switches the connection to another voice channel of the guild.
	Move(ctx context.Context, channelID string) error

	// Start begins streaming streamRef and returns the running session.
	// onComplete must be invoked exactly once when the stream ends,
	// naturally or because Stop was called, with a non-nil error if
	// playback failed midway. It may be invoked from any goroutine.
	Start(ctx context.Context, streamRef string, onComplete func(error)) (Session, error)

	// Disconnect leaves the voice channel.
	Disconnect() error
}

// Session is one running audio output for a single track.
type Session interface {
	Stop()
	Pause()
	Resume()
	IsPlaying() bool
	IsPaused() bool
}
