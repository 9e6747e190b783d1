package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/playback"
)

var (
	_ playback.Voice     = (*Voice)(nil)
	_ playback.VoiceConn = (*VoiceConn)(nil)
	_ playback.Session   = (*StreamSession)(nil)
)

// voiceJoiner joins voice channels. *discordgo.Session implements it.
type voiceJoiner interface {
	ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// VoiceConfig configures audio output.
type VoiceConfig struct {
	FFmpegPath  string
	BitrateKbps int
}

// Voice joins guild voice channels through a discordgo session.
type Voice struct {
	joiner  voiceJoiner
	openPCM openPCMFunc
	bitrate int
}

// NewVoice creates a Voice backed by session.
func NewVoice(session *discordgo.Session, cfg VoiceConfig) *Voice {
	path := cfg.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	return &Voice{
		joiner:  session,
		openPCM: ffmpegOpener(path),
		bitrate: cfg.BitrateKbps,
	}
}

// Join connects to channelID. The bot joins self-deafened.
func (v *Voice) Join(ctx context.Context, guildID, channelID string) (playback.VoiceConn, error) {
	vc, err := v.joiner.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to join voice channel: guild_id=%s channel_id=%s", guildID, channelID)
	}
	zlog.Info().Msgf("voice joined: guild_id=%s channel_id=%s", guildID, channelID)

	return &VoiceConn{
		voice:     v,
		vc:        vc,
		guildID:   guildID,
		channelID: channelID,
	}, nil
}

// VoiceConn is a joined voice channel.
type VoiceConn struct {
	voice   *Voice
	guildID string

	mu        sync.Mutex
	vc        *discordgo.VoiceConnection
	channelID string
}

// ChannelID returns the joined channel.
func (c *VoiceConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

// Move switches to another channel of the same guild. discordgo reuses the
// guild's connection when joining again.
func (c *VoiceConn) Move(ctx context.Context, channelID string) error {
	vc, err := c.voice.joiner.ChannelVoiceJoin(c.guildID, channelID, false, true)
	if err != nil {
		return errors.Wrapf(err, "failed to move voice: guild_id=%s channel_id=%s", c.guildID, channelID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.vc = vc
	c.channelID = channelID
	zlog.Info().Msgf("voice moved: guild_id=%s channel_id=%s", c.guildID, channelID)
	return nil
}

// Start decodes streamRef and streams it into the channel.
func (c *VoiceConn) Start(ctx context.Context, streamRef string, onComplete func(error)) (playback.Session, error) {
	c.mu.Lock()
	vc := c.vc
	c.mu.Unlock()
	if vc == nil {
		return nil, errors.New("voice connection closed")
	}

	encoder, err := newOpusEncoder(c.voice.bitrate)
	if err != nil {
		return nil, err
	}

	source, err := c.voice.openPCM(ctx, streamRef)
	if err != nil {
		return nil, err
	}

	session := newStreamSession(source, encoder, vc.OpusSend, func(on bool) {
		if err := vc.Speaking(on); err != nil {
			zlog.Debug().Msgf("speaking update failed: guild_id=%s speaking=%t error=%v", c.guildID, on, err)
		}
	}, onComplete)
	session.start()
	return session, nil
}

// Disconnect leaves the voice channel.
func (c *VoiceConn) Disconnect() error {
	c.mu.Lock()
	vc := c.vc
	c.vc = nil
	c.mu.Unlock()

	if vc == nil {
		return nil
	}
	if err := vc.Disconnect(); err != nil {
		return errors.Wrapf(err, "failed to leave voice: guild_id=%s", c.guildID)
	}
	zlog.Info().Msgf("voice left: guild_id=%s", c.guildID)
	return nil
}
