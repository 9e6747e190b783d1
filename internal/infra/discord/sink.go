package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/osa030/tunebox/internal/app/playback"
)

var _ playback.Sink = (*ChannelSink)(nil)

// messageSender posts channel messages. *discordgo.Session implements it.
type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ChannelSink posts announcements to a text channel.
type ChannelSink struct {
	sender    messageSender
	channelID string
}

// NewChannelSink creates a sink for channelID.
func NewChannelSink(sender messageSender, channelID string) *ChannelSink {
	return &ChannelSink{sender: sender, channelID: channelID}
}

// Send posts text to the channel.
func (s *ChannelSink) Send(text string) error {
	if _, err := s.sender.ChannelMessageSend(s.channelID, text); err != nil {
		return errors.Wrapf(err, "failed to send message: channel_id=%s", s.channelID)
	}
	return nil
}
