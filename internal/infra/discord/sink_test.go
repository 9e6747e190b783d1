package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	channelID string
	content   string
	err       error
}

func (r *recordingSender) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.channelID = channelID
	r.content = content
	if r.err != nil {
		return nil, r.err
	}
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func TestChannelSink_Send(t *testing.T) {
	sender := &recordingSender{}
	sink := NewChannelSink(sender, "text-1")

	require.NoError(t, sink.Send("Now playing: **A**"))
	assert.Equal(t, "text-1", sender.channelID)
	assert.Equal(t, "Now playing: **A**", sender.content)
}

func TestChannelSink_SendError(t *testing.T) {
	sink := NewChannelSink(&recordingSender{err: errors.New("missing access")}, "text-1")

	err := sink.Send("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_id=text-1")
}
