package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLibraryLevel(t *testing.T) {
	assert.Equal(t, zerolog.ErrorLevel, libraryLevel(discordgo.LogError))
	assert.Equal(t, zerolog.WarnLevel, libraryLevel(discordgo.LogWarning))
	assert.Equal(t, zerolog.InfoLevel, libraryLevel(discordgo.LogInformational))
	assert.Equal(t, zerolog.DebugLevel, libraryLevel(discordgo.LogDebug))
}

func TestSessionLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	assert.Equal(t, discordgo.LogInformational, sessionLogLevel())
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	assert.Equal(t, discordgo.LogWarning, sessionLogLevel())
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	assert.Equal(t, discordgo.LogError, sessionLogLevel())
}
