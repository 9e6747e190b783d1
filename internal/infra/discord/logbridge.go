package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// routeLibraryLogs sends discordgo's internal logging through zerolog at a
// level derived from the global zerolog level.
func routeLibraryLogs() {
	discordgo.Logger = func(msgL, caller int, format string, a ...any) {
		zlog.WithLevel(libraryLevel(msgL)).Msgf("discordgo: %s", fmt.Sprintf(format, a...))
	}
}

// sessionLogLevel maps the global zerolog level onto discordgo's levels.
func sessionLogLevel() int {
	switch lvl := zerolog.GlobalLevel(); {
	case lvl <= zerolog.DebugLevel:
		return discordgo.LogInformational
	case lvl <= zerolog.WarnLevel:
		return discordgo.LogWarning
	default:
		return discordgo.LogError
	}
}

func libraryLevel(msgL int) zerolog.Level {
	switch msgL {
	case discordgo.LogError:
		return zerolog.ErrorLevel
	case discordgo.LogWarning:
		return zerolog.WarnLevel
	case discordgo.LogInformational:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
