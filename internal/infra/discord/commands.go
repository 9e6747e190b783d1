package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/command"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/domain/track"
)

const commandTimeout = 2 * time.Minute

// CommandRecorder counts command invocations.
type CommandRecorder interface {
	RecordCommand(ctx context.Context, name string)
}

// voiceStateLookup finds a member's voice state. *discordgo.State
// implements it.
type voiceStateLookup interface {
	VoiceState(guildID, userID string) (*discordgo.VoiceState, error)
}

// runFunc runs one music command and returns the reply text.
type runFunc func(ctx context.Context, inv command.Invocation, opts optionMap) string

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

type musicCommand struct {
	def      *discordgo.ApplicationCommand
	deferred bool // Acknowledge first, reply with a follow-up
	run      runFunc
}

// MusicCommands binds the music command handler to slash commands.
type MusicCommands struct {
	handler  *command.Handler
	recorder CommandRecorder
	commands []musicCommand
}

// NewMusicCommands creates the slash command bindings. recorder may be nil.
func NewMusicCommands(handler *command.Handler, recorder CommandRecorder) *MusicCommands {
	m := &MusicCommands{handler: handler, recorder: recorder}
	m.commands = []musicCommand{
		{
			def: &discordgo.ApplicationCommand{
				Name:        "play",
				Description: "Play a song or add it to the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "song_query",
						Description: "Search query",
						Required:    true,
					},
				},
			},
			deferred: true,
			run: func(ctx context.Context, inv command.Invocation, opts optionMap) string {
				query := ""
				if opt, ok := opts["song_query"]; ok {
					query = opt.StringValue()
				}
				return handler.Play(ctx, inv, query)
			},
		},
		simple("skip", "Skips the current playing song", handler.Skip),
		simple("pause", "Pause the currently playing song.", handler.Pause),
		simple("resume", "Resume the currently paused song.", handler.Resume),
		simple("stop", "Stop playback and clear the queue.", handler.Stop),
		simple("queue", "Shows the current song queue.", handler.ShowQueue),
		simple("shuffle", "Shuffles the current queue.", handler.Shuffle),
		simple("loop", "Toggles looping of the current queue.", handler.ToggleLoop),
		simple("nowplaying", "Shows the song that is currently playing.", handler.NowPlaying),
	}
	return m
}

func simple(name, description string, fn func(context.Context, command.Invocation) string) musicCommand {
	return musicCommand{
		def: &discordgo.ApplicationCommand{
			Name:        name,
			Description: description,
		},
		run: func(ctx context.Context, inv command.Invocation, _ optionMap) string {
			return fn(ctx, inv)
		},
	}
}

// Register adds every music command to router.
func (m *MusicCommands) Register(router *CommandRouter) {
	for _, c := range m.commands {
		router.RegisterCommand(c.def, m.interactionHandler(c))
	}
}

func (m *MusicCommands) interactionHandler(c musicCommand) HandlerFunc {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.GuildID == "" {
			RespondEphemeral(s, i, "This command only works in a server.")
			return
		}

		if c.deferred {
			DeferReply(s, i)
		}

		reply := m.execute(c, s.State, NewChannelSink(s, i.ChannelID), i)

		if c.deferred {
			FollowUp(s, i, reply)
		} else {
			Respond(s, i, reply)
		}
	}
}

// execute runs c for the interaction and returns the reply.
func (m *MusicCommands) execute(
	c musicCommand,
	states voiceStateLookup,
	sink playback.Sink,
	i *discordgo.InteractionCreate,
) string {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	inv := buildInvocation(states, i)
	inv.Sink = sink

	if m.recorder != nil {
		m.recorder.RecordCommand(ctx, c.def.Name)
	}

	start := time.Now()
	reply := c.run(ctx, inv, options(i))
	zlog.Info().Msgf("command: name=%s guild_id=%s user_id=%s elapsed=%v",
		c.def.Name, inv.GuildID, inv.Requester.ID, time.Since(start))
	return reply
}

// buildInvocation extracts the guild, requester and the requester's voice
// channel from an interaction.
func buildInvocation(states voiceStateLookup, i *discordgo.InteractionCreate) command.Invocation {
	inv := command.Invocation{
		GuildID:   i.GuildID,
		Requester: requester(i),
	}
	if states == nil || inv.Requester.ID == "" {
		return inv
	}
	vs, err := states.VoiceState(i.GuildID, inv.Requester.ID)
	if err == nil && vs != nil {
		inv.VoiceChannelID = vs.ChannelID
	}
	return inv
}

func requester(i *discordgo.InteractionCreate) track.Requester {
	var user *discordgo.User
	nick := ""
	if i.Member != nil {
		user = i.Member.User
		nick = i.Member.Nick
	}
	if user == nil {
		user = i.User
	}
	if user == nil {
		return track.Requester{}
	}

	name := nick
	if name == "" {
		name = user.GlobalName
	}
	if name == "" {
		name = user.Username
	}
	return track.Requester{ID: user.ID, Name: name}
}

func options(i *discordgo.InteractionCreate) optionMap {
	opts := make(optionMap)
	for _, opt := range i.ApplicationCommandData().Options {
		opts[opt.Name] = opt
	}
	return opts
}
