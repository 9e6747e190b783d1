// Package discord provides the Discord layer of the bot: the gateway
// session, slash command routing, voice connections and Opus audio output.
package discord

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNotReady is returned by Ready before the gateway session is up.
var ErrNotReady = errors.New("discord session is not ready")

// Config holds Discord bot configuration.
type Config struct {
	Token    string
	GuildIDs []string // Register commands per guild; empty registers globally
}

// Bot owns the Discord gateway connection and routes interactions to
// registered command handlers.
type Bot struct {
	mu        sync.Mutex
	session   *discordgo.Session
	router    *CommandRouter
	guildIDs  []string
	commands  map[string][]*discordgo.ApplicationCommand // guild ID ("" global) -> registered
	ready     atomic.Bool
	closeOnce sync.Once
}

// New creates a Bot. The gateway is not opened until Open.
func New(cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}

	routeLibraryLogs()
	session.LogLevel = sessionLogLevel()
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages

	b := &Bot{
		session:  session,
		router:   NewCommandRouter(),
		guildIDs: cfg.GuildIDs,
		commands: make(map[string][]*discordgo.ApplicationCommand),
	}

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.ready.Store(true)
		zlog.Info().Msgf("discord ready: user=%s guilds=%d", r.User.Username, len(r.Guilds))
	})
	session.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		b.ready.Store(false)
		zlog.Warn().Msg("discord gateway disconnected")
	})
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Resumed) {
		b.ready.Store(true)
		zlog.Info().Msg("discord gateway resumed")
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})

	return b, nil
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Open connects to the gateway.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open discord session")
	}
	return nil
}

// Ready reports whether the gateway session is up.
func (b *Bot) Ready(context.Context) error {
	if !b.ready.Load() {
		return ErrNotReady
	}
	return nil
}

// Run registers slash commands and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	appID := b.session.State.User.ID
	cmds := b.router.ApplicationCommands()

	targets := b.guildIDs
	if len(targets) == 0 {
		targets = []string{""}
	}

	for _, guildID := range targets {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, cmds)
		if err != nil {
			return errors.Wrapf(err, "failed to register commands: guild_id=%s", guildID)
		}
		b.mu.Lock()
		b.commands[guildID] = registered
		b.mu.Unlock()
		zlog.Info().Msgf("discord commands registered: guild_id=%s count=%d", guildID, len(registered))
	}

	<-ctx.Done()
	return nil
}

// Close unregisters guild commands and closes the gateway session.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		// Global commands stay registered; they take up to an hour to propagate
		if b.session.State != nil && b.session.State.User != nil {
			appID := b.session.State.User.ID
			for guildID, cmds := range b.commands {
				if guildID == "" {
					continue
				}
				for _, cmd := range cmds {
					if err := b.session.ApplicationCommandDelete(appID, guildID, cmd.ID); err != nil {
						zlog.Warn().Msgf("discord: failed to delete command: name=%s error=%v", cmd.Name, err)
					}
				}
			}
		}

		b.ready.Store(false)
		if err := b.session.Close(); err != nil {
			closeErr = errors.Wrap(err, "failed to close discord session")
		}
	})
	return closeErr
}
