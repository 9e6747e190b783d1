// Package jukebox wires the queue store, playback controller, filters and
// notifications into one per-process music service.
package jukebox

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/command"
	"github.com/osa030/tunebox/internal/app/filter"
	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/domain/track"
	"github.com/osa030/tunebox/internal/infra/config"
)

var ErrNotRunning = errors.New("jukebox is not running")

// EventRecorder records playback activity, typically as metrics.
type EventRecorder interface {
	RecordPlaybackEvent(ctx context.Context, event string)
}

// GuildStatus summarizes one guild for admin clients.
type GuildStatus struct {
	GuildID     string             `json:"guild_id"`
	State       string             `json:"state"`
	ChannelID   string             `json:"channel_id,omitempty"`
	Current     *track.QueuedTrack `json:"current,omitempty"`
	QueueLength int                `json:"queue_length"`
	Loop        bool               `json:"loop"`
}

// Manager manages the music service.
type Manager struct {
	// Configuration
	config *config.Config

	// Components
	store        *queue.Store
	playback     *playback.Controller
	filterChain  *filter.Chain
	commands     *command.Handler
	notification *notification.Manager
	recorder     EventRecorder

	// Lifecycle
	startOnce sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewManager creates a new jukebox manager. recorder may be nil.
func NewManager(cfg *config.Config, voice playback.Voice, res command.Resolver, recorder EventRecorder) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	store := queue.NewStore()
	m := &Manager{
		config: cfg,
		store:  store,
		playback: playback.NewController(store, voice, playback.Config{
			MaxStartFailures:  cfg.Playback.MaxStartFailures,
			LeaveOnEmpty:      cfg.Playback.ShouldLeaveOnEmpty(),
			EventBuffer:       cfg.Playback.EventBuffer,
			NowPlayingFormat:  cfg.Messages.NowPlaying,
			StartFailedFormat: cfg.Messages.StartFailed,
		}),
		notification: notification.NewManager(),
		recorder:     recorder,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	chain, err := filter.NewChainFromConfig(cfg, filter.Deps{Queue: m})
	if err != nil {
		cancel()
		m.playback.Close()
		return nil, errors.Wrap(err, "failed to create filter chain")
	}
	m.filterChain = chain
	m.commands = command.NewHandler(cfg, m.playback, store, res, chain)

	for _, f := range chain.Filters() {
		zlog.Info().Msgf("filter enabled: name=%s", f.Name())
	}

	return m, nil
}

// Start starts the event loop.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.eventLoop()
	})
}

// Close stops every player and waits for the event loop to exit.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.playback.Close()
		m.cancel()
		// Never started: nothing will close done.
		m.startOnce.Do(func() { close(m.done) })
		<-m.done
		m.notification.Close()
	})
}

// Ready reports whether the manager is accepting commands.
func (m *Manager) Ready(context.Context) error {
	if m.ctx.Err() != nil {
		return ErrNotRunning
	}
	return nil
}

// Commands returns the command handler.
func (m *Manager) Commands() *command.Handler {
	return m.commands
}

// Notifications returns the notification manager.
func (m *Manager) Notifications() *notification.Manager {
	return m.notification
}

// Tracks returns the guild's current track followed by its queue.
func (m *Manager) Tracks(guildID string) []track.QueuedTrack {
	queued := m.store.PeekAll(guildID)
	current := m.playback.Status(guildID).Current
	if current == nil {
		return queued
	}
	return append([]track.QueuedTrack{*current}, queued...)
}

// ActivePlayers returns the number of guilds with a running session.
func (m *Manager) ActivePlayers() int {
	return m.playback.ActivePlayers()
}

// QueuedTracks returns the number of queued tracks across guilds.
func (m *Manager) QueuedTracks() int {
	n := 0
	for _, id := range m.store.Guilds() {
		n += m.store.Len(id)
	}
	return n
}

// Status returns the status of one guild.
func (m *Manager) Status(guildID string) GuildStatus {
	snap := m.playback.Status(guildID)
	return GuildStatus{
		GuildID:     guildID,
		State:       snap.State.String(),
		ChannelID:   snap.ChannelID,
		Current:     snap.Current,
		QueueLength: m.store.Len(guildID),
		Loop:        m.store.IsLoop(guildID),
	}
}

// Guilds returns the status of every guild that has used the bot.
func (m *Manager) Guilds() []GuildStatus {
	ids := m.playback.Guilds()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range m.store.Guilds() {
		if !seen[id] {
			ids = append(ids, id)
		}
	}

	statuses := make([]GuildStatus, len(ids))
	for i, id := range ids {
		statuses[i] = m.Status(id)
	}
	return statuses
}

// Queue returns the guild's upcoming tracks.
func (m *Manager) Queue(guildID string) []track.QueuedTrack {
	return m.store.PeekAll(guildID)
}

// Skip skips the guild's current track.
func (m *Manager) Skip(ctx context.Context, guildID string) error {
	_, err := m.playback.Skip(ctx, guildID)
	return err
}

// Pause pauses the guild's current track.
func (m *Manager) Pause(ctx context.Context, guildID string) error {
	_, err := m.playback.Pause(ctx, guildID)
	return err
}

// Resume resumes the guild's current track.
func (m *Manager) Resume(ctx context.Context, guildID string) error {
	_, err := m.playback.Resume(ctx, guildID)
	return err
}

// Stop clears the guild and leaves voice.
func (m *Manager) Stop(ctx context.Context, guildID string) (bool, error) {
	return m.playback.Stop(ctx, guildID)
}

// Shuffle shuffles the guild's queue.
func (m *Manager) Shuffle(guildID string) bool {
	return m.store.ShuffleRemaining(guildID)
}

// ToggleLoop flips the guild's loop flag and returns the new value.
func (m *Manager) ToggleLoop(guildID string) bool {
	return m.store.ToggleLoop(guildID)
}

// eventLoop handles playback events.
func (m *Manager) eventLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("event loop panicked: %v", r)
			zlog.Info().Msg("restarting event loop")
			go m.eventLoop()
			return
		}
		close(m.done)
	}()

	for {
		select {
		case <-m.ctx.Done():
			return
		case event := <-m.playback.Events():
			m.handlePlaybackEvent(event)
		}
	}
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	zlog.Debug().Msgf("playback event: type=%s guild_id=%s generation=%d", event.Type, event.GuildID, event.Generation)

	if m.recorder != nil {
		m.recorder.RecordPlaybackEvent(m.ctx, event.Type.String())
	}

	n := &notification.Notification{
		GuildID: event.GuildID,
		State:   event.State.String(),
		Time:    time.Now(),
	}
	if event.Track != nil {
		n.Title = event.Track.Track.DisplayTitle()
		n.Requester = event.Track.Requester.Name
	}
	if event.Err != nil {
		n.Error = event.Err.Error()
	}

	switch event.Type {
	case playback.EventTrackStarted:
		n.Type = notification.TypeTrackStarted
	case playback.EventTrackEnded:
		n.Type = notification.TypeTrackEnded
		if event.Err != nil {
			zlog.Warn().Msgf("track ended with error: guild_id=%s title=%q error=%v", event.GuildID, n.Title, event.Err)
		}
	case playback.EventTrackSkipped:
		n.Type = notification.TypeTrackSkipped
	case playback.EventStateChanged:
		n.Type = notification.TypeStateChanged
	case playback.EventQueueEmpty:
		n.Type = notification.TypeQueueEmpty
	case playback.EventStartFailed:
		n.Type = notification.TypeStartFailed
	case playback.EventStopped:
		n.Type = notification.TypeStopped
	default:
		// Stale completions are internal bookkeeping
		return
	}

	zlog.Info().Msgf("broadcast %s: guild_id=%s title=%q", n.Type, n.GuildID, n.Title)
	m.notification.Broadcast(n)
}
