package playback

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/domain/track"
)

// Errors
var (
	ErrNothingToSkip = errors.New("nothing to skip")
	ErrNotPlaying    = errors.New("not playing")
	ErrNotPaused     = errors.New("not paused")
	ErrNotConnected  = errors.New("not connected to voice")
	ErrClosed        = errors.New("playback controller closed")
)

// Config holds controller configuration.
type Config struct {
	MaxStartFailures  int    // Consecutive start failures before giving up on a guild
	LeaveOnEmpty      bool   // Disconnect voice once the queue runs dry
	EventBuffer       int    // Capacity of the event channel
	NowPlayingFormat  string // Announcement sent when a track starts, %s is the title
	StartFailedFormat string // Announcement sent when a track cannot start, %s is the title
}

// DefaultConfig returns the configuration used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		MaxStartFailures:  5,
		LeaveOnEmpty:      true,
		EventBuffer:       64,
		NowPlayingFormat:  "Now playing: **%s**",
		StartFailedFormat: "Could not play **%s**, skipping.",
	}
}

// Controller routes playback commands to per-guild players.
type Controller struct {
	mu      sync.RWMutex
	players map[string]*Player

	store *queue.Store
	voice Voice

	// Configuration
	config Config

	// Events
	eventCh chan Event

	// Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a new playback controller backed by store.
func NewController(store *queue.Store, voice Voice, config Config) *Controller {
	def := DefaultConfig()
	if config.MaxStartFailures <= 0 {
		config.MaxStartFailures = def.MaxStartFailures
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = def.EventBuffer
	}
	if config.NowPlayingFormat == "" {
		config.NowPlayingFormat = def.NowPlayingFormat
	}
	if config.StartFailedFormat == "" {
		config.StartFailedFormat = def.StartFailedFormat
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		players: make(map[string]*Player),
		store:   store,
		voice:   voice,
		config:  config,
		eventCh: make(chan Event, config.EventBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Events returns the event channel. The channel is never closed; readers
// should stop on their own context.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Store returns the queue store the controller plays from.
func (c *Controller) Store() *queue.Store {
	return c.store
}

// player returns the guild's player, starting it on first use.
func (c *Controller) player(guildID string) (*Player, error) {
	c.mu.RLock()
	p, ok := c.players[guildID]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if p, ok := c.players[guildID]; ok {
		return p, nil
	}

	p = newPlayer(guildID, c)
	c.players[guildID] = p
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		p.run(c.ctx)
	}()
	zlog.Debug().Msgf("playback: player started: guild_id=%s", guildID)
	return p, nil
}

// Connect joins channelID, or moves there when the guild is already
// connected elsewhere.
func (c *Controller) Connect(ctx context.Context, guildID, channelID string) error {
	p, err := c.player(guildID)
	if err != nil {
		return err
	}
	_, err = p.call(ctx, message{kind: msgConnect, channelID: channelID})
	return err
}

// StartIfIdle starts the next queued track when the guild has no audio
// session. It reports the started track and true, or false when a session
// was already running. Announcements for the guild go to sink from now on;
// a nil sink keeps the previous one.
func (c *Controller) StartIfIdle(ctx context.Context, guildID string, sink Sink) (*track.QueuedTrack, bool, error) {
	p, err := c.player(guildID)
	if err != nil {
		return nil, false, err
	}
	r, err := p.call(ctx, message{kind: msgStartIfIdle, sink: sink})
	if err != nil {
		return nil, false, err
	}
	return r.track, r.started, nil
}

// Skip stops the current track so the queue advances. If the track the
// caller saw has already finished on its own, Skip succeeds without
// advancing a second time.
func (c *Controller) Skip(ctx context.Context, guildID string) (*track.QueuedTrack, error) {
	p, err := c.player(guildID)
	if err != nil {
		return nil, err
	}
	observed := p.Snapshot().Generation
	r, err := p.call(ctx, message{kind: msgSkip, gen: observed})
	if err != nil {
		return nil, err
	}
	return r.track, nil
}

// Pause pauses the current track.
func (c *Controller) Pause(ctx context.Context, guildID string) (*track.QueuedTrack, error) {
	p, err := c.player(guildID)
	if err != nil {
		return nil, err
	}
	r, err := p.call(ctx, message{kind: msgPause})
	if err != nil {
		return nil, err
	}
	return r.track, nil
}

// Resume resumes a paused track.
func (c *Controller) Resume(ctx context.Context, guildID string) (*track.QueuedTrack, error) {
	p, err := c.player(guildID)
	if err != nil {
		return nil, err
	}
	r, err := p.call(ctx, message{kind: msgResume})
	if err != nil {
		return nil, err
	}
	return r.track, nil
}

// Stop clears the queue, ends the current session and leaves voice. Once
// it returns, no completion of an earlier session can advance the guild.
// It reports whether the guild was connected to voice.
func (c *Controller) Stop(ctx context.Context, guildID string) (bool, error) {
	p, err := c.player(guildID)
	if err != nil {
		return false, err
	}
	r, err := p.call(ctx, message{kind: msgStop})
	if err != nil {
		return false, err
	}
	return r.connected, nil
}

// Status returns the guild's current playback snapshot.
func (c *Controller) Status(guildID string) Snapshot {
	c.mu.RLock()
	p, ok := c.players[guildID]
	c.mu.RUnlock()
	if !ok {
		return Snapshot{GuildID: guildID, State: StateIdle}
	}
	return p.Snapshot()
}

// Guilds returns the IDs of guilds with a player, sorted.
func (c *Controller) Guilds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.players))
	for id := range c.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActivePlayers returns the number of guilds with a running session.
func (c *Controller) ActivePlayers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, p := range c.players {
		if p.Snapshot().State != StateIdle {
			n++
		}
	}
	return n
}

// Close stops every player, disconnects voice and waits for the player
// goroutines to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

// emit sends an event without blocking.
func (c *Controller) emit(e Event) {
	select {
	case c.eventCh <- e:
		// Successfully sent
	case <-c.ctx.Done():
		// Context cancelled, don't send
	default:
		zlog.Warn().Msgf("playback: event channel full, dropping event: type=%s guild_id=%s", e.Type, e.GuildID)
	}
}
