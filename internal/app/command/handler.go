// Package command implements the user-facing music commands. Handlers are
// transport independent: the Discord layer builds an Invocation and sends
// back the returned text.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/filter"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/app/resolver"
	"github.com/osa030/tunebox/internal/domain/track"
	"github.com/osa030/tunebox/internal/infra/config"
)

// Errors
var (
	ErrNotInVoice  = errors.New("requester is not in a voice channel")
	ErrEmptyResult = errors.New("query produced no tracks")
)

// Invocation describes one command call.
type Invocation struct {
	GuildID        string
	VoiceChannelID string // Requester's voice channel, empty when not in voice
	Requester      track.Requester
	Sink           playback.Sink // Announcements for the guild go here
}

// Playback is the playback controller as seen by commands.
type Playback interface {
	Connect(ctx context.Context, guildID, channelID string) error
	StartIfIdle(ctx context.Context, guildID string, sink playback.Sink) (*track.QueuedTrack, bool, error)
	Skip(ctx context.Context, guildID string) (*track.QueuedTrack, error)
	Pause(ctx context.Context, guildID string) (*track.QueuedTrack, error)
	Resume(ctx context.Context, guildID string) (*track.QueuedTrack, error)
	Stop(ctx context.Context, guildID string) (bool, error)
	Status(guildID string) playback.Snapshot
}

// Resolver resolves a user query into tracks.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]track.Track, error)
}

// Handler runs music commands for any guild.
type Handler struct {
	playback Playback
	store    *queue.Store
	resolver Resolver
	filters  *filter.Chain

	messages     config.MessagesConfig
	messageFor   func(code string) string
	displayLimit int
	now          func() time.Time
}

// NewHandler creates a new command handler. filters may be nil.
func NewHandler(cfg *config.Config, pb Playback, store *queue.Store, res Resolver, filters *filter.Chain) *Handler {
	if filters == nil {
		filters = filter.NewChain()
	}
	limit := cfg.Playback.QueueDisplayLimit
	if limit <= 0 {
		limit = 1900
	}
	return &Handler{
		playback:     pb,
		store:        store,
		resolver:     res,
		filters:      filters,
		messages:     cfg.Messages,
		messageFor:   cfg.GetMessage,
		displayLimit: limit,
		now:          time.Now,
	}
}

// Play resolves query, enqueues every accepted track and starts playback
// when the guild is idle.
func (h *Handler) Play(ctx context.Context, inv Invocation, query string) string {
	log := zlog.With().Str("guild_id", inv.GuildID).Logger()

	if inv.VoiceChannelID == "" {
		return h.messages.NotInVoice
	}

	if err := h.playback.Connect(ctx, inv.GuildID, inv.VoiceChannelID); err != nil {
		log.Error().Err(err).Msgf("command: play: failed to connect voice: channel_id=%s", inv.VoiceChannelID)
		return h.messages.DefaultError
	}

	tracks, err := h.resolveTracks(ctx, query)
	if err != nil {
		if errors.Is(err, ErrEmptyResult) {
			log.Info().Msgf("command: play: no results: query=%q", query)
			return h.messages.NoResults
		}
		log.Error().Err(err).Msgf("command: play: resolve failed: query=%q", query)
		return h.messages.ResolveFailed
	}

	accepted, rejected := h.filters.Apply(ctx, filter.Request{GuildID: inv.GuildID, Requester: inv.Requester}, tracks)
	if len(accepted) == 0 {
		log.Info().Msgf("command: play: all tracks rejected: query=%q code=%s", query, rejected.Code)
		return h.messageFor(rejected.Code)
	}

	addedAt := h.now()
	queued := make([]track.QueuedTrack, len(accepted))
	for i, t := range accepted {
		queued[i] = track.QueuedTrack{Track: t, Requester: inv.Requester, AddedAt: addedAt}
	}
	h.store.Enqueue(inv.GuildID, queued...)
	log.Info().Msgf("command: play: enqueued: query=%q tracks=%d rejected=%d requester=%s",
		query, len(accepted), len(tracks)-len(accepted), inv.Requester.Name)

	started, ok, err := h.playback.StartIfIdle(ctx, inv.GuildID, inv.Sink)
	if err != nil {
		if errors.Is(err, playback.ErrNotConnected) {
			removed := h.store.Remove(inv.GuildID, queued...)
			log.Warn().Msgf("command: play: left voice before start: removed=%d", removed)
			return h.messages.PlayInterrupted
		}
		log.Error().Err(err).Msg("command: play: failed to start playback")
		return h.messages.DefaultError
	}
	if ok {
		return fmt.Sprintf(h.messages.NowPlaying, started.Track.DisplayTitle())
	}
	return fmt.Sprintf(h.messages.AddedToQueue, len(accepted))
}

func (h *Handler) resolveTracks(ctx context.Context, query string) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyResult
	}
	tracks, err := h.resolver.Resolve(ctx, query)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return nil, errors.Mark(err, ErrEmptyResult)
		}
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrEmptyResult
	}
	return tracks, nil
}

// Skip stops the current track so the next one starts.
func (h *Handler) Skip(ctx context.Context, inv Invocation) string {
	if _, err := h.playback.Skip(ctx, inv.GuildID); err != nil {
		if errors.Is(err, playback.ErrNothingToSkip) {
			return h.messages.NothingToSkip
		}
		return h.failed("skip", inv, err)
	}
	return h.messages.Skipped
}

// Pause pauses the current track.
func (h *Handler) Pause(ctx context.Context, inv Invocation) string {
	if h.playback.Status(inv.GuildID).ChannelID == "" {
		return h.messages.NotInVoiceChannel
	}
	if _, err := h.playback.Pause(ctx, inv.GuildID); err != nil {
		if errors.Is(err, playback.ErrNotPlaying) {
			return h.messages.NothingPlaying
		}
		return h.failed("pause", inv, err)
	}
	return h.messages.Paused
}

// Resume resumes a paused track.
func (h *Handler) Resume(ctx context.Context, inv Invocation) string {
	if h.playback.Status(inv.GuildID).ChannelID == "" {
		return h.messages.NotInVoiceChannel
	}
	if _, err := h.playback.Resume(ctx, inv.GuildID); err != nil {
		if errors.Is(err, playback.ErrNotPaused) {
			return h.messages.NotPaused
		}
		return h.failed("resume", inv, err)
	}
	return h.messages.Resumed
}

// Stop clears the queue, stops playback and leaves voice.
func (h *Handler) Stop(ctx context.Context, inv Invocation) string {
	wasConnected, err := h.playback.Stop(ctx, inv.GuildID)
	if err != nil {
		return h.failed("stop", inv, err)
	}
	if !wasConnected {
		return h.messages.NotConnected
	}
	return h.messages.Stopped
}

// ShowQueue lists the upcoming tracks, truncated to the display budget.
func (h *Handler) ShowQueue(ctx context.Context, inv Invocation) string {
	queued := h.store.PeekAll(inv.GuildID)
	if len(queued) == 0 {
		return h.messages.QueueEmpty
	}

	lines := make([]string, len(queued))
	for i, title := range track.Titles(queued) {
		lines[i] = fmt.Sprintf("%d. %s", i+1, title)
	}
	text := strings.Join(lines, "\n")

	if utf8.RuneCountInString(text) > h.displayLimit {
		text = string([]rune(text)[:h.displayLimit]) + "\n" + h.messages.QueueTruncated
	}

	return h.messages.QueueHeader + "\n" + text
}

// Shuffle shuffles the upcoming tracks.
func (h *Handler) Shuffle(ctx context.Context, inv Invocation) string {
	if !h.store.ShuffleRemaining(inv.GuildID) {
		return h.messages.NotEnoughToShuffle
	}
	return h.messages.Shuffled
}

// ToggleLoop flips queue looping and reports the new state.
func (h *Handler) ToggleLoop(ctx context.Context, inv Invocation) string {
	if h.store.ToggleLoop(inv.GuildID) {
		return h.messages.LoopEnabled
	}
	return h.messages.LoopDisabled
}

// NowPlaying reports the current track.
func (h *Handler) NowPlaying(ctx context.Context, inv Invocation) string {
	snap := h.playback.Status(inv.GuildID)
	if snap.Current == nil {
		return h.messages.NothingPlaying
	}

	icon := "▶️"
	if snap.State == playback.StatePaused {
		icon = "⏸️"
	}
	requester := snap.Current.Requester.Name
	if requester == "" {
		requester = "unknown"
	}
	text := fmt.Sprintf(h.messages.NowPlayingStatus, icon, snap.Current.Track.DisplayTitle(), requester)
	if h.store.IsLoop(inv.GuildID) {
		text += " 🔁"
	}
	return text
}

func (h *Handler) failed(op string, inv Invocation, err error) string {
	zlog.Error().Err(err).Msgf("command: %s failed: guild_id=%s", op, inv.GuildID)
	return h.messages.DefaultError
}
