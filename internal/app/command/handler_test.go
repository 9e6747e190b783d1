package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunebox/internal/app/filter"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/app/resolver"
	"github.com/osa030/tunebox/internal/domain/track"
	"github.com/osa030/tunebox/internal/infra/config"
)

const guild = "g1"

type fakePlayback struct {
	mu         sync.Mutex
	connected  map[string]string
	connectErr error
	startErr   error
	state      playback.State
	current    *track.QueuedTrack
	store      *queue.Store
	calls      []string
}

func newFakePlayback(store *queue.Store) *fakePlayback {
	return &fakePlayback{connected: make(map[string]string), store: store}
}

func (f *fakePlayback) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakePlayback) Connect(_ context.Context, guildID, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("connect:" + channelID)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected[guildID] = channelID
	return nil
}

func (f *fakePlayback) StartIfIdle(_ context.Context, guildID string, _ playback.Sink) (*track.QueuedTrack, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start")
	if f.startErr != nil {
		return nil, false, f.startErr
	}
	if f.current != nil {
		return f.current, false, nil
	}
	qt, ok := f.store.PopFront(guildID)
	if !ok {
		return nil, false, nil
	}
	f.current = &qt
	f.state = playback.StatePlaying
	return f.current, true, nil
}

func (f *fakePlayback) Skip(_ context.Context, guildID string) (*track.QueuedTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("skip")
	if f.current == nil {
		return nil, playback.ErrNothingToSkip
	}
	return f.current, nil
}

func (f *fakePlayback) Pause(_ context.Context, guildID string) (*track.QueuedTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pause")
	if f.state != playback.StatePlaying {
		return nil, playback.ErrNotPlaying
	}
	f.state = playback.StatePaused
	return f.current, nil
}

func (f *fakePlayback) Resume(_ context.Context, guildID string) (*track.QueuedTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("resume")
	if f.state != playback.StatePaused {
		return nil, playback.ErrNotPaused
	}
	f.state = playback.StatePlaying
	return f.current, nil
}

func (f *fakePlayback) Stop(_ context.Context, guildID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stop")
	f.store.Clear(guildID)
	_, was := f.connected[guildID]
	delete(f.connected, guildID)
	f.current = nil
	f.state = playback.StateIdle
	return was, nil
}

func (f *fakePlayback) Status(guildID string) playback.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return playback.Snapshot{
		GuildID:   guildID,
		State:     f.state,
		Current:   f.current,
		ChannelID: f.connected[guildID],
	}
}

func (f *fakePlayback) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeResolver struct {
	results map[string][]track.Track
	err     error
}

func (r *fakeResolver) Resolve(_ context.Context, query string) ([]track.Track, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.results[query], nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
discord:
  token: d
admin:
  token: a
resolver:
  providers:
    - type: ytdlp
`))
	require.NoError(t, err)
	return cfg
}

func titled(titles ...string) []track.Track {
	tracks := make([]track.Track, len(titles))
	for i, title := range titles {
		tracks[i] = track.Track{Title: title, StreamRef: "ref:" + title}
	}
	return tracks
}

type fixture struct {
	handler  *Handler
	playback *fakePlayback
	store    *queue.Store
	resolver *fakeResolver
	cfg      *config.Config
}

func newFixture(t *testing.T, filters *filter.Chain) *fixture {
	t.Helper()
	cfg := testConfig(t)
	store := queue.NewStore()
	pb := newFakePlayback(store)
	res := &fakeResolver{results: map[string][]track.Track{
		"song a":   titled("A"),
		"playlist": titled("B", "C", "D"),
	}}
	return &fixture{
		handler:  NewHandler(cfg, pb, store, res, filters),
		playback: pb,
		store:    store,
		resolver: res,
		cfg:      cfg,
	}
}

func invocation() Invocation {
	return Invocation{
		GuildID:        guild,
		VoiceChannelID: "vc1",
		Requester:      track.Requester{ID: "u1", Name: "alice"},
	}
}

func TestHandler_Play(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	reply := f.handler.Play(ctx, invocation(), "song a")
	assert.Equal(t, "Now playing: **A**", reply)

	reply = f.handler.Play(ctx, invocation(), "playlist")
	assert.Equal(t, "Added **3** song(s) to queue.", reply)
	assert.Equal(t, []string{"B", "C", "D"}, track.Titles(f.store.PeekAll(guild)))

	queued := f.store.PeekAll(guild)
	assert.Equal(t, "alice", queued[0].Requester.Name)
	assert.False(t, queued[0].AddedAt.IsZero())

	assert.Equal(t, []string{"connect:vc1", "start", "connect:vc1", "start"}, f.playback.Calls())
}

func TestHandler_PlayRequiresVoice(t *testing.T) {
	f := newFixture(t, nil)
	inv := invocation()
	inv.VoiceChannelID = ""

	reply := f.handler.Play(context.Background(), inv, "song a")
	assert.Equal(t, "You must be in a voice channel.", reply)
	assert.Empty(t, f.playback.Calls())
	assert.Zero(t, f.store.Len(guild))
}

func TestHandler_PlayResolveOutcomes(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
		want  string
	}{
		{name: "no tracks", query: "nothing", want: "No results found."},
		{name: "blank query", query: "   ", want: "No results found."},
		{
			name:  "not found error",
			query: "x",
			err:   resolver.MarkNotFound(errors.New("no match")),
			want:  "No results found.",
		},
		{
			name:  "transport error",
			query: "x",
			err:   resolver.MarkTransport(errors.New("boom")),
			want:  "Something went wrong while searching. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.resolver.err = tt.err

			reply := f.handler.Play(context.Background(), invocation(), tt.query)
			assert.Equal(t, tt.want, reply)
			assert.Zero(t, f.store.Len(guild))
			assert.NotContains(t, f.playback.Calls(), "start")
		})
	}
}

func TestHandler_PlayConnectFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.playback.connectErr = errors.New("voice down")

	reply := f.handler.Play(context.Background(), invocation(), "song a")
	assert.Equal(t, f.cfg.Messages.DefaultError, reply)
	assert.Zero(t, f.store.Len(guild))
}

func TestHandler_PlayLeftVoiceBeforeStart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.store.Enqueue(guild, track.QueuedTrack{Track: track.Track{Title: "Earlier"}})
	f.playback.startErr = playback.ErrNotConnected

	reply := f.handler.Play(ctx, invocation(), "playlist")
	assert.Equal(t, "Playback was stopped before your songs could start.", reply)
	assert.Equal(t, []string{"Earlier"}, track.Titles(f.store.PeekAll(guild)))

	f.playback.startErr = errors.New("mailbox closed")
	reply = f.handler.Play(ctx, invocation(), "song a")
	assert.Equal(t, f.cfg.Messages.DefaultError, reply)
}

func TestHandler_PlayFiltered(t *testing.T) {
	chain := filter.NewChain()
	blocked := filter.GetRegistered()["blocked_user_filter"](filter.Deps{})
	require.NoError(t, blocked.ValidateConfig(map[string]any{"user_ids": []any{"u1"}}))
	chain.Add(blocked)

	f := newFixture(t, chain)

	reply := f.handler.Play(context.Background(), invocation(), "playlist")
	assert.Equal(t, "You are not allowed to add songs.", reply)
	assert.Zero(t, f.store.Len(guild))

	other := invocation()
	other.Requester = track.Requester{ID: "u2", Name: "bob"}
	reply = f.handler.Play(context.Background(), other, "playlist")
	assert.Equal(t, "Now playing: **B**", reply)
}

func TestHandler_SkipPauseResume(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inv := invocation()

	assert.Equal(t, "Not playing anything to skip.", f.handler.Skip(ctx, inv))
	assert.Equal(t, "I'm not in a voice channel.", f.handler.Pause(ctx, inv))
	assert.Equal(t, "I'm not in a voice channel.", f.handler.Resume(ctx, inv))

	f.handler.Play(ctx, inv, "song a")

	assert.Equal(t, "I’m not paused right now.", f.handler.Resume(ctx, inv))
	assert.Equal(t, "Playback paused!", f.handler.Pause(ctx, inv))
	assert.Equal(t, "Nothing is currently playing.", f.handler.Pause(ctx, inv))
	assert.Equal(t, "Playback resumed!", f.handler.Resume(ctx, inv))
	assert.Equal(t, "Skipped the current song.", f.handler.Skip(ctx, inv))
}

func TestHandler_Stop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inv := invocation()

	assert.Equal(t, "I'm not connected to any voice channel.", f.handler.Stop(ctx, inv))

	f.handler.Play(ctx, inv, "song a")
	f.handler.Play(ctx, inv, "playlist")
	f.store.ToggleLoop(guild)

	assert.Equal(t, "Stopped playback and disconnected!", f.handler.Stop(ctx, inv))
	assert.Zero(t, f.store.Len(guild))
	assert.True(t, f.store.IsLoop(guild), "stop keeps the loop flag")
}

func TestHandler_ShowQueue(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inv := invocation()

	assert.Equal(t, "The queue is currently empty.", f.handler.ShowQueue(ctx, inv))

	f.handler.Play(ctx, inv, "song a")
	assert.Equal(t, "The queue is currently empty.", f.handler.ShowQueue(ctx, inv),
		"current track is not part of the queue")

	f.handler.Play(ctx, inv, "playlist")
	assert.Equal(t, "🎶 **Current Queue:**\n1. B\n2. C\n3. D", f.handler.ShowQueue(ctx, inv))
}

func TestHandler_ShowQueueTruncates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := range 200 {
		f.store.Enqueue(guild, track.QueuedTrack{Track: track.Track{Title: fmt.Sprintf("Track number %03d", i)}})
	}

	reply := f.handler.ShowQueue(ctx, invocation())
	require.True(t, strings.HasPrefix(reply, "🎶 **Current Queue:**\n1. Track number 000\n"))
	require.True(t, strings.HasSuffix(reply, "\n...and more."))

	body := strings.TrimPrefix(reply, "🎶 **Current Queue:**\n")
	body = strings.TrimSuffix(body, "\n...and more.")
	assert.Len(t, []rune(body), f.cfg.Playback.QueueDisplayLimit)
}

func TestHandler_ShuffleAndLoop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inv := invocation()

	assert.Equal(t, "Not enough songs to shuffle the queue.", f.handler.Shuffle(ctx, inv))

	f.store.Enqueue(guild, track.QueuedTrack{Track: track.Track{Title: "A"}})
	assert.Equal(t, "Not enough songs to shuffle the queue.", f.handler.Shuffle(ctx, inv))

	f.store.Enqueue(guild, track.QueuedTrack{Track: track.Track{Title: "B"}})
	assert.Equal(t, "🔀 Queue shuffled!", f.handler.Shuffle(ctx, inv))
	assert.ElementsMatch(t, []string{"A", "B"}, track.Titles(f.store.PeekAll(guild)))

	assert.Equal(t, "🔁 Loop is now **enabled**.", f.handler.ToggleLoop(ctx, inv))
	assert.Equal(t, "⏹️ Loop is now **disabled**.", f.handler.ToggleLoop(ctx, inv))
}

func TestHandler_NowPlaying(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inv := invocation()

	assert.Equal(t, "Nothing is currently playing.", f.handler.NowPlaying(ctx, inv))

	f.handler.Play(ctx, inv, "song a")
	assert.Equal(t, "▶️ **A** (requested by alice)", f.handler.NowPlaying(ctx, inv))

	f.handler.Pause(ctx, inv)
	f.store.ToggleLoop(guild)
	assert.Equal(t, "⏸️ **A** (requested by alice) 🔁", f.handler.NowPlaying(ctx, inv))
}
