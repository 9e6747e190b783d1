package jukebox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunebox/internal/app/command"
	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/domain/track"
	"github.com/osa030/tunebox/internal/infra/config"
)

type stubVoice struct{}

func (stubVoice) Join(_ context.Context, _, channelID string) (playback.VoiceConn, error) {
	return &stubConn{channelID: channelID}, nil
}

type stubConn struct {
	mu        sync.Mutex
	channelID string
}

func (c *stubConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *stubConn) Move(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channelID = channelID
	return nil
}

func (c *stubConn) Start(_ context.Context, _ string, onComplete func(error)) (playback.Session, error) {
	return &stubSession{onComplete: onComplete}, nil
}

func (c *stubConn) Disconnect() error { return nil }

type stubSession struct {
	once       sync.Once
	onComplete func(error)
	paused     bool
}

func (s *stubSession) Stop() {
	s.once.Do(func() { go s.onComplete(nil) })
}
func (s *stubSession) Pause()          { s.paused = true }
func (s *stubSession) Resume()         { s.paused = false }
func (s *stubSession) IsPlaying() bool { return !s.paused }
func (s *stubSession) IsPaused() bool  { return s.paused }

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, query string) ([]track.Track, error) {
	return []track.Track{{Title: query, StreamRef: "ref:" + query}}, nil
}

type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *countingRecorder) RecordPlaybackEvent(_ context.Context, event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event]++
}

func (r *countingRecorder) Count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[event]
}

type chanStream struct {
	ch chan *notification.Notification
}

func (s *chanStream) Send(n *notification.Notification) error {
	s.ch <- n
	return nil
}

func newTestManager(t *testing.T, extra string) (*Manager, *countingRecorder) {
	t.Helper()
	cfg, err := config.Parse([]byte(`
discord:
  token: d
admin:
  token: a
resolver:
  providers:
    - type: ytdlp
` + extra))
	require.NoError(t, err)

	rec := &countingRecorder{events: make(map[string]int)}
	m, err := NewManager(cfg, stubVoice{}, stubResolver{}, rec)
	require.NoError(t, err)
	m.Start()
	t.Cleanup(m.Close)
	return m, rec
}

func inv(guildID string) command.Invocation {
	return command.Invocation{
		GuildID:        guildID,
		VoiceChannelID: "vc",
		Requester:      track.Requester{ID: "u1", Name: "alice"},
	}
}

func waitNotification(t *testing.T, ch <-chan *notification.Notification, typ notification.Type) *notification.Notification {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n := <-ch:
			if n.Type == typ {
				return n
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return nil
		}
	}
}

func TestManager_PlayBroadcastsAndTracks(t *testing.T) {
	m, rec := newTestManager(t, "")
	ctx := context.Background()

	stream := &chanStream{ch: make(chan *notification.Notification, 16)}
	m.Notifications().Subscribe("g1", stream)

	assert.Equal(t, "Now playing: **first**", m.Commands().Play(ctx, inv("g1"), "first"))
	assert.Equal(t, "Added **1** song(s) to queue.", m.Commands().Play(ctx, inv("g1"), "second"))

	n := waitNotification(t, stream.ch, notification.TypeTrackStarted)
	assert.Equal(t, "first", n.Title)
	assert.Equal(t, "alice", n.Requester)
	assert.Equal(t, "playing", n.State)

	assert.Equal(t, []string{"first", "second"}, track.Titles(m.Tracks("g1")))
	assert.Empty(t, m.Tracks("g2"))
	assert.Equal(t, 1, m.QueuedTracks())
	assert.Equal(t, 1, m.ActivePlayers())

	status := m.Status("g1")
	assert.Equal(t, "playing", status.State)
	assert.Equal(t, "vc", status.ChannelID)
	assert.Equal(t, 1, status.QueueLength)
	require.NotNil(t, status.Current)
	assert.Equal(t, "first", status.Current.Track.Title)

	require.NoError(t, m.Skip(ctx, "g1"))
	n = waitNotification(t, stream.ch, notification.TypeTrackStarted)
	assert.Equal(t, "second", n.Title)

	assert.Eventually(t, func() bool { return rec.Count("track_started") == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rec.Count("track_skipped"))
}

func TestManager_AdminOperations(t *testing.T) {
	m, _ := newTestManager(t, "")
	ctx := context.Background()

	m.Commands().Play(ctx, inv("g1"), "a")
	m.Commands().Play(ctx, inv("g1"), "b")
	m.Commands().Play(ctx, inv("g1"), "c")

	assert.True(t, m.Shuffle("g1"))
	assert.ElementsMatch(t, []string{"b", "c"}, track.Titles(m.Queue("g1")))
	assert.True(t, m.ToggleLoop("g1"))
	assert.True(t, m.Status("g1").Loop)

	require.NoError(t, m.Pause(ctx, "g1"))
	assert.Equal(t, "paused", m.Status("g1").State)
	assert.ErrorIs(t, m.Pause(ctx, "g1"), playback.ErrNotPlaying)
	require.NoError(t, m.Resume(ctx, "g1"))

	was, err := m.Stop(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, was)
	assert.Equal(t, "idle", m.Status("g1").State)
	assert.Empty(t, m.Queue("g1"))

	guilds := m.Guilds()
	require.Len(t, guilds, 1)
	assert.Equal(t, "g1", guilds[0].GuildID)
}

func TestManager_FiltersUseCurrentTrack(t *testing.T) {
	m, _ := newTestManager(t, `
filters:
  duplicate_track_filter:
    enabled: true
`)
	ctx := context.Background()

	assert.Equal(t, "Now playing: **a**", m.Commands().Play(ctx, inv("g1"), "a"))
	assert.Equal(t, "That song is already in the queue.", m.Commands().Play(ctx, inv("g1"), "a"))
	assert.Equal(t, "Now playing: **a**", m.Commands().Play(ctx, inv("g2"), "a"))
}

func TestManager_UnknownFilter(t *testing.T) {
	cfg, err := config.Parse([]byte(`
discord:
  token: d
admin:
  token: a
resolver:
  providers:
    - type: ytdlp
filters:
  no_such_filter:
    enabled: true
`))
	require.NoError(t, err)

	_, err = NewManager(cfg, stubVoice{}, stubResolver{}, nil)
	assert.Error(t, err)
}

func TestManager_ReadyAfterClose(t *testing.T) {
	m, _ := newTestManager(t, "")
	require.NoError(t, m.Ready(context.Background()))

	m.Close()
	assert.ErrorIs(t, m.Ready(context.Background()), ErrNotRunning)
}

func TestManager_CloseWaitsForEventLoop(t *testing.T) {
	m, _ := newTestManager(t, "")
	m.Close()

	select {
	case <-m.done:
	default:
		t.Fatal("event loop still running after Close")
	}
}

func TestManager_CloseWithoutStart(t *testing.T) {
	cfg, err := config.Parse([]byte(`
discord:
  token: t
admin:
  token: a
resolver:
  providers:
    - type: ytdlp
`))
	require.NoError(t, err)
	m, err := NewManager(cfg, stubVoice{}, stubResolver{}, nil)
	require.NoError(t, err)

	m.Close()
	assert.ErrorIs(t, m.Ready(context.Background()), ErrNotRunning)
}
