package playback

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

type fakeSink struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSink) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type fakeVoice struct {
	mu      sync.Mutex
	conns   []*fakeConn
	joinErr error
	failRef map[string]bool
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{failRef: make(map[string]bool)}
}

func (v *fakeVoice) Join(_ context.Context, guildID, channelID string) (VoiceConn, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.joinErr != nil {
		return nil, v.joinErr
	}
	c := &fakeConn{voice: v, guildID: guildID, channelID: channelID}
	v.conns = append(v.conns, c)
	return c, nil
}

func (v *fakeVoice) failStart(ref string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failRef[ref] = true
}

func (v *fakeVoice) shouldFail(ref string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.failRef[ref]
}

// last returns the most recent connection for guildID.
func (v *fakeVoice) last(guildID string) *fakeConn {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.conns) - 1; i >= 0; i-- {
		if v.conns[i].guildID == guildID {
			return v.conns[i]
		}
	}
	return nil
}

type fakeConn struct {
	voice   *fakeVoice
	guildID string

	mu           sync.Mutex
	channelID    string
	started      []string
	sessions     []*fakeSession
	disconnected bool
}

func (c *fakeConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *fakeConn) Move(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channelID = channelID
	return nil
}

func (c *fakeConn) Start(_ context.Context, streamRef string, onComplete func(error)) (Session, error) {
	if c.voice.shouldFail(streamRef) {
		return nil, errors.Newf("cannot open %s", streamRef)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &fakeSession{ref: streamRef, onComplete: onComplete, playing: true}
	c.started = append(c.started, streamRef)
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

func (c *fakeConn) Started() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.started...)
}

func (c *fakeConn) Session(i int) *fakeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 {
		i = len(c.sessions) + i
	}
	return c.sessions[i]
}

func (c *fakeConn) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// fakeSession fires its completion from a separate goroutine, like a real
// audio output.
type fakeSession struct {
	ref        string
	onComplete func(error)

	mu      sync.Mutex
	playing bool
	paused  bool
	stopped bool
}

func (s *fakeSession) finish(err error) {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
	go s.onComplete(err)
}

func (s *fakeSession) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.finish(nil)
}

func (s *fakeSession) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *fakeSession) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

func (s *fakeSession) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing && !s.paused
}

func (s *fakeSession) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *fakeSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
