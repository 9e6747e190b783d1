package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/track"
)

type msgKind int

const (
	msgConnect msgKind = iota
	msgStartIfIdle
	msgSkip
	msgPause
	msgResume
	msgStop
	msgComplete
)

func (k msgKind) String() string {
	switch k {
	case msgConnect:
		return "connect"
	case msgStartIfIdle:
		return "start_if_idle"
	case msgSkip:
		return "skip"
	case msgPause:
		return "pause"
	case msgResume:
		return "resume"
	case msgStop:
		return "stop"
	case msgComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// message is a unit of work for the player goroutine.
type message struct {
	kind      msgKind
	ctx       context.Context
	gen       uint64 // completion: session generation; skip: generation observed by the caller
	err       error  // completion error
	channelID string
	sink      Sink
	reply     chan result // nil for fire-and-forget messages
}

type result struct {
	err       error
	track     *track.QueuedTrack
	started   bool
	connected bool
}

func (m message) respond(r result) {
	if m.reply != nil {
		m.reply <- r
	}
}

// Snapshot is a read-only view of a player's state.
type Snapshot struct {
	GuildID    string
	State      State
	Current    *track.QueuedTrack
	ChannelID  string // Voice channel, empty when disconnected
	Generation uint64
}

// Player owns the playback state of one guild. All state below the mailbox
// fields is touched only by the run goroutine.
type Player struct {
	guildID string
	ctrl    *Controller
	log     zerolog.Logger

	mu      sync.Mutex
	pending []message
	wake    chan struct{}

	gen atomic.Uint64

	state   State
	conn    VoiceConn
	session Session
	current *track.QueuedTrack
	sink    Sink

	snapMu sync.RWMutex
	snap   Snapshot
}

func newPlayer(guildID string, ctrl *Controller) *Player {
	return &Player{
		guildID: guildID,
		ctrl:    ctrl,
		log:     zlog.With().Str("guild_id", guildID).Logger(),
		wake:    make(chan struct{}, 1),
		state:   StateIdle,
		snap:    Snapshot{GuildID: guildID, State: StateIdle},
	}
}

// submit posts m to the mailbox. It never blocks and is safe to call from
// any goroutine, including audio output callbacks.
func (p *Player) submit(m message) {
	p.mu.Lock()
	p.pending = append(p.pending, m)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest pending message.
func (p *Player) next() (message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) == 0 {
		return message{}, false
	}
	m := p.pending[0]
	p.pending[0] = message{}
	p.pending = p.pending[1:]
	return m, true
}

// call submits m and waits for the player to handle it.
func (p *Player) call(ctx context.Context, m message) (result, error) {
	m.ctx = ctx
	m.reply = make(chan result, 1)
	p.submit(m)

	select {
	case r := <-m.reply:
		return r, r.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-p.ctrl.ctx.Done():
		return result{}, ErrClosed
	}
}

// run drains the mailbox until ctx is cancelled.
func (p *Player) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return
		case <-p.wake:
			for {
				m, ok := p.next()
				if !ok {
					break
				}
				p.dispatch(ctx, m)
			}
		}
	}
}

// dispatch handles one message and publishes the resulting snapshot before
// replying, so callers observe their own effect through Snapshot.
func (p *Player) dispatch(ctx context.Context, m message) {
	r := p.handle(ctx, m)
	p.publishSnapshot()
	m.respond(r)
}

// handle runs the handler for m. A panic is contained to the message that
// caused it so the guild keeps working.
func (p *Player) handle(ctx context.Context, m message) (r result) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().Msgf("playback: player panicked: msg=%s panic=%v", m.kind, rec)
			r = result{err: errors.Newf("playback: internal error handling %s", m.kind)}
		}
	}()

	switch m.kind {
	case msgConnect:
		return p.handleConnect(m)
	case msgStartIfIdle:
		return p.handleStartIfIdle(ctx, m)
	case msgSkip:
		return p.handleSkip(m)
	case msgPause:
		return p.handlePause()
	case msgResume:
		return p.handleResume()
	case msgStop:
		return p.handleStop()
	case msgComplete:
		p.handleComplete(ctx, m)
	}
	return result{}
}

func (p *Player) handleConnect(m message) result {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if p.conn == nil {
		conn, err := p.ctrl.voice.Join(ctx, p.guildID, m.channelID)
		if err != nil {
			return result{err: errors.Wrapf(err, "failed to join voice channel %s", m.channelID)}
		}
		p.conn = conn
		p.log.Info().Msgf("playback: joined voice channel: channel_id=%s", m.channelID)
		return result{connected: true}
	}

	if p.conn.ChannelID() != m.channelID {
		if err := p.conn.Move(ctx, m.channelID); err != nil {
			return result{err: errors.Wrapf(err, "failed to move to voice channel %s", m.channelID)}
		}
		p.log.Info().Msgf("playback: moved voice channel: channel_id=%s", m.channelID)
	}
	return result{connected: true}
}

func (p *Player) handleStartIfIdle(ctx context.Context, m message) result {
	if m.sink != nil {
		p.sink = m.sink
	}

	if p.session != nil {
		return result{started: false, track: p.current}
	}
	if p.conn == nil {
		return result{err: ErrNotConnected}
	}

	started := p.advance(ctx)
	return result{started: started != nil, track: started}
}

func (p *Player) handleSkip(m message) result {
	if p.session == nil {
		return result{err: ErrNothingToSkip}
	}

	// The caller observed an older session; it already ended and the queue
	// advanced on its completion, so this skip has nothing left to do.
	if m.gen != 0 && m.gen != p.gen.Load() {
		p.log.Debug().Msgf("playback: skip targets superseded session: target_gen=%d current_gen=%d", m.gen, p.gen.Load())
		return result{}
	}

	skipped := p.current
	p.ctrl.emit(Event{
		Type:       EventTrackSkipped,
		GuildID:    p.guildID,
		Track:      skipped,
		State:      p.state,
		Generation: p.gen.Load(),
	})

	// Stopping fires the session's completion, which advances the queue.
	p.session.Stop()
	return result{track: skipped}
}

func (p *Player) handlePause() result {
	if p.session == nil || p.state != StatePlaying {
		return result{err: ErrNotPlaying}
	}

	p.session.Pause()
	p.state = StatePaused
	p.ctrl.emit(Event{
		Type:       EventStateChanged,
		GuildID:    p.guildID,
		Track:      p.current,
		State:      p.state,
		Generation: p.gen.Load(),
	})
	return result{track: p.current}
}

func (p *Player) handleResume() result {
	if p.session == nil || p.state != StatePaused {
		return result{err: ErrNotPaused}
	}

	p.session.Resume()
	p.state = StatePlaying
	p.ctrl.emit(Event{
		Type:       EventStateChanged,
		GuildID:    p.guildID,
		Track:      p.current,
		State:      p.state,
		Generation: p.gen.Load(),
	})
	return result{track: p.current}
}

func (p *Player) handleStop() result {
	removed := p.ctrl.store.Clear(p.guildID)
	wasConnected := p.conn != nil

	// Invalidate the running session before stopping it so its completion
	// arrives stale.
	gen := p.gen.Add(1)
	if p.session != nil {
		p.session.Stop()
	}
	p.session = nil
	p.current = nil
	p.state = StateIdle
	p.disconnect()

	p.log.Info().Msgf("playback: stopped: cleared=%d was_connected=%t", len(removed), wasConnected)
	p.ctrl.emit(Event{
		Type:       EventStopped,
		GuildID:    p.guildID,
		State:      p.state,
		Generation: gen,
	})
	return result{connected: wasConnected}
}

func (p *Player) handleComplete(ctx context.Context, m message) {
	if p.session == nil || m.gen != p.gen.Load() {
		p.log.Debug().Msgf("playback: dropping stale completion: gen=%d current_gen=%d", m.gen, p.gen.Load())
		p.ctrl.emit(Event{
			Type:       EventStaleCompletion,
			GuildID:    p.guildID,
			State:      p.state,
			Generation: m.gen,
			Err:        m.err,
		})
		return
	}

	ended := p.current
	if m.err != nil {
		p.log.Warn().Err(m.err).Msgf("playback: track ended with error: title=%s", ended.Track.DisplayTitle())
	} else {
		p.log.Debug().Msgf("playback: track ended: title=%s", ended.Track.DisplayTitle())
	}

	p.session = nil
	p.current = nil
	p.ctrl.emit(Event{
		Type:       EventTrackEnded,
		GuildID:    p.guildID,
		Track:      ended,
		State:      p.state,
		Generation: m.gen,
		Err:        m.err,
	})

	p.advance(ctx)
}

// advance pops the next track and starts it. A track that fails to start
// is reported and skipped. The guild is torn down to idle when the queue is
// exhausted, or with loop on after MaxStartFailures consecutive failures,
// since a looped queue never shrinks. Returns the started track or nil.
func (p *Player) advance(ctx context.Context) *track.QueuedTrack {
	failures := 0
	for {
		qt, ok := p.ctrl.store.PopFront(p.guildID)
		if !ok {
			p.log.Info().Msg("playback: queue empty")
			p.teardown()
			p.ctrl.emit(Event{
				Type:       EventQueueEmpty,
				GuildID:    p.guildID,
				State:      p.state,
				Generation: p.gen.Load(),
			})
			return nil
		}

		gen := p.gen.Add(1)
		session, err := p.conn.Start(ctx, qt.Track.StreamRef, p.completion(gen))
		if err != nil {
			failures++
			p.log.Error().Err(err).Msgf("playback: failed to start track: title=%s failures=%d", qt.Track.DisplayTitle(), failures)
			p.announce(fmt.Sprintf(p.ctrl.config.StartFailedFormat, qt.Track.DisplayTitle()))
			p.ctrl.emit(Event{
				Type:       EventStartFailed,
				GuildID:    p.guildID,
				Track:      &qt,
				State:      p.state,
				Generation: gen,
				Err:        err,
			})
			if p.ctrl.store.IsLoop(p.guildID) && failures >= p.ctrl.config.MaxStartFailures {
				p.log.Warn().Msgf("playback: giving up after consecutive start failures: failures=%d", failures)
				p.teardown()
				return nil
			}
			continue
		}

		p.session = session
		p.current = &qt
		p.state = StatePlaying

		p.log.Info().Msgf("playback: now playing: title=%s gen=%d", qt.Track.DisplayTitle(), gen)
		p.announce(fmt.Sprintf(p.ctrl.config.NowPlayingFormat, qt.Track.DisplayTitle()))
		p.ctrl.emit(Event{
			Type:       EventTrackStarted,
			GuildID:    p.guildID,
			Track:      p.current,
			State:      p.state,
			Generation: gen,
		})
		return p.current
	}
}

// completion returns the callback handed to the audio output for the
// session of generation gen. Extra invocations are ignored.
func (p *Player) completion(gen uint64) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			p.submit(message{kind: msgComplete, gen: gen, err: err})
		})
	}
}

// teardown returns the guild to idle after the queue ran dry.
func (p *Player) teardown() {
	p.session = nil
	p.current = nil
	p.state = StateIdle
	if p.ctrl.config.LeaveOnEmpty {
		p.disconnect()
	}
}

func (p *Player) disconnect() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Disconnect(); err != nil {
		p.log.Warn().Err(err).Msg("playback: failed to disconnect voice")
	}
	p.conn = nil
}

// shutdown releases the voice connection when the controller closes.
func (p *Player) shutdown() {
	p.gen.Add(1)
	if p.session != nil {
		p.session.Stop()
	}
	p.session = nil
	p.current = nil
	p.state = StateIdle
	p.disconnect()
	p.publishSnapshot()
}

func (p *Player) announce(text string) {
	if p.sink == nil || text == "" {
		return
	}
	if err := p.sink.Send(text); err != nil {
		p.log.Warn().Err(err).Msg("playback: failed to send announcement")
	}
}

func (p *Player) publishSnapshot() {
	snap := Snapshot{
		GuildID:    p.guildID,
		State:      p.state,
		Current:    p.current,
		Generation: p.gen.Load(),
	}
	if p.conn != nil {
		snap.ChannelID = p.conn.ChannelID()
	}

	p.snapMu.Lock()
	p.snap = snap
	p.snapMu.Unlock()
}

// Snapshot returns the state published after the last handled message.
func (p *Player) Snapshot() Snapshot {
	p.snapMu.RLock()
	defer p.snapMu.RUnlock()
	return p.snap
}
