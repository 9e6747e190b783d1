package discord

import (
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// pcmSource is a running decoder producing 48 kHz stereo s16le PCM.
type pcmSource interface {
	io.Reader
	// Close stops the decoder and reports how it exited.
	Close() error
}

// openPCMFunc starts decoding streamRef.
type openPCMFunc func(ctx context.Context, streamRef string) (pcmSource, error)

// ffmpegSource decodes a media URL with an ffmpeg child process.
type ffmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

// ffmpegOpener returns an openPCMFunc running the ffmpeg binary at path.
func ffmpegOpener(path string) openPCMFunc {
	return func(ctx context.Context, streamRef string) (pcmSource, error) {
		ctx, cancel := context.WithCancel(ctx)
		cmd := exec.CommandContext(ctx, path,
			"-hide_banner", "-loglevel", "error",
			"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5",
			"-i", streamRef,
			"-vn",
			"-f", "s16le", "-ar", "48000", "-ac", "2",
			"pipe:1",
		)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			cancel()
			return nil, errors.Wrap(err, "failed to open ffmpeg stdout")
		}
		if err := cmd.Start(); err != nil {
			cancel()
			return nil, errors.Wrapf(err, "failed to start ffmpeg: path=%s", path)
		}
		return &ffmpegSource{cmd: cmd, stdout: stdout, cancel: cancel}, nil
	}
}

func (f *ffmpegSource) Read(p []byte) (int, error) {
	return f.stdout.Read(p)
}

func (f *ffmpegSource) Close() error {
	f.once.Do(func() {
		f.cancel()
		f.err = f.cmd.Wait()
	})
	return f.err
}

// StreamSession plays one track into a voice connection. It reads PCM from
// its source, encodes it to Opus and sends it on the connection's Opus
// channel until the source ends or Stop is called.
type StreamSession struct {
	source   pcmSource
	encoder  frameEncoder
	out      chan<- []byte
	speaking func(bool)

	mu      sync.Mutex
	paused  bool
	resume  chan struct{}
	playing bool

	stop     chan struct{}
	stopOnce sync.Once
	stopped  bool

	onComplete func(error)
}

func newStreamSession(
	source pcmSource,
	encoder frameEncoder,
	out chan<- []byte,
	speaking func(bool),
	onComplete func(error),
) *StreamSession {
	return &StreamSession{
		source:     source,
		encoder:    encoder,
		out:        out,
		speaking:   speaking,
		playing:    true,
		stop:       make(chan struct{}),
		onComplete: onComplete,
	}
}

// start runs the send loop on its own goroutine.
func (s *StreamSession) start() {
	go s.run()
}

func (s *StreamSession) run() {
	err := s.sendLoop()

	closeErr := s.source.Close()
	s.mu.Lock()
	s.playing = false
	stopped := s.stopped
	s.mu.Unlock()

	if s.speaking != nil {
		s.speaking(false)
	}

	// A stopped session always completes cleanly; the decoder was killed
	if stopped {
		err = nil
	} else if err == nil && closeErr != nil {
		err = errors.Wrap(closeErr, "decoder exited with error")
	}
	if err != nil {
		zlog.Warn().Msgf("stream ended with error: %v", err)
	}
	s.onComplete(err)
}

func (s *StreamSession) sendLoop() error {
	buf := make([]byte, opusFrameBytes)
	pcm := make([]int16, 0, opusFrameBytes/2)
	speaking := false

	for {
		if !s.waitIfPaused() {
			return nil
		}

		if _, err := io.ReadFull(s.source, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			select {
			case <-s.stop:
				return nil
			default:
			}
			return errors.Wrap(err, "failed to read pcm")
		}

		packet, err := s.encoder.encode(bytesToInt16s(buf, pcm))
		if err != nil {
			return err
		}

		if !speaking && s.speaking != nil {
			s.speaking(true)
			speaking = true
		}

		select {
		case s.out <- packet:
		case <-s.stop:
			return nil
		}
	}
}

// waitIfPaused blocks while paused. It reports false once stopped.
func (s *StreamSession) waitIfPaused() bool {
	s.mu.Lock()
	resume := s.resume
	paused := s.paused
	s.mu.Unlock()

	if !paused {
		select {
		case <-s.stop:
			return false
		default:
			return true
		}
	}

	select {
	case <-resume:
		return true
	case <-s.stop:
		return false
	}
}

// Stop ends playback. The completion callback still fires exactly once.
func (s *StreamSession) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.stop)
		// Unblocks a read waiting on the decoder
		_ = s.source.Close()
	})
}

// Pause suspends sending without ending the session.
func (s *StreamSession) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || !s.playing {
		return
	}
	s.paused = true
	s.resume = make(chan struct{})
}

// Resume continues a paused session.
func (s *StreamSession) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	close(s.resume)
}

// IsPlaying reports whether audio is being sent.
func (s *StreamSession) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing && !s.paused
}

// IsPaused reports whether the session is paused.
func (s *StreamSession) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing && s.paused
}
