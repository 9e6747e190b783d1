// Package ytdlp provides a media extractor backed by the yt-dlp binary.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/resolver"
	"github.com/osa030/tunebox/internal/domain/track"
)

// Config represents yt-dlp invocation settings.
type Config struct {
	Path   string // Binary path, "yt-dlp" when empty
	Format string // Format selector
}

// runFunc executes the binary and returns stdout and stderr.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Client runs yt-dlp to extract stream URLs and metadata.
type Client struct {
	path   string
	format string
	run    runFunc
}

// NewClient creates a new yt-dlp client.
func NewClient(cfg Config) *Client {
	if cfg.Path == "" {
		cfg.Path = "yt-dlp"
	}
	if cfg.Format == "" {
		cfg.Format = "bestaudio[abr<=256]/bestaudio"
	}
	return &Client{
		path:   cfg.Path,
		format: cfg.Format,
		run:    execRun,
	}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Available reports whether the binary can be found.
func (c *Client) Available() error {
	if _, err := exec.LookPath(c.path); err != nil {
		return errors.Wrapf(err, "%s not found", c.path)
	}
	return nil
}

// Extract resolves target (a URL or a "ytsearchN:" query) without
// downloading. Playlists yield one track per playable entry.
func (c *Client) Extract(ctx context.Context, target string) ([]track.Track, error) {
	args := []string{
		"--dump-single-json",
		"--no-warnings",
		"--yes-playlist",
		"--format", c.format,
		"--", target,
	}

	start := time.Now()
	stdout, stderr, err := c.run(ctx, c.path, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "yt-dlp cancelled")
		}
		msg := strings.TrimSpace(string(stderr))
		zlog.Debug().Msgf("yt-dlp failed: target=%q error=%v stderr=%s", target, err, msg)
		if isNoResult(msg) {
			return nil, resolver.MarkNotFound(errors.Newf("yt-dlp: %s", msg))
		}
		return nil, resolver.MarkTransport(errors.Wrapf(err, "yt-dlp: %s", msg))
	}

	tracks, err := parseInfo(stdout)
	if err != nil {
		return nil, resolver.MarkTransport(err)
	}
	zlog.Debug().Msgf("yt-dlp extracted: target=%q tracks=%d elapsed=%v", target, len(tracks), time.Since(start))
	if len(tracks) == 0 {
		return nil, resolver.MarkNotFound(errors.Newf("yt-dlp: no playable entries for %q", target))
	}
	return tracks, nil
}

// isNoResult reports whether stderr describes a missing or unsupported
// item rather than a tool failure.
func isNoResult(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, s := range []string{
		"unsupported url",
		"video unavailable",
		"private video",
		"no video results",
		"is not a valid url",
		"does not exist",
		"http error 404",
	} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// info is the subset of yt-dlp's JSON output the bot uses.
type info struct {
	Type       string  `json:"_type"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	WebpageURL string  `json:"webpage_url"`
	Duration   float64 `json:"duration"`
	Entries    []*info `json:"entries"`
}

func parseInfo(data []byte) ([]track.Track, error) {
	var root info
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "failed to decode yt-dlp output")
	}

	var tracks []track.Track
	var walk func(in *info)
	walk = func(in *info) {
		if in == nil {
			return
		}
		if in.Type == "playlist" || in.Entries != nil {
			for _, e := range in.Entries {
				walk(e)
			}
			return
		}
		if in.URL == "" {
			return
		}
		title := in.Title
		if strings.TrimSpace(title) == "" {
			title = "Untitled"
		}
		tracks = append(tracks, track.Track{
			StreamRef:  in.URL,
			Title:      title,
			WebpageURL: in.WebpageURL,
			Duration:   time.Duration(in.Duration * float64(time.Second)),
		})
	}
	walk(&root)

	return tracks, nil
}
