// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord  DiscordConfig           `yaml:"discord"`
	Admin    AdminConfig             `yaml:"admin"`
	Playback PlaybackConfig          `yaml:"playback"`
	Resolver ResolverConfig          `yaml:"resolver"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Messages MessagesConfig          `yaml:"messages"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
	Metrics  MetricsConfig           `yaml:"metrics"`
	Hooks    HooksConfig             `yaml:"hooks"`
}

// DiscordConfig represents Discord connection configuration.
type DiscordConfig struct {
	Token    string   `yaml:"token" validate:"required"`
	GuildIDs []string `yaml:"guild_ids"` // Register commands per guild; empty registers globally
}

// AdminConfig represents admin API configuration.
type AdminConfig struct {
	Addr  string `yaml:"addr" default:":8080"`
	Token string `yaml:"token" validate:"required"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	MaxStartFailures  int    `yaml:"max_start_failures" default:"5" validate:"gte=1,lte=100"`
	LeaveOnEmpty      *bool  `yaml:"leave_on_empty" default:"true"`
	QueueDisplayLimit int    `yaml:"queue_display_limit" default:"1900" validate:"gte=100,lte=1990"`
	FFmpegPath        string `yaml:"ffmpeg_path" default:"ffmpeg"`
	BitrateKbps       int    `yaml:"bitrate_kbps" default:"96" validate:"gte=8,lte=512"`
	EventBuffer       int    `yaml:"event_buffer" default:"64" validate:"gte=1"`
}

// ShouldLeaveOnEmpty reports whether voice is left once the queue runs dry.
func (p PlaybackConfig) ShouldLeaveOnEmpty() bool {
	return p.LeaveOnEmpty == nil || *p.LeaveOnEmpty
}

// ResolverConfig represents track resolution configuration.
type ResolverConfig struct {
	Workers    int              `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	TimeoutSec int              `yaml:"timeout_sec" default:"30" validate:"gte=1,lte=600"`
	YTDLPPath  string           `yaml:"ytdlp_path" default:"yt-dlp"`
	Format     string           `yaml:"format" default:"bestaudio[abr<=256]/bestaudio"`
	Providers  []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
}

// Timeout returns the per-query resolve timeout.
func (r ResolverConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSec) * time.Second
}

// ProviderConfig represents a single resolver provider configuration.
type ProviderConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=ytdlp spotify"`
	Settings map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	NotInVoice            string `yaml:"not_in_voice" default:"You must be in a voice channel."`
	NoResults             string `yaml:"no_results" default:"No results found."`
	ResolveFailed         string `yaml:"resolve_failed" default:"Something went wrong while searching. Please try again."`
	NowPlaying            string `yaml:"now_playing" default:"Now playing: **%s**"`
	AddedToQueue          string `yaml:"added_to_queue" default:"Added **%d** song(s) to queue."`
	PlayInterrupted       string `yaml:"play_interrupted" default:"Playback was stopped before your songs could start."`
	StartFailed           string `yaml:"start_failed" default:"Could not play **%s**, skipping."`
	Skipped               string `yaml:"skipped" default:"Skipped the current song."`
	NothingToSkip         string `yaml:"nothing_to_skip" default:"Not playing anything to skip."`
	NotInVoiceChannel     string `yaml:"bot_not_in_voice" default:"I'm not in a voice channel."`
	NothingPlaying        string `yaml:"nothing_playing" default:"Nothing is currently playing."`
	Paused                string `yaml:"paused" default:"Playback paused!"`
	NotPaused             string `yaml:"not_paused" default:"I’m not paused right now."`
	Resumed               string `yaml:"resumed" default:"Playback resumed!"`
	Stopped               string `yaml:"stopped" default:"Stopped playback and disconnected!"`
	NotConnected          string `yaml:"not_connected" default:"I'm not connected to any voice channel."`
	QueueEmpty            string `yaml:"queue_empty" default:"The queue is currently empty."`
	QueueHeader           string `yaml:"queue_header" default:"🎶 **Current Queue:**"`
	QueueTruncated        string `yaml:"queue_truncated" default:"...and more."`
	NotEnoughToShuffle    string `yaml:"not_enough_to_shuffle" default:"Not enough songs to shuffle the queue."`
	Shuffled              string `yaml:"shuffled" default:"🔀 Queue shuffled!"`
	LoopEnabled           string `yaml:"loop_enabled" default:"🔁 Loop is now **enabled**."`
	LoopDisabled          string `yaml:"loop_disabled" default:"⏹️ Loop is now **disabled**."`
	NowPlayingStatus      string `yaml:"now_playing_status" default:"%s **%s** (requested by %s)"`
	DefaultError          string `yaml:"default_error" default:"Something went wrong."`
	DuplicateTrack        string `yaml:"duplicate_track" default:"That song is already in the queue."`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"That song is too long."`
	QueueLimitExceeded    string `yaml:"queue_limit_exceeded" default:"The queue is full."`
	BlockedUser           string `yaml:"blocked_user" default:"You are not allowed to add songs."`
}

// SpotifyConfig represents Spotify API configuration.
// Spotify resolution is disabled when the credentials are empty.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// Enabled reports whether Spotify credentials are configured.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// MetricsConfig represents metrics exposition configuration.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics" validate:"startswith=/"`
}

// IsEnabled reports whether metrics are served.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse decodes, completes and validates configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		c.Playback.FFmpegPath = v
	}
}

// GetMessage returns the message for the given filter code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	case "queue_limit_exceeded":
		return c.Messages.QueueLimitExceeded
	case "blocked_user":
		return c.Messages.BlockedUser
	case "no_results":
		return c.Messages.NoResults
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	// A spotify provider needs credentials
	for i, p := range c.Resolver.Providers {
		if p.Type == "spotify" && !c.Spotify.Enabled() {
			return errors.Newf("resolver provider %d (spotify) requires spotify.client_id and spotify.client_secret", i)
		}
	}

	for _, id := range c.Discord.GuildIDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("discord.guild_ids must not contain empty IDs")
		}
	}

	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
