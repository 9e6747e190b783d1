package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
discord:
  token: test-discord-token
admin:
  token: test-admin-token
resolver:
  providers:
    - type: ytdlp
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Admin.Addr)
	assert.Equal(t, 5, cfg.Playback.MaxStartFailures)
	assert.True(t, cfg.Playback.ShouldLeaveOnEmpty())
	assert.Equal(t, 1900, cfg.Playback.QueueDisplayLimit)
	assert.Equal(t, "ffmpeg", cfg.Playback.FFmpegPath)
	assert.Equal(t, 96, cfg.Playback.BitrateKbps)
	assert.Equal(t, 64, cfg.Playback.EventBuffer)
	assert.Equal(t, 4, cfg.Resolver.Workers)
	assert.Equal(t, 30, cfg.Resolver.TimeoutSec)
	assert.Equal(t, "yt-dlp", cfg.Resolver.YTDLPPath)
	assert.Equal(t, "US", cfg.Spotify.Market)
	assert.True(t, cfg.Metrics.IsEnabled())
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Spotify.Enabled())

	assert.Equal(t, "You must be in a voice channel.", cfg.Messages.NotInVoice)
	assert.Equal(t, "Added **%d** song(s) to queue.", cfg.Messages.AddedToQueue)
	assert.Equal(t, "🔁 Loop is now **enabled**.", cfg.Messages.LoopEnabled)
}

func TestParse_ExplicitFalseIsKept(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
playback:
  leave_on_empty: false
metrics:
  enabled: false
`))
	require.NoError(t, err)

	assert.False(t, cfg.Playback.ShouldLeaveOnEmpty())
	assert.False(t, cfg.Metrics.IsEnabled())
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-discord")
	t.Setenv("ADMIN_TOKEN", "env-admin")
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")

	cfg, err := Parse([]byte(`
resolver:
  providers:
    - type: spotify
    - type: ytdlp
`))
	require.NoError(t, err)

	assert.Equal(t, "env-discord", cfg.Discord.Token)
	assert.Equal(t, "env-admin", cfg.Admin.Token)
	assert.True(t, cfg.Spotify.Enabled())
}

func TestParse_Validation(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("ADMIN_TOKEN", "")
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")

	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name: "missing discord token",
			yaml: `
admin:
  token: t
resolver:
  providers:
    - type: ytdlp
`,
			errMsg: "Token",
		},
		{
			name: "missing admin token",
			yaml: `
discord:
  token: t
resolver:
  providers:
    - type: ytdlp
`,
			errMsg: "Token",
		},
		{
			name: "no providers",
			yaml: `
discord:
  token: t
admin:
  token: t
`,
			errMsg: "Providers",
		},
		{
			name: "unknown provider type",
			yaml: `
discord:
  token: t
admin:
  token: t
resolver:
  providers:
    - type: soundcloud
`,
			errMsg: "Type",
		},
		{
			name: "spotify provider without credentials",
			yaml: `
discord:
  token: t
admin:
  token: t
resolver:
  providers:
    - type: spotify
`,
			errMsg: "spotify.client_id",
		},
		{
			name:   "invalid market length",
			yaml:   minimalYAML + "spotify:\n  market: JAPAN\n",
			errMsg: "Market",
		},
		{
			name:   "max start failures out of range",
			yaml:   minimalYAML + "playback:\n  max_start_failures: 1000\n",
			errMsg: "MaxStartFailures",
		},
		{
			name: "empty guild id",
			yaml: `
discord:
  token: t
  guild_ids: ["123", " "]
admin:
  token: t
resolver:
  providers:
    - type: ytdlp
`,
			errMsg: "guild_ids",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err, "expected validation to fail")
			assert.Contains(t, err.Error(), tt.errMsg,
				"error message should mention the problematic field")
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-discord-token", cfg.Discord.Token)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_FilterAccessors(t *testing.T) {
	cfg := &Config{
		Filters: map[string]FilterConfig{
			"queue_limit_filter": {Enabled: true, Settings: map[string]any{"max_tracks": 10}},
			"blocked_user_filter": {Enabled: false},
		},
	}

	assert.True(t, cfg.IsFilterEnabled("queue_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("blocked_user_filter"))
	assert.False(t, cfg.IsFilterEnabled("unknown"))
	assert.Equal(t, map[string]any{"max_tracks": 10}, cfg.GetFilterSettings("queue_limit_filter"))
	assert.Nil(t, cfg.GetFilterSettings("unknown"))
}

func TestConfig_GetMessage(t *testing.T) {
	cfg := &Config{Messages: MessagesConfig{
		DuplicateTrack: "dup",
		DefaultError:   "oops",
	}}

	assert.Equal(t, "dup", cfg.GetMessage("duplicate_track"))
	assert.Equal(t, "oops", cfg.GetMessage("something_else"))
}
