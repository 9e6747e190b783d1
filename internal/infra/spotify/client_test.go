package spotify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestParseLink(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind string
		wantID   string
	}{
		{
			name:     "Spotify playlist URI",
			input:    "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			wantKind: KindPlaylist,
			wantID:   "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Spotify track URI",
			input:    "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			wantKind: KindTrack,
			wantID:   "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify playlist URL",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			wantKind: KindPlaylist,
			wantID:   "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "URL with query params",
			input:    "https://open.spotify.com/album/1DFixLWuPkv3KT3TnV35m3?si=abc123",
			wantKind: KindAlbum,
			wantID:   "1DFixLWuPkv3KT3TnV35m3",
		},
		{
			name:     "Localized URL",
			input:    "https://open.spotify.com/intl-ja/track/abc123/",
			wantKind: KindTrack,
			wantID:   "abc123",
		},
		{
			name:     "HTTP URL (not HTTPS)",
			input:    "http://open.spotify.com/artist/testID",
			wantKind: KindArtist,
			wantID:   "testID",
		},
		{
			name:  "Episode is unsupported",
			input: "https://open.spotify.com/episode/xyz",
		},
		{
			name:  "Plain text",
			input: "never gonna give you up",
		},
		{
			name:  "Empty string",
			input: "",
		},
		{
			name:  "Malformed URI",
			input: "spotify:track:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id := ParseLink(tt.input)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

type fakeAPI struct {
	track       *spotify.FullTrack
	album       *spotify.SimpleTrackPage
	playlist    []spotify.PlaylistItem
	pages       [][]spotify.PlaylistItem
	topTracks   []spotify.FullTrack
	err         error
	calls       int
	failUntil   int
	playlistReq int
}

func (f *fakeAPI) fail() error {
	f.calls++
	if f.calls <= f.failUntil {
		return f.err
	}
	return nil
}

func (f *fakeAPI) GetTrack(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.FullTrack, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.track, nil
}

func (f *fakeAPI) GetAlbumTracks(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.SimpleTrackPage, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.album, nil
}

func (f *fakeAPI) GetPlaylistItems(ctx context.Context, playlistID spotify.ID, opts ...spotify.RequestOption) (*spotify.PlaylistItemPage, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.playlistReq++
	if f.pages != nil {
		if f.playlistReq > len(f.pages) {
			return &spotify.PlaylistItemPage{}, nil
		}
		return &spotify.PlaylistItemPage{Items: f.pages[f.playlistReq-1]}, nil
	}
	return &spotify.PlaylistItemPage{Items: f.playlist}, nil
}

func (f *fakeAPI) GetArtistsTopTracks(ctx context.Context, artistID spotify.ID, country string) ([]spotify.FullTrack, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.topTracks, nil
}

func fullTrack(artist, name string) spotify.FullTrack {
	return spotify.FullTrack{SimpleTrack: spotify.SimpleTrack{
		Name:    name,
		Artists: []spotify.SimpleArtist{{Name: artist}},
	}}
}

func TestClient_LinkQueries(t *testing.T) {
	queen := fullTrack("Queen", "Bohemian Rhapsody")
	aha := fullTrack("a-ha", "Take On Me")

	tests := []struct {
		name  string
		api   *fakeAPI
		link  string
		limit int
		want  []string
	}{
		{
			name: "track",
			api:  &fakeAPI{track: &queen},
			link: "spotify:track:1",
			want: []string{"Queen - Bohemian Rhapsody"},
		},
		{
			name: "album",
			api: &fakeAPI{album: &spotify.SimpleTrackPage{Tracks: []spotify.SimpleTrack{
				queen.SimpleTrack, {Name: "No Artist"},
			}}},
			link: "https://open.spotify.com/album/1",
			want: []string{"Queen - Bohemian Rhapsody", "No Artist"},
		},
		{
			name: "playlist skips episodes",
			api: &fakeAPI{playlist: []spotify.PlaylistItem{
				{Track: spotify.PlaylistItemTrack{Track: &queen}},
				{Track: spotify.PlaylistItemTrack{Episode: &spotify.EpisodePage{}}},
				{Track: spotify.PlaylistItemTrack{Track: &aha}},
			}},
			link: "spotify:playlist:1",
			want: []string{"Queen - Bohemian Rhapsody", "a-ha - Take On Me"},
		},
		{
			name:  "artist top tracks limited",
			api:   &fakeAPI{topTracks: []spotify.FullTrack{queen, aha}},
			link:  "spotify:artist:1",
			limit: 1,
			want:  []string{"Queen - Bohemian Rhapsody"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{client: tt.api, market: "US", maxRetries: 1}
			got, err := c.LinkQueries(context.Background(), tt.link, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_LinkQueriesPaginates(t *testing.T) {
	page := func(n int) []spotify.PlaylistItem {
		items := make([]spotify.PlaylistItem, n)
		for i := range items {
			tr := fullTrack("A", fmt.Sprintf("T%d", i))
			items[i] = spotify.PlaylistItem{Track: spotify.PlaylistItemTrack{Track: &tr}}
		}
		return items
	}
	api := &fakeAPI{pages: [][]spotify.PlaylistItem{page(100), page(30)}}
	c := &Client{client: api, market: "US", maxRetries: 1}

	got, err := c.LinkQueries(context.Background(), "spotify:playlist:1", 150)
	require.NoError(t, err)
	assert.Len(t, got, 130)
	assert.Equal(t, 2, api.playlistReq)

	api = &fakeAPI{pages: [][]spotify.PlaylistItem{page(100), page(100)}}
	c = &Client{client: api, market: "US", maxRetries: 1}

	got, err = c.LinkQueries(context.Background(), "spotify:playlist:1", 100)
	require.NoError(t, err)
	assert.Len(t, got, 100)
	assert.Equal(t, 1, api.playlistReq)
}

func TestClient_LinkQueriesRetries(t *testing.T) {
	tr := fullTrack("Queen", "Bohemian Rhapsody")
	api := &fakeAPI{track: &tr, err: errors.New("Error 503: unavailable"), failUntil: 2}
	c := &Client{client: api, market: "US", maxRetries: 3}

	got, err := c.LinkQueries(context.Background(), "spotify:track:1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Queen - Bohemian Rhapsody"}, got)
	assert.Equal(t, 3, api.calls)

	api = &fakeAPI{err: errors.New("404 not found"), failUntil: 10}
	c = &Client{client: api, market: "US", maxRetries: 3}
	_, err = c.LinkQueries(context.Background(), "spotify:track:1", 0)
	assert.Error(t, err)
	assert.Equal(t, 1, api.calls)
}

func TestClient_LinkQueriesUnsupported(t *testing.T) {
	c := &Client{client: &fakeAPI{}, market: "US", maxRetries: 1}
	_, err := c.LinkQueries(context.Background(), "https://youtube.com/watch?v=1", 0)
	assert.Error(t, err)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 502",
			err:      errors.New("502 Bad Gateway"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "server error 504",
			err:      errors.New("504 Gateway Timeout"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "not found error",
			err:      errors.New("404 not found"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
