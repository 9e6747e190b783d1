// Package spotify provides a client for the Spotify Web API.
//
// The bot never streams from Spotify. Links are turned into "Artist - Title"
// queries that the media extractor can search for.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// Link kinds
const (
	KindTrack    = "track"
	KindAlbum    = "album"
	KindPlaylist = "playlist"
	KindArtist   = "artist"
)

// api is the subset of the Spotify client used here.
type api interface {
	GetTrack(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.FullTrack, error)
	GetAlbumTracks(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.SimpleTrackPage, error)
	GetPlaylistItems(ctx context.Context, playlistID spotify.ID, opts ...spotify.RequestOption) (*spotify.PlaylistItemPage, error)
	GetArtistsTopTracks(ctx context.Context, artistID spotify.ID, country string) ([]spotify.FullTrack, error)
}

// Client is a Spotify API client.
type Client struct {
	client     api
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// New creates a new Spotify client authenticated with the client
// credentials flow. Only public catalog data is reachable.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := creds.Token(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to obtain spotify token")
	}

	// HTTP client refreshes the token on expiry
	client := spotify.New(creds.Client(context.Background()))

	market := cfg.Market
	if market == "" {
		market = "US"
	}

	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// LinkQueries returns one search query per track behind link, at most
// limit of them, in Spotify order.
func (c *Client) LinkQueries(ctx context.Context, link string, limit int) ([]string, error) {
	kind, id := ParseLink(link)
	if id == "" {
		return nil, errors.Newf("unsupported spotify link: %s", link)
	}
	if limit <= 0 {
		limit = 50
	}

	var queries []string
	var err error
	switch kind {
	case KindTrack:
		queries, err = c.trackQueries(ctx, id)
	case KindAlbum:
		queries, err = c.albumQueries(ctx, id, limit)
	case KindPlaylist:
		queries, err = c.playlistQueries(ctx, id, limit)
	case KindArtist:
		queries, err = c.artistQueries(ctx, id)
	default:
		return nil, errors.Newf("unsupported spotify link kind: %s", kind)
	}
	if err != nil {
		return nil, err
	}

	if len(queries) > limit {
		queries = queries[:limit]
	}
	zlog.Debug().Msgf("spotify: expanded link: kind=%s id=%s queries=%d", kind, id, len(queries))
	return queries, nil
}

func (c *Client) trackQueries(ctx context.Context, id string) ([]string, error) {
	var result *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}
	return []string{searchQuery(result.Artists, result.Name)}, nil
}

func (c *Client) albumQueries(ctx context.Context, id string, limit int) ([]string, error) {
	var page *spotify.SimpleTrackPage
	err := c.retry(func() error {
		p, err := c.client.GetAlbumTracks(ctx, spotify.ID(id),
			spotify.Limit(min(limit, 50)),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get album tracks")
	}

	queries := make([]string, 0, len(page.Tracks))
	for _, t := range page.Tracks {
		queries = append(queries, searchQuery(t.Artists, t.Name))
	}
	return queries, nil
}

func (c *Client) playlistQueries(ctx context.Context, id string, limit int) ([]string, error) {
	var queries []string
	offset := 0
	pageSize := min(limit, 100)

	for len(queries) < limit {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(id),
				spotify.Limit(pageSize),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Only process tracks (exclude episodes)
			if item.Track.Track != nil && item.Track.Track.Name != "" {
				queries = append(queries, searchQuery(item.Track.Track.Artists, item.Track.Track.Name))
			}
		}

		if len(page.Items) < pageSize {
			break
		}
		offset += pageSize
	}

	return queries, nil
}

func (c *Client) artistQueries(ctx context.Context, id string) ([]string, error) {
	var tracks []spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetArtistsTopTracks(ctx, spotify.ID(id), c.market)
		if err != nil {
			return err
		}
		tracks = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get artist top tracks")
	}

	queries := make([]string, 0, len(tracks))
	for _, t := range tracks {
		queries = append(queries, searchQuery(t.Artists, t.Name))
	}
	return queries, nil
}

// searchQuery formats a track as "Artist - Title" using the main artist.
func searchQuery(artists []spotify.SimpleArtist, name string) string {
	if len(artists) == 0 || artists[0].Name == "" {
		return name
	}
	return artists[0].Name + " - " + name
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// ParseLink extracts the kind and ID from a Spotify URL or URI. It returns
// empty strings when input is not a supported Spotify link.
func ParseLink(input string) (kind, id string) {
	input = strings.TrimSpace(input)

	// Handle Spotify URI format: spotify:KIND:ID
	if strings.HasPrefix(input, "spotify:") {
		parts := strings.Split(input, ":")
		if len(parts) == 3 && isKind(parts[1]) && parts[2] != "" {
			return parts[1], parts[2]
		}
		return "", ""
	}

	// Handle URL format: https://open.spotify.com/KIND/ID or https://open.spotify.com/intl-XX/KIND/ID
	if !strings.Contains(input, "open.spotify.com/") {
		return "", ""
	}
	path := strings.SplitN(input, "open.spotify.com/", 2)[1]
	// Remove query parameters and trailing slashes
	path = strings.Split(path, "?")[0]
	path = strings.TrimRight(path, "/")

	segments := strings.Split(path, "/")
	for i := 0; i+1 < len(segments); i++ {
		if isKind(segments[i]) && segments[i+1] != "" {
			return segments[i], segments[i+1]
		}
	}
	return "", ""
}

func isKind(s string) bool {
	switch s {
	case KindTrack, KindAlbum, KindPlaylist, KindArtist:
		return true
	default:
		return false
	}
}
