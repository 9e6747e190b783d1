package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/tunebox/internal/domain/track"
)

// SpotifyProviderConfig represents the settings of the spotify provider.
type SpotifyProviderConfig struct {
	SearchPrefix string `mapstructure:"search_prefix" default:"ytsearch1:" validate:"required"`
	MaxTracks    int    `mapstructure:"max_tracks" default:"25" validate:"gte=1,lte=100"`
	Concurrency  int    `mapstructure:"concurrency" default:"4" validate:"gte=1,lte=16"`
}

// SpotifyProvider resolves Spotify track, album and playlist links. Spotify
// only supplies metadata; each track is searched through the extractor.
type SpotifyProvider struct {
	spotify   SpotifyClient
	extractor Extractor
	config    *SpotifyProviderConfig
}

// NewSpotifyProvider creates a new SpotifyProvider.
func NewSpotifyProvider(spotify SpotifyClient, extractor Extractor, settings map[string]any) (*SpotifyProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is not configured")
	}

	var config SpotifyProviderConfig
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("spotify provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &SpotifyProvider{spotify: spotify, extractor: extractor, config: &config}, nil
}

// Name returns the provider name.
func (p *SpotifyProvider) Name() string {
	return "spotify"
}

// Accepts accepts Spotify links only.
func (p *SpotifyProvider) Accepts(query string) bool {
	return IsSpotifyLink(query)
}

// Resolve looks up the linked tracks and searches each of them, keeping
// the Spotify order. Tracks without a search hit are dropped.
func (p *SpotifyProvider) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	queries, err := p.spotify.LinkQueries(ctx, query, p.config.MaxTracks)
	if err != nil {
		return nil, errors.Wrap(err, "spotify lookup failed")
	}
	if len(queries) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "spotify: %q", query)
	}

	results := make([]*track.Track, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for i, q := range queries {
		g.Go(func() error {
			found, err := p.extractor.Extract(gctx, p.config.SearchPrefix+q)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					zlog.Debug().Msgf("spotify: no search hit: query=%q", q)
					return nil
				}
				return errors.Wrapf(err, "search %q", q)
			}
			if len(found) == 0 {
				return nil
			}
			t := found[0]
			t.Source = p.Name()
			results[i] = &t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tracks := make([]track.Track, 0, len(results))
	for _, t := range results {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}
	if len(tracks) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "spotify: no playable tracks for %q", query)
	}
	return tracks, nil
}
