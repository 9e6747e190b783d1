package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/track"
)

// YTDLPProviderConfig represents the settings of the ytdlp provider.
type YTDLPProviderConfig struct {
	SearchPrefix string `mapstructure:"search_prefix" default:"ytsearch1:" validate:"required"`
	MaxTracks    int    `mapstructure:"max_tracks" default:"100" validate:"gte=1,lte=1000"`
}

// YTDLPProvider resolves URLs directly and free text through a search.
type YTDLPProvider struct {
	extractor Extractor
	config    *YTDLPProviderConfig
}

// NewYTDLPProvider creates a new YTDLPProvider.
func NewYTDLPProvider(extractor Extractor, settings map[string]any) (*YTDLPProvider, error) {
	var config YTDLPProviderConfig
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("ytdlp provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &YTDLPProvider{extractor: extractor, config: &config}, nil
}

// Name returns the provider name.
func (p *YTDLPProvider) Name() string {
	return "ytdlp"
}

// Accepts accepts any query.
func (p *YTDLPProvider) Accepts(query string) bool {
	return query != ""
}

// Resolve extracts query, or the first search hit for free text. Playlist
// URLs yield every entry up to max_tracks.
func (p *YTDLPProvider) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	target := query
	if !IsURL(query) {
		target = p.config.SearchPrefix + query
	}

	tracks, err := p.extractor.Extract(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "ytdlp: %q", query)
	}
	if len(tracks) > p.config.MaxTracks {
		zlog.Info().Msgf("ytdlp: truncating result: query=%q tracks=%d max=%d", query, len(tracks), p.config.MaxTracks)
		tracks = tracks[:p.config.MaxTracks]
	}
	for i := range tracks {
		tracks[i].Source = p.Name()
	}
	return tracks, nil
}
