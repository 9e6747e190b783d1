package resolver

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/infra/config"
)

// NewChainFromConfig creates a resolver chain from configuration. spotify
// may be nil when no spotify provider is configured.
func NewChainFromConfig(cfg *config.Config, extractor Extractor, spotify SpotifyClient) (*Chain, error) {
	if len(cfg.Resolver.Providers) == 0 {
		return nil, errors.New("no resolver providers configured")
	}

	var providers []Resolver

	for i, pcfg := range cfg.Resolver.Providers {
		var provider Resolver
		var err error
		zlog.Debug().Msgf("creating resolver provider: index=%d type=%s settings=%+v", i+1, pcfg.Type, pcfg.Settings)
		switch pcfg.Type {
		case "ytdlp":
			provider, err = NewYTDLPProvider(extractor, pcfg.Settings)

		case "spotify":
			provider, err = NewSpotifyProvider(spotify, extractor, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, provider)

		zlog.Info().Msgf("registered resolver provider: index=%d type=%s", i+1, pcfg.Type)
	}

	return NewChain(providers...), nil
}
