package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/track"
)

// Chain tries multiple providers in order until one returns tracks.
type Chain struct {
	providers []Resolver
}

// NewChain creates a new provider chain.
func NewChain(providers ...Resolver) *Chain {
	return &Chain{
		providers: providers,
	}
}

// Resolve tries every provider that accepts query. A provider that finds
// nothing or fails hands over to the next one. When all fail, the error is
// ErrTransport if any provider failed for a reason other than an empty
// result, ErrNotFound otherwise.
func (c *Chain) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	var lastErr error

	for i, p := range c.providers {
		if !p.Accepts(query) {
			continue
		}

		zlog.Debug().Msgf("trying resolver: index=%d total=%d name=%s", i+1, len(c.providers), p.Name())

		tracks, err := p.Resolve(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "resolve cancelled")
			}
			if errors.Is(err, ErrNotFound) {
				zlog.Debug().Msgf("resolver returned no tracks: name=%s", p.Name())
				continue
			}
			zlog.Warn().Msgf("resolver failed, trying next: name=%s error=%v", p.Name(), err)
			lastErr = err
			continue
		}

		if len(tracks) == 0 {
			zlog.Debug().Msgf("resolver returned no tracks: name=%s", p.Name())
			continue
		}

		zlog.Info().Msgf("resolver returned tracks: name=%s count=%d", p.Name(), len(tracks))
		return tracks, nil
	}

	if lastErr != nil {
		return nil, MarkTransport(errors.Wrap(lastErr, "all resolvers failed"))
	}
	return nil, errors.Wrapf(ErrNotFound, "query %q", query)
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "resolver_chain"
}

// Accepts reports whether any provider accepts query.
func (c *Chain) Accepts(query string) bool {
	for _, p := range c.providers {
		if p.Accepts(query) {
			return true
		}
	}
	return false
}

// Providers returns the providers in order.
func (c *Chain) Providers() []Resolver {
	return c.providers
}
