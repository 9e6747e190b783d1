package resolver

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/osa030/tunebox/internal/domain/track"
)

// ObserveFunc receives the outcome of each resolve.
type ObserveFunc func(provider string, elapsed time.Duration, err error)

// Pool bounds how many resolves run at once and how long each may take.
type Pool struct {
	resolver Resolver
	sem      *semaphore.Weighted
	timeout  time.Duration
	observe  ObserveFunc
}

// NewPool wraps r so that at most workers resolves run concurrently, each
// limited to timeout. observe may be nil.
func NewPool(r Resolver, workers int, timeout time.Duration, observe ObserveFunc) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		resolver: r,
		sem:      semaphore.NewWeighted(int64(workers)),
		timeout:  timeout,
		observe:  observe,
	}
}

// Resolve waits for a free worker and resolves query.
func (p *Pool) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "waiting for resolver worker")
	}
	defer p.sem.Release(1)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	tracks, err := p.resolver.Resolve(ctx, query)
	elapsed := time.Since(start)

	if p.observe != nil {
		p.observe(p.resolver.Name(), elapsed, err)
	}
	if err != nil {
		zlog.Debug().Msgf("resolve failed: query=%q elapsed=%v error=%v", query, elapsed, err)
		return nil, err
	}
	zlog.Debug().Msgf("resolved: query=%q tracks=%d elapsed=%v", query, len(tracks), elapsed)
	return tracks, nil
}
