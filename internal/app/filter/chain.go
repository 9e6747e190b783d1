package filter

import (
	"context"

	"github.com/osa030/tunebox/internal/domain/track"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the request.
func (c *Chain) Execute(ctx context.Context, req Request, t track.Track, pending []track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, req, t, pending)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply checks every track of a request. It returns the accepted tracks in
// order, and the first rejection when at least one track was rejected.
func (c *Chain) Apply(ctx context.Context, req Request, tracks []track.Track) ([]track.Track, *Result) {
	accepted := make([]track.Track, 0, len(tracks))
	var rejected *Result
	for _, t := range tracks {
		result := c.Execute(ctx, req, t, accepted)
		if !result.Accepted {
			if rejected == nil {
				r := result
				rejected = &r
			}
			continue
		}
		accepted = append(accepted, t)
	}
	return accepted, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
