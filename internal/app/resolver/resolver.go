// Package resolver turns user queries into playable tracks.
//
// A query is either a URL or free text. Providers are tried in configured
// order; the first that accepts the query and returns tracks wins.
package resolver

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tunebox/internal/domain/track"
)

// Errors
var (
	ErrNotFound  = errors.New("no results found")
	ErrTransport = errors.New("resolver unavailable")
)

// Resolver is the interface for track resolution providers.
type Resolver interface {
	// Name returns the provider name (used in config and logs).
	Name() string
	// Accepts reports whether the provider can handle query.
	Accepts(query string) bool
	// Resolve returns the tracks for query, in playback order.
	// It returns an error marked ErrNotFound when nothing matched.
	Resolve(ctx context.Context, query string) ([]track.Track, error)
}

// Extractor runs a media extractor against a URL or search target and
// returns the playable entries it reports.
type Extractor interface {
	Extract(ctx context.Context, target string) ([]track.Track, error)
}

// SpotifyClient expands Spotify links into free-text search queries.
type SpotifyClient interface {
	LinkQueries(ctx context.Context, link string, limit int) ([]string, error)
}

// IsURL reports whether query should be passed to the extractor as is.
func IsURL(query string) bool {
	return strings.HasPrefix(query, "http")
}

// IsSpotifyLink reports whether query points at Spotify content.
func IsSpotifyLink(query string) bool {
	return strings.HasPrefix(query, "spotify:") ||
		strings.Contains(query, "open.spotify.com/")
}

// MarkNotFound marks err so that errors.Is(err, ErrNotFound) holds.
func MarkNotFound(err error) error {
	return errors.Mark(err, ErrNotFound)
}

// MarkTransport marks err so that errors.Is(err, ErrTransport) holds.
func MarkTransport(err error) error {
	return errors.Mark(err, ErrTransport)
}
