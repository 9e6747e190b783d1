// Package filter provides the filter chain for request validation.
package filter

import (
	"context"
	"sort"

	"github.com/osa030/tunebox/internal/domain/track"
)

// Request represents a play request to be validated.
type Request struct {
	GuildID   string
	Requester track.Requester
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "duplicate_track", "queue_limit_exceeded"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// QueueReader gives filters a read-only view of a guild's tracks, the
// current one included.
type QueueReader interface {
	Tracks(guildID string) []track.QueuedTrack
}

// Deps carries the collaborators a filter may need.
type Deps struct {
	Queue QueueReader
}

// Filter is the interface for request filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check performs the filter check. pending holds tracks accepted
	// earlier in the same request but not yet enqueued.
	Check(ctx context.Context, req Request, t track.Track, pending []track.Track) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func(Deps) Filter)

// Register registers a filter factory.
func Register(name string, factory func(Deps) Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func(Deps) Filter {
	return registry
}

// RegisteredNames returns the registered filter names, sorted.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
