package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/tunebox/internal/domain/track"
)

// DuplicateTrackFilter checks for duplicate tracks in the guild queue.
// Detects:
// - Same page or stream URL
// - Same title once version decorations are stripped (remasters, official
//   video/audio uploads, lyric videos, radio edits)
// Covers by other artists keep their own "Artist - Title" and pass.
type DuplicateTrackFilter struct {
	queue QueueReader
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(queue QueueReader) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{
		queue: queue,
	}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects songs already queued, including remastered or re-uploaded versions"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(config map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(
	ctx context.Context,
	req Request,
	requested track.Track,
	pending []track.Track,
) Result {
	candidates := make([]track.Track, 0, len(pending))
	if f.queue != nil {
		for _, qt := range f.queue.Tracks(req.GuildID) {
			candidates = append(candidates, qt.Track)
		}
	}
	candidates = append(candidates, pending...)

	for _, queued := range candidates {
		if sameSource(queued, requested) || isSameSong(queued, requested) {
			return Reject("duplicate_track")
		}
	}

	return Accept()
}

// sameSource reports whether both tracks point at the same page or stream.
func sameSource(a, b track.Track) bool {
	if a.WebpageURL != "" && a.WebpageURL == b.WebpageURL {
		return true
	}
	return a.StreamRef != "" && a.StreamRef == b.StreamRef
}

// isSameSong reports whether two titles name the same recording.
func isSameSong(a, b track.Track) bool {
	nameA := normalizeTrackName(a.Title)
	nameB := normalizeTrackName(b.Title)
	return nameA != "" && nameA == nameB
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}

	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*[\(\[]\s*official\s+(music\s+)?(video|audio|visualizer)\s*[\)\]]`), // "(Official Video)"
		regexp.MustCompile(`\s*[\(\[]\s*(lyrics?|lyric\s+video)\s*[\)\]]`),                        // "[Lyrics]"
		regexp.MustCompile(`\s*[\(\[]\s*(hd|hq|4k)\s*[\)\]]`),                                     // "[HD]"
		regexp.MustCompile(`\s*\(.*?version\)`),                                                   // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),                                                      // "(Radio Edit)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),                                                // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`),                                            // "- Single Version"
	}

	whitespace = regexp.MustCompile(`\s+`)
)

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	// Convert to lowercase
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	// Remove extra whitespace
	normalized = strings.TrimSpace(normalized)
	normalized = whitespace.ReplaceAllString(normalized, " ")

	// Remove trailing dashes
	normalized = strings.TrimRight(normalized, " -")

	return normalized
}

func init() {
	Register("duplicate_track_filter", func(deps Deps) Filter {
		return NewDuplicateTrackFilter(deps.Queue)
	})
}
