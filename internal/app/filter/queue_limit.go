package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/track"
)

// QueueLimitConfig represents the configuration for QueueLimitFilter.
type QueueLimitConfig struct {
	MaxTracks  int `mapstructure:"max_tracks" default:"200" validate:"gte=1"`
	MaxPerUser int `mapstructure:"max_per_user" validate:"gte=0"` // 0 means no per-user limit
}

// QueueLimitFilter caps the size of a guild queue, overall and per requester.
type QueueLimitFilter struct {
	queue  QueueReader
	config *QueueLimitConfig
}

// NewQueueLimitFilter creates a new queue limit filter.
func NewQueueLimitFilter(queue QueueReader) *QueueLimitFilter {
	return &QueueLimitFilter{queue: queue}
}

func (f *QueueLimitFilter) Name() string {
	return "queue_limit_filter"
}

func (f *QueueLimitFilter) Description() string {
	return "Limits how many songs a guild queue holds, overall and per user"
}

func (f *QueueLimitFilter) ReturnCodes() []string {
	return []string{"queue_limit_exceeded"}
}

func (f *QueueLimitFilter) ValidateConfig(settings map[string]any) error {
	var config QueueLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Info().Msgf("queue limit filter config: %+v", config)
	return nil
}

func (f *QueueLimitFilter) Check(ctx context.Context, req Request, t track.Track, pending []track.Track) Result {
	if f.config == nil || f.queue == nil {
		return Accept()
	}

	queued := f.queue.Tracks(req.GuildID)
	if len(queued)+len(pending) >= f.config.MaxTracks {
		return Reject("queue_limit_exceeded")
	}

	if f.config.MaxPerUser > 0 {
		mine := len(pending)
		for _, qt := range queued {
			if qt.Requester.ID == req.Requester.ID {
				mine++
			}
		}
		if mine >= f.config.MaxPerUser {
			return Reject("queue_limit_exceeded")
		}
	}

	return Accept()
}

func init() {
	Register("queue_limit_filter", func(deps Deps) Filter {
		return NewQueueLimitFilter(deps.Queue)
	})
}
