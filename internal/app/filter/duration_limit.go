package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/track"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
// A zero min_minutes disables the lower bound; max_minutes defaults to 15.
type DurationLimitConfig struct {
	MinMinutes float64 `yaml:"min_minutes" mapstructure:"min_minutes" validate:"gte=0"`
	MaxMinutes float64 `yaml:"max_minutes" mapstructure:"max_minutes" default:"15" validate:"gte=0"`
}

// DurationLimitFilter rejects tracks shorter or longer than the configured
// bounds. Tracks without a known duration (live streams) are accepted.
type DurationLimitFilter struct {
	min, max time.Duration
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects tracks outside the allowed length"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{"duration_limit_exceeded"}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	if config.MaxMinutes > 0 && config.MinMinutes > config.MaxMinutes {
		return errors.New("min_minutes cannot be greater than max_minutes")
	}

	f.min = minutes(config.MinMinutes)
	f.max = minutes(config.MaxMinutes)
	zlog.Info().Msgf("duration limit filter config: min=%v max=%v", f.min, f.max)
	return nil
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

func (f *DurationLimitFilter) Check(ctx context.Context, req Request, t track.Track, pending []track.Track) Result {
	if t.Duration <= 0 {
		return Accept()
	}
	if f.min > 0 && t.Duration < f.min {
		return Reject("duration_limit_exceeded")
	}
	if f.max > 0 && t.Duration > f.max {
		return Reject("duration_limit_exceeded")
	}
	return Accept()
}

func init() {
	Register("duration_limit_filter", func(Deps) Filter {
		return NewDurationLimitFilter()
	})
}
