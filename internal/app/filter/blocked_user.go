package filter

import (
	"context"
	"slices"

	"github.com/osa030/tunebox/internal/domain/track"
)

// BlockedUserConfig represents the configuration for BlockedUserFilter.
type BlockedUserConfig struct {
	UserIDs []string `mapstructure:"user_ids" validate:"required,min=1,dive,required"`
}

// BlockedUserFilter rejects requests from blocked Discord users.
type BlockedUserFilter struct {
	blocked []string
}

func (f *BlockedUserFilter) Name() string {
	return "blocked_user_filter"
}

func (f *BlockedUserFilter) Description() string {
	return "Rejects requests from blocked users"
}

func (f *BlockedUserFilter) ReturnCodes() []string {
	return []string{"blocked_user"}
}

func (f *BlockedUserFilter) ValidateConfig(settings map[string]any) error {
	var config BlockedUserConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.blocked = config.UserIDs
	return nil
}

func (f *BlockedUserFilter) Check(ctx context.Context, req Request, t track.Track, pending []track.Track) Result {
	if slices.Contains(f.blocked, req.Requester.ID) {
		return Reject("blocked_user")
	}
	return Accept()
}

func init() {
	Register("blocked_user_filter", func(Deps) Filter {
		return &BlockedUserFilter{}
	})
}
