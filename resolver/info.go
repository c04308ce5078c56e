package resolver

import (
	"context"
	"fmt"

	ytmodel "github.com/researchaccelerator-hub/channel-aggregator/model/youtube"
)

// InfoSource fetches channel display metadata.
// *client.YouTubeDataClient implements it.
type InfoSource interface {
	ChannelInfo(ctx context.Context, channelID string) (*ytmodel.ChannelInfo, error)
}

// InfoResolver resolves channel display metadata with a single upstream call.
type InfoResolver struct {
	source InfoSource
}

// NewInfoResolver creates an info resolver.
func NewInfoResolver(source InfoSource) *InfoResolver {
	return &InfoResolver{source: source}
}

// ResolveChannelInfo returns the channel's title, description and URLs.
// Unknown channels fail with an error matching client.ErrChannelNotFound.
func (r *InfoResolver) ResolveChannelInfo(ctx context.Context, channelID string) (*ytmodel.ChannelInfo, error) {
	info, err := r.source.ChannelInfo(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channel info for %s: %w", channelID, err)
	}
	return info, nil
}
