package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/researchaccelerator-hub/channel-aggregator/metrics"
	"github.com/researchaccelerator-hub/channel-aggregator/model"
	"github.com/rs/zerolog/log"
)

const (
	minCandidates = 20
	overFetch     = 10
	// maxCandidates is the upstream page limit and the batch limit of the
	// detail call.
	maxCandidates = 50
)

// ErrNoStrategies is returned when a resolver has no strategy to try.
var ErrNoStrategies = errors.New("no video strategies configured")

// VideoResolver resolves the latest displayable videos of a channel. Each
// strategy is tried in order; the next one runs when the current one fails or
// yields no video that survives the filter.
type VideoResolver struct {
	source     VideoSource
	filter     *Filter
	strategies []Strategy
}

// NewVideoResolver creates a resolver. source serves the batched detail call.
func NewVideoResolver(source VideoSource, filter *Filter, strategies ...Strategy) *VideoResolver {
	if filter == nil {
		filter = NewFilter(DefaultFilterConfig())
	}
	return &VideoResolver{source: source, filter: filter, strategies: strategies}
}

// CandidateLimit is the number of candidates requested for maxResults
// videos: max(maxResults*10, 20), clamped to the upstream page size.
func CandidateLimit(maxResults int) int {
	return min(max(maxResults*overFetch, minCandidates), maxCandidates)
}

// ResolveLatestVideos returns up to maxResults videos, newest first. The
// result of the last strategy tried is returned, including its error.
func (r *VideoResolver) ResolveLatestVideos(ctx context.Context, channelID string, maxResults int) ([]model.VideoRecord, error) {
	if len(r.strategies) == 0 {
		return nil, ErrNoStrategies
	}
	if maxResults < 1 {
		return []model.VideoRecord{}, nil
	}

	limit := CandidateLimit(maxResults)

	var (
		videos []model.VideoRecord
		err    error
	)
	for i, strategy := range r.strategies {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		videos, err = r.resolveWith(ctx, strategy, channelID, limit, maxResults)
		switch {
		case err != nil:
			metrics.StrategyResults.WithLabelValues(strategy.Name(), "error").Inc()
		case len(videos) == 0:
			metrics.StrategyResults.WithLabelValues(strategy.Name(), "empty").Inc()
		default:
			metrics.StrategyResults.WithLabelValues(strategy.Name(), "ok").Inc()
			log.Debug().
				Str("channel_id", channelID).
				Str("strategy", strategy.Name()).
				Int("video_count", len(videos)).
				Msg("Resolved latest videos")
			return videos, nil
		}

		if i < len(r.strategies)-1 {
			event := log.Info().
				Str("channel_id", channelID).
				Str("strategy", strategy.Name()).
				Str("next_strategy", r.strategies[i+1].Name())
			if err != nil {
				event = event.Err(err)
			}
			event.Msg("Video strategy yielded nothing, trying next")
		}
	}

	if err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *VideoResolver) resolveWith(ctx context.Context, strategy Strategy, channelID string, limit, maxResults int) ([]model.VideoRecord, error) {
	ids, err := strategy.CandidateIDs(ctx, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s strategy: %w", strategy.Name(), err)
	}
	if len(ids) == 0 {
		return []model.VideoRecord{}, nil
	}
	if len(ids) > maxCandidates {
		ids = ids[:maxCandidates]
	}

	details, err := r.source.VideoDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s strategy: %w", strategy.Name(), err)
	}
	return r.filter.Apply(details, maxResults), nil
}
