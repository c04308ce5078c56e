// Package aggregator merges live upstream data with the static channel
// configuration. It always returns one record per configured channel.
package aggregator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/researchaccelerator-hub/channel-aggregator/cache"
	"github.com/researchaccelerator-hub/channel-aggregator/common"
	"github.com/researchaccelerator-hub/channel-aggregator/metrics"
	"github.com/researchaccelerator-hub/channel-aggregator/model"
	ytmodel "github.com/researchaccelerator-hub/channel-aggregator/model/youtube"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// VideoResolver resolves the latest videos of a channel.
type VideoResolver interface {
	ResolveLatestVideos(ctx context.Context, channelID string, maxResults int) ([]model.VideoRecord, error)
}

// InfoResolver resolves channel display metadata.
type InfoResolver interface {
	ResolveChannelInfo(ctx context.Context, channelID string) (*ytmodel.ChannelInfo, error)
}

// Options controls an aggregation run.
type Options struct {
	// MaxResults is the number of videos requested per channel. Defaults to 1.
	MaxResults int
	// Concurrency bounds the number of channels resolved at once. Both calls
	// of a channel always run together. Zero or less means unbounded.
	Concurrency int
}

// Caches holds the cache instances used by the aggregator. Nil caches are
// skipped.
type Caches struct {
	// Videos caches video lists (the short-TTL "api" cache).
	Videos *cache.Cache[[]model.VideoRecord]
	// Info caches channel metadata (the long-TTL "image" cache).
	Info *cache.Cache[ytmodel.ChannelInfo]
}

// Result is the outcome of one aggregation run.
type Result struct {
	RunID     string                `json:"runId"`
	Available bool                  `json:"available"`
	Channels  []model.ChannelRecord `json:"channels"`
}

// Aggregator fans out per-channel resolution and merges the outcomes.
type Aggregator struct {
	videos VideoResolver
	info   InfoResolver
	caches Caches
	opts   Options
}

// New creates an aggregator. Passing nil resolvers yields an unavailable
// aggregator that serves the static configuration only.
func New(videos VideoResolver, info InfoResolver, caches Caches, opts Options) *Aggregator {
	if opts.MaxResults < 1 {
		opts.MaxResults = 1
	}
	return &Aggregator{videos: videos, info: info, caches: caches, opts: opts}
}

// Available reports whether upstream data can be fetched at all.
func (a *Aggregator) Available() bool {
	return a.videos != nil && a.info != nil
}

// Aggregate returns one record per config, in order. It never fails: any
// per-channel failure yields that channel's static fallback record.
func (a *Aggregator) Aggregate(ctx context.Context, configs []model.ChannelConfig) []model.ChannelRecord {
	return a.Run(ctx, configs).Channels
}

// channelOutcome holds what the two calls of one channel produced.
type channelOutcome struct {
	videos   []model.VideoRecord
	videoErr error
	info     *ytmodel.ChannelInfo
	infoErr  error
}

// Run is Aggregate with the run id and availability attached.
func (a *Aggregator) Run(ctx context.Context, configs []model.ChannelConfig) Result {
	runID := common.GenerateRunID()
	logger := log.With().Str("run_id", runID).Logger()

	result := Result{
		RunID:     runID,
		Available: a.Available(),
		Channels:  make([]model.ChannelRecord, len(configs)),
	}

	if !result.Available {
		logger.Info().Int("channel_count", len(configs)).Msg("Upstream unavailable, serving static channel data")
		for i, cfg := range configs {
			result.Channels[i] = model.FallbackRecord(cfg)
		}
		return result
	}

	start := time.Now()
	outcomes := make([]channelOutcome, len(configs))

	// Goroutines never return errors so every call settles.
	var g errgroup.Group
	if a.opts.Concurrency > 0 {
		g.SetLimit(a.opts.Concurrency)
	}
	for i, cfg := range configs {
		g.Go(func() error {
			var pair errgroup.Group
			pair.Go(func() error {
				outcomes[i].videos, outcomes[i].videoErr = a.latestVideos(ctx, cfg.ID)
				return nil
			})
			pair.Go(func() error {
				outcomes[i].info, outcomes[i].infoErr = a.channelInfo(ctx, cfg.ID)
				return nil
			})
			return pair.Wait()
		})
	}
	_ = g.Wait()

	live := 0
	for i, cfg := range configs {
		out := outcomes[i]
		if out.videoErr != nil {
			metrics.ChannelFallbacks.WithLabelValues("videos").Inc()
			logger.Warn().Err(out.videoErr).Str("channel_id", cfg.ID).Msg("Video resolution failed, using static data")
		}
		if out.infoErr != nil {
			metrics.ChannelFallbacks.WithLabelValues("info").Inc()
			logger.Warn().Err(out.infoErr).Str("channel_id", cfg.ID).Msg("Channel info resolution failed, using static data")
		}

		record := Merge(cfg, out.info, out.videos, out.videoErr == nil)
		if record.HasLiveData {
			live++
		}
		result.Channels[i] = record
	}

	elapsed := time.Since(start)
	metrics.AggregateDuration.Observe(elapsed.Seconds())
	logSummary(logger, len(configs), live, elapsed)

	return result
}

// Merge builds a channel record from the static config and whatever live
// data was resolved. info may be nil. Only the name comes from info; every
// other configured field is kept.
func Merge(cfg model.ChannelConfig, info *ytmodel.ChannelInfo, videos []model.VideoRecord, videosResolved bool) model.ChannelRecord {
	record := model.FallbackRecord(cfg)

	if info != nil && info.Title != "" {
		record.Name = info.Title
	}

	if videosResolved {
		record.HasLiveData = true
		if len(videos) > 0 {
			record.Videos = slices.Clone(videos)
		}
	}
	return record
}

func (a *Aggregator) latestVideos(ctx context.Context, channelID string) ([]model.VideoRecord, error) {
	key := fmt.Sprintf("videos:%s:%d", channelID, a.opts.MaxResults)
	if a.caches.Videos != nil {
		if videos, ok := a.caches.Videos.Get(ctx, key); ok {
			return videos, nil
		}
	}

	videos, err := a.videos.ResolveLatestVideos(ctx, channelID, a.opts.MaxResults)
	if err != nil {
		return nil, err
	}
	if len(videos) > a.opts.MaxResults {
		videos = videos[:a.opts.MaxResults]
	}
	if a.caches.Videos != nil {
		a.caches.Videos.Set(ctx, key, videos)
	}
	return videos, nil
}

func (a *Aggregator) channelInfo(ctx context.Context, channelID string) (*ytmodel.ChannelInfo, error) {
	key := "channel:" + channelID
	if a.caches.Info != nil {
		if info, ok := a.caches.Info.Get(ctx, key); ok {
			return &info, nil
		}
	}

	info, err := a.info.ResolveChannelInfo(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("empty channel info for %s", channelID)
	}
	if a.caches.Info != nil {
		a.caches.Info.Set(ctx, key, *info)
	}
	return info, nil
}

func logSummary(logger zerolog.Logger, total, live int, elapsed time.Duration) {
	event := logger.Info()
	if live < total {
		event = logger.Warn()
	}
	event.
		Int("channel_count", total).
		Int("live_count", live).
		Int("fallback_count", total-live).
		Dur("elapsed", elapsed).
		Msg("Channel aggregation complete")
}
