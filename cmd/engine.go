package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/researchaccelerator-hub/channel-aggregator/aggregator"
	"github.com/researchaccelerator-hub/channel-aggregator/cache"
	"github.com/researchaccelerator-hub/channel-aggregator/client"
	"github.com/researchaccelerator-hub/channel-aggregator/config"
	"github.com/researchaccelerator-hub/channel-aggregator/model"
	ytmodel "github.com/researchaccelerator-hub/channel-aggregator/model/youtube"
	"github.com/researchaccelerator-hub/channel-aggregator/resolver"
	"github.com/rs/zerolog/log"
)

// sweeper is implemented by every cache instance.
type sweeper interface {
	Name() string
	Cleanup(ctx context.Context) int
	Close() error
}

// engine is the fully wired aggregation stack.
type engine struct {
	agg    *aggregator.Aggregator
	caches []sweeper
	yt     *client.YouTubeDataClient
}

func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	videoCache := cache.New[[]model.VideoRecord](cacheConfig("api", cfg.Cache.API), openStore(ctx, cfg, "api"))
	infoCache := cache.New[ytmodel.ChannelInfo](cacheConfig("image", cfg.Cache.Image), openStore(ctx, cfg, "image"))
	playlistCache := cache.New[string](cacheConfig("default", cfg.Cache.Default), openStore(ctx, cfg, "default"))

	e := &engine{caches: []sweeper{videoCache, infoCache, playlistCache}}
	caches := aggregator.Caches{Videos: videoCache, Info: infoCache}
	opts := aggregator.Options{
		MaxResults:  cfg.YouTube.MaxResults,
		Concurrency: cfg.Aggregator.Concurrency,
	}

	if !cfg.HasAPIKey() {
		log.Warn().Msg("No YouTube API key configured, serving static channel data only")
		e.agg = aggregator.New(nil, nil, caches, opts)
		return e, nil
	}

	yt, err := client.NewYouTubeDataClient(client.YouTubeConfig{
		APIKey:   cfg.YouTube.APIKey,
		Endpoint: cfg.YouTube.Endpoint,
		Timeout:  cfg.YouTube.Timeout,
		Retry: client.RetryConfig{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			RetryDelay:        cfg.Retry.Delay,
			RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		},
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	if err := yt.Connect(ctx); err != nil {
		e.Close()
		return nil, err
	}
	e.yt = yt

	feed := client.NewFeedClient(yt.Retrying().HTTPClient(), cfg.YouTube.FeedURL)
	strategies, err := resolver.BuildStrategies(cfg.YouTube.Strategies, yt, feed, playlistCache)
	if err != nil {
		e.Close()
		return nil, err
	}

	filter := resolver.NewFilter(resolver.FilterConfig{
		GamingCategoryID: cfg.Filter.GamingCategory,
		LiveKeywords:     cfg.Filter.LiveKeywords,
	})

	e.agg = aggregator.New(
		resolver.NewVideoResolver(yt, filter, strategies...),
		resolver.NewInfoResolver(yt),
		caches,
		opts,
	)
	return e, nil
}

func cacheConfig(name string, ic config.CacheInstanceConfig) cache.Config {
	return cache.Config{Name: name, TTL: ic.TTL, MaxSize: ic.MaxSize}
}

// openStore opens the persistent store of a cache instance. A store that
// cannot be opened degrades the instance to memory.
func openStore(ctx context.Context, cfg *config.Config, name string) cache.Store {
	store, err := cache.OpenStore(ctx, cfg.Cache.StoreConfig(name))
	if err != nil {
		log.Warn().Err(err).Str("cache", name).Msg("Cache store unavailable, using memory")
		return nil
	}
	return store
}

// sweep removes expired entries from every cache every interval until ctx
// is done.
func (e *engine) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range e.caches {
				c.Cleanup(ctx)
			}
		}
	}
}

// Close releases the caches and the upstream client.
func (e *engine) Close() error {
	var errs []error
	for _, c := range e.caches {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s cache: %w", c.Name(), err))
		}
	}
	if e.yt != nil {
		if err := e.yt.Disconnect(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
