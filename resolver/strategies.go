package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/researchaccelerator-hub/channel-aggregator/cache"
	ytmodel "github.com/researchaccelerator-hub/channel-aggregator/model/youtube"
	"github.com/rs/zerolog/log"
)

// Strategy names.
const (
	StrategyUploads = "uploads"
	StrategySearch  = "search"
	StrategyFeed    = "feed"
)

// DefaultStrategies is the chain used when none is configured.
var DefaultStrategies = []string{StrategyUploads, StrategySearch}

// VideoSource is the upstream surface used to find and describe videos.
// *client.YouTubeDataClient implements it.
type VideoSource interface {
	UploadsPlaylistID(ctx context.Context, channelID string) (string, error)
	PlaylistVideoIDs(ctx context.Context, playlistID string, limit int) ([]string, error)
	SearchVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error)
	VideoDetails(ctx context.Context, ids []string) ([]ytmodel.VideoDetails, error)
}

// FeedSource lists video ids from a channel's public feed.
// *client.FeedClient implements it.
type FeedSource interface {
	FeedVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error)
}

// Strategy produces candidate video ids for a channel, newest first.
type Strategy interface {
	Name() string
	CandidateIDs(ctx context.Context, channelID string, limit int) ([]string, error)
}

// UploadsStrategy lists the channel's uploads playlist. The playlist id never
// changes for a channel, so it is cached when a cache is given.
type UploadsStrategy struct {
	source    VideoSource
	playlists *cache.Cache[string]
}

// NewUploadsStrategy creates the uploads catalog strategy. playlists may be nil.
func NewUploadsStrategy(source VideoSource, playlists *cache.Cache[string]) *UploadsStrategy {
	return &UploadsStrategy{source: source, playlists: playlists}
}

// Name implements Strategy.
func (s *UploadsStrategy) Name() string { return StrategyUploads }

// CandidateIDs implements Strategy.
func (s *UploadsStrategy) CandidateIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	playlistID, err := s.uploadsPlaylist(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return s.source.PlaylistVideoIDs(ctx, playlistID, limit)
}

func (s *UploadsStrategy) uploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	key := "uploads:" + channelID
	if s.playlists != nil {
		if id, ok := s.playlists.Get(ctx, key); ok {
			return id, nil
		}
	}

	id, err := s.source.UploadsPlaylistID(ctx, channelID)
	if err != nil {
		return "", err
	}
	if s.playlists != nil {
		s.playlists.Set(ctx, key, id)
	}
	return id, nil
}

// SearchStrategy searches the channel's videos ordered by date.
type SearchStrategy struct {
	source VideoSource
}

// NewSearchStrategy creates the search strategy.
func NewSearchStrategy(source VideoSource) *SearchStrategy {
	return &SearchStrategy{source: source}
}

// Name implements Strategy.
func (s *SearchStrategy) Name() string { return StrategySearch }

// CandidateIDs implements Strategy.
func (s *SearchStrategy) CandidateIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	return s.source.SearchVideoIDs(ctx, channelID, limit)
}

// FeedStrategy reads the channel's public feed. It costs no API quota but
// only sees the most recent entries.
type FeedStrategy struct {
	source FeedSource
}

// NewFeedStrategy creates the feed strategy.
func NewFeedStrategy(source FeedSource) *FeedStrategy {
	return &FeedStrategy{source: source}
}

// Name implements Strategy.
func (s *FeedStrategy) Name() string { return StrategyFeed }

// CandidateIDs implements Strategy.
func (s *FeedStrategy) CandidateIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	return s.source.FeedVideoIDs(ctx, channelID, limit)
}

// BuildStrategies builds the named strategy chain in order. The feed strategy
// requires feed to be non-nil.
func BuildStrategies(names []string, source VideoSource, feed FeedSource, playlists *cache.Cache[string]) ([]Strategy, error) {
	if len(names) == 0 {
		names = DefaultStrategies
	}

	strategies := make([]Strategy, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if seen[name] {
			log.Warn().Str("strategy", name).Msg("Ignoring duplicate strategy")
			continue
		}
		seen[name] = true

		switch name {
		case StrategyUploads:
			strategies = append(strategies, NewUploadsStrategy(source, playlists))
		case StrategySearch:
			strategies = append(strategies, NewSearchStrategy(source))
		case StrategyFeed:
			if feed == nil {
				return nil, fmt.Errorf("feed strategy requires a feed client")
			}
			strategies = append(strategies, NewFeedStrategy(feed))
		default:
			return nil, fmt.Errorf("unknown video strategy: %q", name)
		}
	}
	return strategies, nil
}
