package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ytmodel "github.com/researchaccelerator-hub/channel-aggregator/model/youtube"
	"github.com/rs/zerolog/log"
	"github.com/sosodev/duration"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

// maxPageSize is the largest maxResults the list endpoints accept.
const maxPageSize = 50

// YouTubeConfig configures YouTubeDataClient.
type YouTubeConfig struct {
	APIKey string
	// Endpoint overrides the API base URL, e.g. for a proxy. Optional.
	Endpoint string
	// Timeout bounds the wait for response headers of a single attempt.
	Timeout time.Duration
	Retry   RetryConfig
	// Transport is the single-attempt transport. Defaults to a clone of
	// http.DefaultTransport.
	Transport http.RoundTripper
}

// YouTubeDataClient reads the YouTube Data API v3 endpoints needed for a
// channel directory. Every call goes through the retrying transport, and
// failures are returned as classified *APIError values.
type YouTubeDataClient struct {
	service *ytapi.Service
	cfg     YouTubeConfig
	retry   *RetryingClient
}

// NewYouTubeDataClient creates a new YouTube data client. It returns
// ErrUnavailable when no API key is configured.
func NewYouTubeDataClient(cfg YouTubeConfig) (*YouTubeDataClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrUnavailable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Transport == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = cfg.Timeout
		cfg.Transport = transport
	}

	return &YouTubeDataClient{
		cfg:   cfg,
		retry: NewRetryingClient(cfg.Transport, cfg.Retry),
	}, nil
}

// Connect builds the API service.
func (c *YouTubeDataClient) Connect(ctx context.Context) error {
	log.Info().Msg("Connecting to YouTube API")

	httpClient := &http.Client{
		Transport: &apiKeyTransport{key: c.cfg.APIKey, next: c.retry},
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}

	service, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create YouTube service")
		return fmt.Errorf("failed to create YouTube service: %w", err)
	}

	c.service = service
	log.Info().Msg("Connected to YouTube API successfully")
	return nil
}

// Disconnect releases the API service.
func (c *YouTubeDataClient) Disconnect(ctx context.Context) error {
	c.service = nil
	return nil
}

// Retrying exposes the retrying transport, e.g. to share it with the feed client.
func (c *YouTubeDataClient) Retrying() *RetryingClient {
	return c.retry
}

func (c *YouTubeDataClient) connected() error {
	if c.service == nil {
		return fmt.Errorf("YouTube client not connected")
	}
	return nil
}

// UploadsPlaylistID resolves the id of the channel's uploads playlist.
func (c *YouTubeDataClient) UploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	if err := c.connected(); err != nil {
		return "", err
	}

	response, err := c.service.Channels.List([]string{"contentDetails"}).
		Id(channelID).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to get channel content details: %w", Classify(err))
	}
	if len(response.Items) == 0 {
		return "", fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}

	item := response.Items[0]
	if item.ContentDetails == nil || item.ContentDetails.RelatedPlaylists == nil || item.ContentDetails.RelatedPlaylists.Uploads == "" {
		return "", &APIError{Kind: KindMalformed, Err: fmt.Errorf("channel %s has no uploads playlist", channelID)}
	}
	return item.ContentDetails.RelatedPlaylists.Uploads, nil
}

// PlaylistVideoIDs lists up to limit video ids from a playlist, newest first.
func (c *YouTubeDataClient) PlaylistVideoIDs(ctx context.Context, playlistID string, limit int) ([]string, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}

	response, err := c.service.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(int64(pageSize(limit))).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist items: %w", Classify(err))
	}

	ids := make([]string, 0, len(response.Items))
	for _, item := range response.Items {
		switch {
		case item.ContentDetails != nil && item.ContentDetails.VideoId != "":
			ids = append(ids, item.ContentDetails.VideoId)
		case item.Snippet != nil && item.Snippet.ResourceId != nil && item.Snippet.ResourceId.VideoId != "":
			ids = append(ids, item.Snippet.ResourceId.VideoId)
		}
	}

	log.Debug().Str("playlist_id", playlistID).Int("video_count", len(ids)).Msg("Listed playlist items")
	return ids, nil
}

// SearchVideoIDs searches the channel's videos ordered by publish date.
func (c *YouTubeDataClient) SearchVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}

	response, err := c.service.Search.List([]string{"id"}).
		ChannelId(channelID).
		Order("date").
		Type("video").
		MaxResults(int64(pageSize(limit))).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to search channel videos: %w", Classify(err))
	}

	ids := make([]string, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}

	log.Debug().Str("channel_id", channelID).Int("video_count", len(ids)).Msg("Searched channel videos")
	return ids, nil
}

// VideoDetails fetches details for the given ids in one batched call. The
// result keeps the order of ids; items the API does not return, or returns
// without the parts we need, are omitted.
func (c *YouTubeDataClient) VideoDetails(ctx context.Context, ids []string) ([]ytmodel.VideoDetails, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []ytmodel.VideoDetails{}, nil
	}
	if len(ids) > maxPageSize {
		ids = ids[:maxPageSize]
	}

	response, err := c.service.Videos.List([]string{"snippet", "contentDetails", "status", "liveStreamingDetails"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get video details: %w", Classify(err))
	}

	byID := make(map[string]ytmodel.VideoDetails, len(response.Items))
	for _, item := range response.Items {
		details, err := convertVideo(item)
		if err != nil {
			log.Warn().Err(err).Str("video_id", item.Id).Msg("Skipping video with incomplete details")
			continue
		}
		byID[details.ID] = details
	}

	videos := make([]ytmodel.VideoDetails, 0, len(byID))
	for _, id := range ids {
		if details, ok := byID[id]; ok {
			videos = append(videos, details)
		}
	}
	return videos, nil
}

// ChannelInfo fetches the display metadata of a channel.
func (c *YouTubeDataClient) ChannelInfo(ctx context.Context, channelID string) (*ytmodel.ChannelInfo, error) {
	if err := c.connected(); err != nil {
		return nil, err
	}

	log.Debug().Str("channel_id", channelID).Msg("Fetching YouTube channel info")

	response, err := c.service.Channels.List([]string{"snippet"}).
		Id(channelID).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel from YouTube API: %w", Classify(err))
	}
	if len(response.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}

	item := response.Items[0]
	if item.Snippet == nil {
		return nil, &APIError{Kind: KindMalformed, Err: fmt.Errorf("channel %s has no snippet", channelID)}
	}

	return &ytmodel.ChannelInfo{
		ID:          channelID,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		CustomURL:   item.Snippet.CustomUrl,
		URL:         ytmodel.ChannelURL(channelID, item.Snippet.CustomUrl),
	}, nil
}

func convertVideo(item *ytapi.Video) (ytmodel.VideoDetails, error) {
	if item.Snippet == nil || item.ContentDetails == nil || item.Status == nil {
		return ytmodel.VideoDetails{}, fmt.Errorf("missing snippet, contentDetails or status")
	}

	publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	if err != nil {
		return ytmodel.VideoDetails{}, fmt.Errorf("invalid publishedAt %q: %w", item.Snippet.PublishedAt, err)
	}

	length, err := ParseDuration(item.ContentDetails.Duration)
	if err != nil {
		return ytmodel.VideoDetails{}, err
	}

	details := ytmodel.VideoDetails{
		ID:                      item.Id,
		Title:                   item.Snippet.Title,
		Description:             item.Snippet.Description,
		PublishedAt:             publishedAt,
		Duration:                length,
		PrivacyStatus:           item.Status.PrivacyStatus,
		LiveBroadcastContent:    item.Snippet.LiveBroadcastContent,
		HasLiveStreamingDetails: item.LiveStreamingDetails != nil,
		CategoryID:              item.Snippet.CategoryId,
	}
	if thumbs := item.Snippet.Thumbnails; thumbs != nil {
		if thumbs.Medium != nil {
			details.MediumThumbnailURL = thumbs.Medium.Url
		}
		if thumbs.Default != nil {
			details.DefaultThumbnailURL = thumbs.Default.Url
		}
	}
	return details, nil
}

// ParseDuration parses an ISO-8601 duration such as "PT1H2M3S".
func ParseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}
	d, err := duration.Parse(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	return d.ToTimeDuration(), nil
}

func pageSize(limit int) int {
	if limit < 1 {
		return 1
	}
	return min(limit, maxPageSize)
}
