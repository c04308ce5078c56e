package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
)

// DefaultFeedURL is the public per-channel uploads feed.
const DefaultFeedURL = "https://www.youtube.com/feeds/videos.xml"

// FeedClient reads a channel's public Atom feed. It needs no API key and is
// used as a last-resort source of candidate video ids.
type FeedClient struct {
	parser  *gofeed.Parser
	baseURL string
}

// NewFeedClient creates a feed client. httpClient should carry the retrying
// transport; baseURL defaults to DefaultFeedURL.
func NewFeedClient(httpClient *http.Client, baseURL string) *FeedClient {
	if baseURL == "" {
		baseURL = DefaultFeedURL
	}
	parser := gofeed.NewParser()
	if httpClient != nil {
		parser.Client = httpClient
	}
	return &FeedClient{parser: parser, baseURL: baseURL}
}

// FeedVideoIDs returns up to limit video ids from the channel feed, newest first.
func (c *FeedClient) FeedVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	feedURL := c.baseURL + "?channel_id=" + url.QueryEscape(channelID)

	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel feed: %w", Classify(err))
	}

	ids := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if id := feedVideoID(item); id != "" {
			ids = append(ids, id)
		}
		if limit > 0 && len(ids) >= limit {
			break
		}
	}

	log.Debug().Str("channel_id", channelID).Int("video_count", len(ids)).Msg("Read channel feed")
	return ids, nil
}

// feedVideoID extracts the video id from the yt:videoId extension, falling
// back to the entry GUID ("yt:video:<id>").
func feedVideoID(item *gofeed.Item) string {
	if yt, ok := item.Extensions["yt"]; ok {
		if values := yt["videoId"]; len(values) > 0 && values[0].Value != "" {
			return values[0].Value
		}
	}
	if strings.HasPrefix(item.GUID, "yt:video:") {
		return strings.TrimPrefix(item.GUID, "yt:video:")
	}
	return ""
}
