// Package youtube contains YouTube-specific data models
package youtube

import (
	"time"
)

// ChannelInfo is the display metadata of a channel as reported upstream.
type ChannelInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CustomURL   string `json:"customUrl,omitempty"`
	URL         string `json:"url"`
}

// VideoDetails is the detail view of a candidate video, as returned by the
// batched videos lookup. The content filter works on this shape.
type VideoDetails struct {
	ID                      string        `json:"id"`
	Title                   string        `json:"title"`
	Description             string        `json:"description"`
	PublishedAt             time.Time     `json:"publishedAt"`
	Duration                time.Duration `json:"duration"`
	PrivacyStatus           string        `json:"privacyStatus"`
	LiveBroadcastContent    string        `json:"liveBroadcastContent,omitempty"`
	HasLiveStreamingDetails bool          `json:"hasLiveStreamingDetails"`
	CategoryID              string        `json:"categoryId"`
	MediumThumbnailURL      string        `json:"mediumThumbnailUrl,omitempty"`
	DefaultThumbnailURL     string        `json:"defaultThumbnailUrl,omitempty"`
}

// Thumbnail picks the medium thumbnail, falling back to the default one.
func (v VideoDetails) Thumbnail() string {
	if v.MediumThumbnailURL != "" {
		return v.MediumThumbnailURL
	}
	return v.DefaultThumbnailURL
}

// ChannelURL builds the canonical channel URL, preferring the custom handle.
func ChannelURL(channelID, customURL string) string {
	if customURL != "" {
		if customURL[0] != '@' {
			customURL = "@" + customURL
		}
		return "https://www.youtube.com/" + customURL
	}
	return "https://www.youtube.com/channel/" + channelID
}
