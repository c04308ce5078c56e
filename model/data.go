// Package model holds the records exchanged between the aggregation engine
// and the presentation layer.
package model

import "time"

// ChannelConfig is a statically configured channel entry. It is never
// mutated once loaded.
type ChannelConfig struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	URL         string `json:"url" yaml:"url"`
	CustomURL   string `json:"customUrl,omitempty" yaml:"customUrl,omitempty"`
}

// VideoRecord is a display-ready video.
type VideoRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PublishedAt  time.Time `json:"publishedAt"`
	WatchURL     string    `json:"watchUrl"`
}

// ChannelRecord is the unit handed to the presentation layer: the static
// configuration plus whatever live data could be resolved.
type ChannelRecord struct {
	ChannelConfig
	Videos      []VideoRecord `json:"videos"`
	HasLiveData bool          `json:"hasLiveData"`
}

// FallbackRecord builds the record used when no upstream data is available
// for a channel.
func FallbackRecord(cfg ChannelConfig) ChannelRecord {
	return ChannelRecord{
		ChannelConfig: cfg,
		Videos:        []VideoRecord{},
		HasLiveData:   false,
	}
}

// WatchURL returns the public watch page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
