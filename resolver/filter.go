// Package resolver turns a channel id into display-ready videos and channel
// metadata, trying upstream query strategies in order and filtering out
// content unsuitable for a channel directory.
package resolver

import (
	"strings"
	"time"

	"github.com/researchaccelerator-hub/channel-aggregator/metrics"
	"github.com/researchaccelerator-hub/channel-aggregator/model"
	ytmodel "github.com/researchaccelerator-hub/channel-aggregator/model/youtube"
	"github.com/rs/zerolog/log"
)

// Filter rule names, in evaluation order.
const (
	RuleNotPublic    = "not_public"
	RuleShort        = "short"
	RuleTooLong      = "too_long"
	RuleLiveFlag     = "live_broadcast"
	RuleLiveDetails  = "live_streaming_details"
	RuleLiveKeyword  = "live_keyword"
	RuleLongNonGames = "long_non_gaming"
)

const (
	shortMaxDuration   = 60 * time.Second
	archiveMinDuration = 6 * time.Hour
	nonGamingMaxLength = 3 * time.Hour

	// DefaultGamingCategory is the upstream "Gaming" category id.
	DefaultGamingCategory = "20"
)

// DefaultLiveKeywords flag live or archived stream content in English and
// Japanese titles and descriptions.
var DefaultLiveKeywords = []string{
	"live",
	"stream",
	"streaming",
	"livestream",
	"ライブ",
	"配信",
	"生放送",
	"アーカイブ",
}

// FilterConfig configures the content filter.
type FilterConfig struct {
	GamingCategoryID string
	LiveKeywords     []string
}

// DefaultFilterConfig returns the gaming category "20" and DefaultLiveKeywords.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		GamingCategoryID: DefaultGamingCategory,
		LiveKeywords:     append([]string(nil), DefaultLiveKeywords...),
	}
}

// Filter drops shorts, live content and non-public videos.
type Filter struct {
	gamingCategory string
	keywords       []string
}

// NewFilter creates a filter. Empty fields take their defaults.
func NewFilter(cfg FilterConfig) *Filter {
	if cfg.GamingCategoryID == "" {
		cfg.GamingCategoryID = DefaultGamingCategory
	}
	if cfg.LiveKeywords == nil {
		cfg.LiveKeywords = DefaultLiveKeywords
	}

	keywords := make([]string, 0, len(cfg.LiveKeywords))
	for _, keyword := range cfg.LiveKeywords {
		if keyword = strings.ToLower(strings.TrimSpace(keyword)); keyword != "" {
			keywords = append(keywords, keyword)
		}
	}
	return &Filter{gamingCategory: cfg.GamingCategoryID, keywords: keywords}
}

// Classify reports whether v is kept and, when it is not, the first rule
// that rejected it.
func (f *Filter) Classify(v ytmodel.VideoDetails) (bool, string) {
	switch {
	case v.PrivacyStatus != "public":
		return false, RuleNotPublic
	case v.Duration <= shortMaxDuration:
		return false, RuleShort
	case v.Duration > archiveMinDuration:
		return false, RuleTooLong
	case v.LiveBroadcastContent != "" && v.LiveBroadcastContent != "none":
		return false, RuleLiveFlag
	case v.HasLiveStreamingDetails:
		return false, RuleLiveDetails
	case f.hasLiveKeyword(v.Title) || f.hasLiveKeyword(v.Description):
		return false, RuleLiveKeyword
	case v.CategoryID != f.gamingCategory && v.Duration > nonGamingMaxLength:
		return false, RuleLongNonGames
	}
	return true, ""
}

// Apply keeps the videos that pass every rule, in input order, and maps the
// first maxResults of them to records.
func (f *Filter) Apply(videos []ytmodel.VideoDetails, maxResults int) []model.VideoRecord {
	records := make([]model.VideoRecord, 0, min(len(videos), max(maxResults, 0)))
	for _, v := range videos {
		if len(records) >= maxResults {
			break
		}
		keep, rule := f.Classify(v)
		if !keep {
			metrics.FilteredVideos.WithLabelValues(rule).Inc()
			log.Debug().Str("video_id", v.ID).Str("rule", rule).Msg("Filtered video")
			continue
		}
		records = append(records, toRecord(v))
	}
	return records
}

func (f *Filter) hasLiveKeyword(text string) bool {
	if text == "" {
		return false
	}
	text = strings.ToLower(text)
	for _, keyword := range f.keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func toRecord(v ytmodel.VideoDetails) model.VideoRecord {
	return model.VideoRecord{
		ID:           v.ID,
		Title:        v.Title,
		Description:  v.Description,
		ThumbnailURL: v.Thumbnail(),
		PublishedAt:  v.PublishedAt,
		WatchURL:     model.WatchURL(v.ID),
	}
}
