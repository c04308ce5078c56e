package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelURL(t *testing.T) {
	tests := []struct {
		name      string
		channelID string
		customURL string
		want      string
	}{
		{"channel id", "UC1", "", "https://www.youtube.com/channel/UC1"},
		{"handle", "UC1", "@creator", "https://www.youtube.com/@creator"},
		{"handle without at sign", "UC1", "creator", "https://www.youtube.com/@creator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChannelURL(tt.channelID, tt.customURL))
		})
	}
}

func TestThumbnail(t *testing.T) {
	v := VideoDetails{MediumThumbnailURL: "medium", DefaultThumbnailURL: "default"}
	assert.Equal(t, "medium", v.Thumbnail())

	v.MediumThumbnailURL = ""
	assert.Equal(t, "default", v.Thumbnail())
}
