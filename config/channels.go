package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/researchaccelerator-hub/channel-aggregator/common"
	"github.com/researchaccelerator-hub/channel-aggregator/model"
	ytmodel "github.com/researchaccelerator-hub/channel-aggregator/model/youtube"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// channelsFile is the on-disk layout of the channel list.
type channelsFile struct {
	Channels []model.ChannelConfig `yaml:"channels"`
}

// LoadChannels reads the static channel list. YAML files (.yaml, .yml) hold
// full entries under "channels"; any other file is read as one channel id
// per line. http(s) paths are downloaded first.
func LoadChannels(ctx context.Context, path string) ([]model.ChannelConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("channels file path is empty")
	}

	if common.IsRemotePath(path) {
		local, err := common.DownloadURLFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to download channels file: %w", err)
		}
		defer os.Remove(local)
		path = local
	}

	var (
		channels []model.ChannelConfig
		err      error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		channels, err = loadYAML(path)
	default:
		channels, err = loadIDList(path)
	}
	if err != nil {
		return nil, err
	}

	for i := range channels {
		if err := normalize(&channels[i]); err != nil {
			return nil, fmt.Errorf("invalid channel at index %d: %w", i, err)
		}
	}

	log.Info().Str("path", path).Int("channel_count", len(channels)).Msg("Loaded channel configuration")
	return channels, nil
}

func loadYAML(path string) ([]model.ChannelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file channelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return file.Channels, nil
}

func loadIDList(path string) ([]model.ChannelConfig, error) {
	ids, err := common.ReadLines(path)
	if err != nil {
		return nil, err
	}
	channels := make([]model.ChannelConfig, 0, len(ids))
	for _, id := range ids {
		channels = append(channels, model.ChannelConfig{ID: id})
	}
	return channels, nil
}

// normalize rejects entries without an id and fills the display URL when
// the entry has none.
func normalize(ch *model.ChannelConfig) error {
	ch.ID = strings.TrimSpace(ch.ID)
	if ch.ID == "" {
		return fmt.Errorf("channel id is required")
	}
	if ch.URL == "" {
		ch.URL = ytmodel.ChannelURL(ch.ID, ch.CustomURL)
	}
	return nil
}
