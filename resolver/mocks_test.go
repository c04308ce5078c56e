package resolver

import (
	"context"

	ytmodel "github.com/researchaccelerator-hub/channel-aggregator/model/youtube"
	"github.com/stretchr/testify/mock"
)

// MockVideoSource is a mock implementation of VideoSource and InfoSource.
type MockVideoSource struct {
	mock.Mock
}

func (m *MockVideoSource) UploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	args := m.Called(ctx, channelID)
	return args.String(0), args.Error(1)
}

func (m *MockVideoSource) PlaylistVideoIDs(ctx context.Context, playlistID string, limit int) ([]string, error) {
	args := m.Called(ctx, playlistID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockVideoSource) SearchVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	args := m.Called(ctx, channelID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockVideoSource) VideoDetails(ctx context.Context, ids []string) ([]ytmodel.VideoDetails, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ytmodel.VideoDetails), args.Error(1)
}

func (m *MockVideoSource) ChannelInfo(ctx context.Context, channelID string) (*ytmodel.ChannelInfo, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ytmodel.ChannelInfo), args.Error(1)
}

// MockFeedSource is a mock implementation of FeedSource.
type MockFeedSource struct {
	mock.Mock
}

func (m *MockFeedSource) FeedVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	args := m.Called(ctx, channelID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
