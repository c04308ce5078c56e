package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/researchaccelerator-hub/channel-aggregator/client"
	ytmodel "github.com/researchaccelerator-hub/channel-aggregator/model/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveChannelInfo(t *testing.T) {
	ctx := context.Background()
	info := &ytmodel.ChannelInfo{ID: "UC1", Title: "Creator", URL: "https://www.youtube.com/channel/UC1"}

	source := new(MockVideoSource)
	source.On("ChannelInfo", ctx, "UC1").Return(info, nil).Once()

	got, err := NewInfoResolver(source).ResolveChannelInfo(ctx, "UC1")
	require.NoError(t, err)
	assert.Equal(t, info, got)
	source.AssertExpectations(t)
}

func TestResolveChannelInfo_NotFound(t *testing.T) {
	ctx := context.Background()
	source := new(MockVideoSource)
	source.On("ChannelInfo", ctx, "UC404").Return(nil, fmt.Errorf("%w: UC404", client.ErrChannelNotFound)).Once()

	_, err := NewInfoResolver(source).ResolveChannelInfo(ctx, "UC404")
	assert.ErrorIs(t, err, client.ErrChannelNotFound)
	assert.ErrorIs(t, err, client.ErrNotFound)
}
