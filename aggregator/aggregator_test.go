package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/researchaccelerator-hub/channel-aggregator/cache"
	"github.com/researchaccelerator-hub/channel-aggregator/client"
	"github.com/researchaccelerator-hub/channel-aggregator/model"
	ytmodel "github.com/researchaccelerator-hub/channel-aggregator/model/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockVideoResolver is a mock implementation of VideoResolver.
type MockVideoResolver struct {
	mock.Mock
}

func (m *MockVideoResolver) ResolveLatestVideos(ctx context.Context, channelID string, maxResults int) ([]model.VideoRecord, error) {
	args := m.Called(ctx, channelID, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.VideoRecord), args.Error(1)
}

// MockInfoResolver is a mock implementation of InfoResolver.
type MockInfoResolver struct {
	mock.Mock
}

func (m *MockInfoResolver) ResolveChannelInfo(ctx context.Context, channelID string) (*ytmodel.ChannelInfo, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ytmodel.ChannelInfo), args.Error(1)
}

var testConfigs = []model.ChannelConfig{
	{ID: "UC1", Name: "Main channel", Description: "Curated text one", URL: "https://www.youtube.com/@main"},
	{ID: "UC2", Name: "Second channel", Description: "Curated text two", URL: "https://www.youtube.com/channel/UC2"},
}

func testVideo(id string) model.VideoRecord {
	return model.VideoRecord{
		ID:           id,
		Title:        "Video " + id,
		ThumbnailURL: "https://i.ytimg.com/vi/" + id + "/mqdefault.jpg",
		PublishedAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		WatchURL:     model.WatchURL(id),
	}
}

func TestAggregate_ScenarioA_PartialFailure(t *testing.T) {
	videos := new(MockVideoResolver)
	info := new(MockInfoResolver)
	notFound := &client.APIError{Kind: client.KindNotFound, StatusCode: 404}

	videos.On("ResolveLatestVideos", mock.Anything, "UC1", 1).Return([]model.VideoRecord{testVideo("v1")}, nil)
	videos.On("ResolveLatestVideos", mock.Anything, "UC2", 1).Return(nil, notFound)
	info.On("ResolveChannelInfo", mock.Anything, "UC1").Return(&ytmodel.ChannelInfo{ID: "UC1", Title: "Live title", Description: "Upstream text", CustomURL: "@main"}, nil)
	info.On("ResolveChannelInfo", mock.Anything, "UC2").Return(nil, fmt.Errorf("%w: UC2", client.ErrChannelNotFound))

	agg := New(videos, info, Caches{}, Options{MaxResults: 1})
	records := agg.Aggregate(context.Background(), testConfigs)

	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "UC1", first.ID)
	assert.True(t, first.HasLiveData)
	assert.Equal(t, "Live title", first.Name)
	assert.Equal(t, "Curated text one", first.Description, "static description is always kept")
	require.Len(t, first.Videos, 1)
	assert.Equal(t, "v1", first.Videos[0].ID)

	second := records[1]
	assert.Equal(t, model.FallbackRecord(testConfigs[1]), second)
	assert.False(t, second.HasLiveData)
	assert.Empty(t, second.Videos)
	assert.NotNil(t, second.Videos)

	videos.AssertExpectations(t)
	info.AssertExpectations(t)
}

func TestAggregate_ScenarioB_NoAPIKey(t *testing.T) {
	agg := New(nil, nil, Caches{}, Options{})
	assert.False(t, agg.Available())

	result := agg.Run(context.Background(), testConfigs)
	assert.False(t, result.Available)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Channels, 2)
	for i, cfg := range testConfigs {
		assert.Equal(t, model.FallbackRecord(cfg), result.Channels[i])
	}
}

func TestAggregate_BothCallsFail(t *testing.T) {
	videos := new(MockVideoResolver)
	info := new(MockInfoResolver)
	videos.On("ResolveLatestVideos", mock.Anything, mock.Anything, 1).Return(nil, client.ErrServerFailure)
	info.On("ResolveChannelInfo", mock.Anything, mock.Anything).Return(nil, client.ErrQuotaExceeded)

	records := New(videos, info, Caches{}, Options{}).Aggregate(context.Background(), testConfigs)

	require.Len(t, records, len(testConfigs))
	for i, cfg := range testConfigs {
		assert.Equal(t, model.FallbackRecord(cfg), records[i])
	}
}

func TestAggregate_InfoFailsVideosSucceed(t *testing.T) {
	videos := new(MockVideoResolver)
	info := new(MockInfoResolver)
	videos.On("ResolveLatestVideos", mock.Anything, "UC1", 1).Return([]model.VideoRecord{}, nil)
	info.On("ResolveChannelInfo", mock.Anything, "UC1").Return(nil, errors.New("timeout"))

	records := New(videos, info, Caches{}, Options{}).Aggregate(context.Background(), testConfigs[:1])

	require.Len(t, records, 1)
	assert.True(t, records[0].HasLiveData, "live data reflects the video call alone")
	assert.Empty(t, records[0].Videos)
	assert.Equal(t, "Main channel", records[0].Name)
}

func TestAggregate_PreservesOrderAndLength(t *testing.T) {
	configs := make([]model.ChannelConfig, 25)
	for i := range configs {
		configs[i] = model.ChannelConfig{ID: fmt.Sprintf("UC%02d", i), Name: fmt.Sprintf("Channel %d", i)}
	}

	videos := new(MockVideoResolver)
	info := new(MockInfoResolver)
	for i, cfg := range configs {
		delay := time.Duration(len(configs)-i) * time.Millisecond
		if i%3 == 0 {
			videos.On("ResolveLatestVideos", mock.Anything, cfg.ID, 2).After(delay).Return(nil, client.ErrRateLimited)
		} else {
			videos.On("ResolveLatestVideos", mock.Anything, cfg.ID, 2).After(delay).Return([]model.VideoRecord{testVideo(cfg.ID + "-a"), testVideo(cfg.ID + "-b")}, nil)
		}
		info.On("ResolveChannelInfo", mock.Anything, cfg.ID).Return(&ytmodel.ChannelInfo{ID: cfg.ID, Title: "Live " + cfg.ID}, nil)
	}

	records := New(videos, info, Caches{}, Options{MaxResults: 2, Concurrency: 4}).Aggregate(context.Background(), configs)

	require.Len(t, records, len(configs))
	for i, record := range records {
		assert.Equal(t, configs[i].ID, record.ID)
		assert.Equal(t, "Live "+configs[i].ID, record.Name)
		assert.Equal(t, i%3 != 0, record.HasLiveData)
		assert.LessOrEqual(t, len(record.Videos), 2)
	}
}

func TestAggregate_Empty(t *testing.T) {
	records := New(new(MockVideoResolver), new(MockInfoResolver), Caches{}, Options{}).Aggregate(context.Background(), nil)
	assert.Empty(t, records)
}

func TestAggregate_UsesCaches(t *testing.T) {
	ctx := context.Background()
	videos := new(MockVideoResolver)
	info := new(MockInfoResolver)
	videos.On("ResolveLatestVideos", mock.Anything, "UC1", 1).Return([]model.VideoRecord{testVideo("v1")}, nil).Once()
	info.On("ResolveChannelInfo", mock.Anything, "UC1").Return(&ytmodel.ChannelInfo{ID: "UC1", Title: "Live"}, nil).Once()

	caches := Caches{
		Videos: cache.New[[]model.VideoRecord](cache.Config{Name: "api", TTL: time.Minute}, nil),
		Info:   cache.New[ytmodel.ChannelInfo](cache.Config{Name: "image", TTL: time.Hour}, nil),
	}
	agg := New(videos, info, caches, Options{MaxResults: 1})

	first := agg.Aggregate(ctx, testConfigs[:1])
	second := agg.Aggregate(ctx, testConfigs[:1])
	assert.Equal(t, first, second)

	_, ok := caches.Videos.Get(ctx, "videos:UC1:1")
	assert.True(t, ok)
	_, ok = caches.Info.Get(ctx, "channel:UC1")
	assert.True(t, ok)

	videos.AssertExpectations(t)
	info.AssertExpectations(t)
}

func TestAggregate_FailuresAreNotCached(t *testing.T) {
	ctx := context.Background()
	videos := new(MockVideoResolver)
	info := new(MockInfoResolver)
	videos.On("ResolveLatestVideos", mock.Anything, "UC1", 1).Return(nil, client.ErrServerFailure).Twice()
	info.On("ResolveChannelInfo", mock.Anything, "UC1").Return(nil, client.ErrServerFailure).Twice()

	caches := Caches{
		Videos: cache.New[[]model.VideoRecord](cache.DefaultConfig("api"), nil),
		Info:   cache.New[ytmodel.ChannelInfo](cache.DefaultConfig("image"), nil),
	}
	agg := New(videos, info, caches, Options{})
	agg.Aggregate(ctx, testConfigs[:1])
	agg.Aggregate(ctx, testConfigs[:1])

	videos.AssertExpectations(t)
	info.AssertExpectations(t)
}

// countingResolver tracks how many calls are in flight at once.
type countingResolver struct {
	mu       sync.Mutex
	inFlight int32
	peak     int32
}

func (c *countingResolver) enter() {
	n := atomic.AddInt32(&c.inFlight, 1)
	c.mu.Lock()
	if n > c.peak {
		c.peak = n
	}
	c.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&c.inFlight, -1)
}

func (c *countingResolver) ResolveLatestVideos(ctx context.Context, channelID string, maxResults int) ([]model.VideoRecord, error) {
	c.enter()
	return []model.VideoRecord{}, nil
}

func (c *countingResolver) ResolveChannelInfo(ctx context.Context, channelID string) (*ytmodel.ChannelInfo, error) {
	c.enter()
	return &ytmodel.ChannelInfo{ID: channelID}, nil
}

func TestAggregate_ConcurrencyLimit(t *testing.T) {
	configs := make([]model.ChannelConfig, 10)
	for i := range configs {
		configs[i] = model.ChannelConfig{ID: fmt.Sprintf("UC%d", i)}
	}

	counter := &countingResolver{}
	records := New(counter, counter, Caches{}, Options{Concurrency: 3}).Aggregate(context.Background(), configs)

	require.Len(t, records, 10)
	// Three channels, two calls each.
	assert.LessOrEqual(t, counter.peak, int32(6))
}

// barrierResolver holds every call until want calls have arrived, so it only
// succeeds when all of them are in flight together.
type barrierResolver struct {
	mu      sync.Mutex
	want    int
	arrived int
	release chan struct{}
}

func newBarrierResolver(want int) *barrierResolver {
	return &barrierResolver{want: want, release: make(chan struct{})}
}

func (b *barrierResolver) wait(ctx context.Context) error {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.want {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-b.release:
		return nil
	case <-time.After(2 * time.Second):
		return errors.New("not every call was in flight")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *barrierResolver) ResolveLatestVideos(ctx context.Context, channelID string, maxResults int) ([]model.VideoRecord, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	return []model.VideoRecord{}, nil
}

func (b *barrierResolver) ResolveChannelInfo(ctx context.Context, channelID string) (*ytmodel.ChannelInfo, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	return &ytmodel.ChannelInfo{ID: channelID, Title: "Live " + channelID}, nil
}

func TestAggregate_DefaultOptionsIssueEveryCallAtOnce(t *testing.T) {
	configs := make([]model.ChannelConfig, 10)
	for i := range configs {
		configs[i] = model.ChannelConfig{ID: fmt.Sprintf("UC%d", i)}
	}

	barrier := newBarrierResolver(2 * len(configs))
	start := time.Now()
	records := New(barrier, barrier, Caches{}, Options{}).Aggregate(context.Background(), configs)

	require.Len(t, records, 10)
	for _, record := range records {
		assert.True(t, record.HasLiveData, record.ID)
		assert.Equal(t, "Live "+record.ID, record.Name)
	}
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMerge(t *testing.T) {
	cfg := model.ChannelConfig{ID: "UC1", Name: "Static", Description: "Curated", URL: "https://www.youtube.com/channel/UC1"}

	tests := []struct {
		name     string
		cfg      model.ChannelConfig
		info     *ytmodel.ChannelInfo
		videos   []model.VideoRecord
		resolved bool
		want     model.ChannelRecord
	}{
		{
			name: "nothing resolved",
			cfg:  cfg,
			want: model.FallbackRecord(cfg),
		},
		{
			name:     "info and videos",
			cfg:      cfg,
			info:     &ytmodel.ChannelInfo{Title: "Live", Description: "Upstream", CustomURL: "@live"},
			videos:   []model.VideoRecord{testVideo("v1")},
			resolved: true,
			want: model.ChannelRecord{
				ChannelConfig: model.ChannelConfig{ID: "UC1", Name: "Live", Description: "Curated", URL: cfg.URL},
				Videos:        []model.VideoRecord{testVideo("v1")},
				HasLiveData:   true,
			},
		},
		{
			name: "configured custom url wins",
			cfg:  model.ChannelConfig{ID: "UC1", Name: "Static", CustomURL: "@curated"},
			info: &ytmodel.ChannelInfo{Title: "Live", CustomURL: "@live"},
			want: model.ChannelRecord{
				ChannelConfig: model.ChannelConfig{ID: "UC1", Name: "Live", CustomURL: "@curated"},
				Videos:        []model.VideoRecord{},
			},
		},
		{
			name: "upstream custom url is not copied",
			cfg:  cfg,
			info: &ytmodel.ChannelInfo{Title: "Live", CustomURL: "@live"},
			want: model.ChannelRecord{
				ChannelConfig: model.ChannelConfig{ID: "UC1", Name: "Live", Description: "Curated", URL: cfg.URL},
				Videos:        []model.VideoRecord{},
			},
		},
		{
			name: "empty upstream title keeps static name",
			cfg:  cfg,
			info: &ytmodel.ChannelInfo{},
			want: model.FallbackRecord(cfg),
		},
		{
			name:     "resolved with no videos",
			cfg:      cfg,
			resolved: true,
			want: model.ChannelRecord{
				ChannelConfig: cfg,
				Videos:        []model.VideoRecord{},
				HasLiveData:   true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.cfg, tt.info, tt.videos, tt.resolved))
		})
	}
}
