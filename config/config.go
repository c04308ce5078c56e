// Package config loads runtime settings and the static channel list.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/researchaccelerator-hub/channel-aggregator/cache"
	"github.com/researchaccelerator-hub/channel-aggregator/client"
	"github.com/researchaccelerator-hub/channel-aggregator/resolver"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CHANNELS_RETRY_DELAY.
const EnvPrefix = "CHANNELS"

// Config is the complete runtime configuration.
type Config struct {
	YouTube      YouTubeConfig    `mapstructure:"youtube"`
	Retry        RetryConfig      `mapstructure:"retry"`
	Filter       FilterConfig     `mapstructure:"filter"`
	Cache        CacheConfig      `mapstructure:"cache"`
	Aggregator   AggregatorConfig `mapstructure:"aggregator"`
	Server       ServerConfig     `mapstructure:"server"`
	ChannelsFile string           `mapstructure:"channels_file"`
	Log          LogConfig        `mapstructure:"log"`
}

// YouTubeConfig configures the upstream API.
type YouTubeConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Endpoint          string        `mapstructure:"endpoint"`
	FeedURL           string        `mapstructure:"feed_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxResults        int           `mapstructure:"max_results"`
	Strategies        []string      `mapstructure:"strategies"`
}

// RetryConfig configures the retrying request client.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
}

// FilterConfig configures the content filter.
type FilterConfig struct {
	GamingCategory string   `mapstructure:"gaming_category"`
	LiveKeywords   []string `mapstructure:"live_keywords"`
}

// CacheInstanceConfig configures one cache instance.
type CacheInstanceConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

// CacheConfig configures the three cache instances and the shared backends.
type CacheConfig struct {
	API        CacheInstanceConfig `mapstructure:"api"`
	Image      CacheInstanceConfig `mapstructure:"image"`
	Default    CacheInstanceConfig `mapstructure:"default"`
	SQLitePath string              `mapstructure:"sqlite_path"`
	RedisURL   string              `mapstructure:"redis_url"`
	DaprStore  string              `mapstructure:"dapr_store"`
}

// AggregatorConfig configures the fan-out.
type AggregatorConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	retry := client.DefaultRetryConfig()

	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.endpoint", "")
	v.SetDefault("youtube.feed_url", client.DefaultFeedURL)
	v.SetDefault("youtube.timeout", 30*time.Second)
	v.SetDefault("youtube.requests_per_second", 0)
	v.SetDefault("youtube.max_results", 1)
	v.SetDefault("youtube.strategies", resolver.DefaultStrategies)

	v.SetDefault("retry.max_attempts", retry.MaxAttempts)
	v.SetDefault("retry.delay", retry.RetryDelay)

	v.SetDefault("filter.gaming_category", resolver.DefaultGamingCategory)
	v.SetDefault("filter.live_keywords", resolver.DefaultLiveKeywords)

	v.SetDefault("cache.api.backend", cache.BackendMemory)
	v.SetDefault("cache.api.ttl", 10*time.Minute)
	v.SetDefault("cache.api.max_size", 100)
	v.SetDefault("cache.image.backend", cache.BackendMemory)
	v.SetDefault("cache.image.ttl", time.Hour)
	v.SetDefault("cache.image.max_size", 200)
	v.SetDefault("cache.default.backend", cache.BackendMemory)
	v.SetDefault("cache.default.ttl", 10*time.Minute)
	v.SetDefault("cache.default.max_size", 100)
	v.SetDefault("cache.sqlite_path", "")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.dapr_store", "statestore")

	v.SetDefault("aggregator.concurrency", 0)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("channels_file", "channels.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// NewViper returns a viper instance with defaults and environment overrides
// registered. YOUTUBE_API_KEY is accepted alongside CHANNELS_YOUTUBE_API_KEY.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("youtube.api_key", EnvPrefix+"_YOUTUBE_API_KEY", "YOUTUBE_API_KEY")
	return v
}

// Load reads the optional config file at path into v and decodes the result.
// The file format follows the extension (yaml, toml, json).
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.YouTube.Timeout <= 0 {
		return fmt.Errorf("youtube.timeout must be positive")
	}
	if c.YouTube.RequestsPerSecond < 0 {
		return fmt.Errorf("youtube.requests_per_second cannot be negative")
	}
	if c.YouTube.MaxResults < 1 || c.YouTube.MaxResults > 50 {
		return fmt.Errorf("youtube.max_results must be between 1 and 50")
	}
	if len(c.YouTube.Strategies) == 0 {
		return fmt.Errorf("youtube.strategies cannot be empty")
	}
	for _, name := range c.YouTube.Strategies {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case resolver.StrategyUploads, resolver.StrategySearch, resolver.StrategyFeed:
		default:
			return fmt.Errorf("invalid strategy '%s', must be one of: uploads, search, feed", name)
		}
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay cannot be negative")
	}

	if c.Filter.GamingCategory == "" {
		return fmt.Errorf("filter.gaming_category cannot be empty")
	}

	for name, instance := range c.Cache.Instances() {
		if err := c.validateCache(name, instance); err != nil {
			return err
		}
	}

	if c.Aggregator.Concurrency < 0 {
		return fmt.Errorf("aggregator.concurrency cannot be negative")
	}
	return nil
}

func (c *Config) validateCache(name string, instance CacheInstanceConfig) error {
	if instance.TTL <= 0 {
		return fmt.Errorf("cache.%s.ttl must be positive", name)
	}
	if instance.MaxSize < 1 {
		return fmt.Errorf("cache.%s.max_size must be at least 1", name)
	}
	switch strings.ToLower(instance.Backend) {
	case "", cache.BackendMemory, cache.BackendSQLite, cache.BackendDapr:
	case cache.BackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.%s uses redis but cache.redis_url is empty", name)
		}
	default:
		return fmt.Errorf("invalid cache.%s.backend '%s', must be one of: memory, sqlite, redis, dapr", name, instance.Backend)
	}
	return nil
}

// Instances returns the per-instance settings keyed by cache name.
func (c CacheConfig) Instances() map[string]CacheInstanceConfig {
	return map[string]CacheInstanceConfig{
		"api":     c.API,
		"image":   c.Image,
		"default": c.Default,
	}
}

// StoreConfig returns the store settings for the named cache instance.
func (c CacheConfig) StoreConfig(name string) cache.StoreConfig {
	return cache.StoreConfig{
		Backend:    c.Instances()[name].Backend,
		Namespace:  name,
		SQLitePath: c.SQLitePath,
		RedisURL:   c.RedisURL,
		DaprStore:  c.DaprStore,
	}
}

// HasAPIKey reports whether upstream calls can be made.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.YouTube.APIKey) != ""
}
