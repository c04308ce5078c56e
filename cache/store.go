package cache

import (
	"context"
	"fmt"
	"strings"
)

// Store is a persistent key/value backend. Keys passed to a Store already
// carry KeyPrefix; Keys must return only keys with that prefix.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Backend names accepted by OpenStore.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendDapr   = "dapr"
)

// StoreConfig selects and configures a persistent backend.
type StoreConfig struct {
	Backend string
	// Namespace isolates one cache's keys from another's in a shared backend.
	Namespace  string
	SQLitePath string
	RedisURL   string
	DaprStore  string
}

// OpenStore opens the configured backend. The memory backend returns a nil
// Store, which Cache treats as in-memory only.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return nil, nil
	case BackendSQLite:
		store, err = NewSQLiteStore(cfg.SQLitePath, cfg.Namespace)
	case BackendRedis:
		store, err = NewRedisStore(ctx, cfg.RedisURL, cfg.Namespace)
	case BackendDapr:
		store, err = NewDaprStore(cfg.DaprStore, cfg.Namespace)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
