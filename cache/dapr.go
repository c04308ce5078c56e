package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"

	daprc "github.com/dapr/go-sdk/client"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	defaultStateStoreName = "statestore"
	daprIndexKey          = "index"
)

// daprStateClient is the part of the Dapr client the store needs.
type daprStateClient interface {
	GetState(ctx context.Context, storeName, key string, meta map[string]string) (*daprc.StateItem, error)
	SaveState(ctx context.Context, storeName, key string, data []byte, meta map[string]string, so ...daprc.StateOption) error
	DeleteState(ctx context.Context, storeName, key string, meta map[string]string) error
	Close()
}

// DaprStore keeps cache entries in a Dapr state store. The state API cannot
// enumerate keys, so the store maintains its own key index.
type DaprStore struct {
	client    daprStateClient
	storeName string
	namespace string

	mu     sync.Mutex
	index  map[string]struct{}
	loaded bool
}

// NewDaprStore connects to the local Dapr sidecar (DAPR_GRPC_PORT, default
// 50001) and uses the named state store component.
func NewDaprStore(storeName, namespace string) (*DaprStore, error) {
	daprPort := os.Getenv("DAPR_GRPC_PORT")
	if daprPort == "" {
		daprPort = "50001"
	}

	conn, err := grpc.NewClient(
		net.JoinHostPort("127.0.0.1", daprPort),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	return newDaprStore(daprc.NewClientWithConnection(conn), storeName, namespace), nil
}

func newDaprStore(client daprStateClient, storeName, namespace string) *DaprStore {
	if storeName == "" {
		storeName = defaultStateStoreName
	}
	return &DaprStore{
		client:    client,
		storeName: storeName,
		namespace: namespace,
		index:     make(map[string]struct{}),
	}
}

func (s *DaprStore) stateKey(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + "||" + key
}

// Get implements Store.
func (s *DaprStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item, err := s.client.GetState(ctx, s.storeName, s.stateKey(key), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get state %s: %w", key, err)
	}
	if item == nil || len(item.Value) == 0 {
		return nil, false, nil
	}
	return item.Value, true, nil
}

// Set implements Store.
func (s *DaprStore) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.SaveState(ctx, s.storeName, s.stateKey(key), data, nil); err != nil {
		return fmt.Errorf("failed to save state %s: %w", key, err)
	}
	return s.updateIndex(ctx, func(index map[string]struct{}) bool {
		if _, ok := index[key]; ok {
			return false
		}
		index[key] = struct{}{}
		return true
	})
}

// Delete implements Store.
func (s *DaprStore) Delete(ctx context.Context, key string) error {
	if err := s.client.DeleteState(ctx, s.storeName, s.stateKey(key), nil); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", key, err)
	}
	return s.updateIndex(ctx, func(index map[string]struct{}) bool {
		if _, ok := index[key]; !ok {
			return false
		}
		delete(index, key)
		return true
	})
}

// Keys implements Store.
func (s *DaprStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadIndexLocked(ctx); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.index))
	for key := range s.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Store.
func (s *DaprStore) Close() error {
	s.client.Close()
	return nil
}

func (s *DaprStore) updateIndex(ctx context.Context, mutate func(map[string]struct{}) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadIndexLocked(ctx); err != nil {
		return err
	}

	// The in-memory index only changes once the saved index does.
	next := make(map[string]struct{}, len(s.index)+1)
	for key := range s.index {
		next[key] = struct{}{}
	}
	if !mutate(next) {
		return nil
	}

	keys := make([]string, 0, len(next))
	for key := range next {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to encode key index: %w", err)
	}
	if err := s.client.SaveState(ctx, s.storeName, s.stateKey(daprIndexKey), data, nil); err != nil {
		return fmt.Errorf("failed to save key index: %w", err)
	}
	s.index = next
	return nil
}

func (s *DaprStore) loadIndexLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	item, err := s.client.GetState(ctx, s.storeName, s.stateKey(daprIndexKey), nil)
	if err != nil {
		return fmt.Errorf("failed to load key index: %w", err)
	}
	if item != nil && len(item.Value) > 0 {
		var keys []string
		if err := json.Unmarshal(item.Value, &keys); err != nil {
			log.Warn().Err(err).Str("store", s.storeName).Msg("Discarding unreadable cache key index")
		}
		for _, key := range keys {
			s.index[key] = struct{}{}
		}
	}
	s.loaded = true
	return nil
}
