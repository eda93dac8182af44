package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("audit key not found")

// Store is a small key-value store. Should be safe to use concurrently.
type Store interface {
	// Load returns the stored value or ErrNotFound when the key is absent.
	Load(ctx context.Context, key string) (string, error)

	// Save stores the value, replacing any previous one.
	Save(ctx context.Context, key, value string) error
}

type InMemoryStore struct {
	values map[string]string
	mutex  sync.Mutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{values: make(map[string]string)}
}

func (s *InMemoryStore) Load(_ context.Context, key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (s *InMemoryStore) Save(_ context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.values[key] = value
	return nil
}

// ------------------------------------------------------------------------------

type RedisStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func createKey(namespace, key string) string {
	return fmt.Sprintf("%s:audit:%s", namespace, key)
}

func (s *RedisStore) Load(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, createKey(s.namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *RedisStore) Save(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, createKey(s.namespace, key), value, 0).Err()
}
