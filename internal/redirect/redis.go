package redirect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisTTL bounds how long an abandoned redirect survives.
const DefaultRedisTTL = 30 * time.Minute

// RedisStore is a Store backed by Redis, namespaced by tab id so that
// concurrent tabs never observe each other's values.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to the Redis server described by rawURL
// (redis://[:password@]host:port/db) and scopes keys to tabID.
func NewRedisStore(ctx context.Context, rawURL, tabID string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newRedisStore(client, tabID, DefaultRedisTTL), nil
}

func newRedisStore(client *redis.Client, tabID string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "sketchflow:tab:" + tabID,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(k string) string {
	return strings.Join([]string{s.prefix, k}, ":")
}

func (s *RedisStore) Save(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Take reads and deletes in one MULTI/EXEC so two takers cannot both win.
func (s *RedisStore) Take(ctx context.Context, key string) (string, bool, error) {
	k := s.key(key)
	var get *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, k)
		p.Del(ctx, k)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis take %s: %w", key, err)
	}
	return get.Val(), true, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
