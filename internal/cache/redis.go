package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis wraps a go-redis client for caching and pub/sub.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the redis instance at the given URL, e.g.
// redis://localhost:6379/0. An empty URL falls back to localhost.
func NewRedis(url string) (*Redis, error) {
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	return &Redis{client: redis.NewClient(opt)}, nil
}

// Client exposes the underlying redis client for pub/sub consumers.
func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) Set(ctx context.Context, k string, v any, ttl time.Duration) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, k, value, ttl).Err()
}

// Get unmarshals the cached value into v. It reports whether the key was found.
func (r *Redis) Get(ctx context.Context, k string, v any) (bool, error) {
	data, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, json.Unmarshal(data, v)
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
