package kite

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// TokenSource supplies the daily Kite access token. The login flow that
// produces the token lives outside this service.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a fixed access token, typically read from the environment.
type StaticToken string

func (t StaticToken) AccessToken(context.Context) (string, error) {
	return string(t), nil
}

// RedisToken reads the access token from a Redis key that the login flow
// refreshes every trading day.
type RedisToken struct {
	client *redis.Client
	key    string
}

// NewRedisToken connects to Redis at redisURL and reads tokens from key.
func NewRedisToken(redisURL, key string) (*RedisToken, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RedisToken{client: redis.NewClient(opts), key: key}, nil
}

func (t *RedisToken) AccessToken(ctx context.Context) (string, error) {
	val, err := t.client.Get(ctx, t.key).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read access token from redis: %w", err)
	}
	return val, nil
}

// Close releases the Redis connection.
func (t *RedisToken) Close() error {
	return t.client.Close()
}
