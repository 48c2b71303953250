// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultRedisPrefix namespaces keys written by RedisStore.
const DefaultRedisPrefix = "chirpyard:ratelimit:"

// RedisStore shares attempt markers between processes through Redis.
type RedisStore struct {
	client redis.UniversalClient
	window time.Duration
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, window time.Duration, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, window: normalizeWindow(window), prefix: prefix}
}

// DialRedis parses a redis:// URL and creates a client for it.
func DialRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("RATELIMIT_REDIS_URL_INVALID").Wrap(err)
	}
	return redis.NewClient(opts), nil
}

// Allow implements Store with SET NX PX.
func (s *RedisStore) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := s.prefix + key
	ok, err := s.client.SetNX(ctx, k, 1, s.window).Result()
	if err != nil {
		Decisions.WithLabelValues("redis", DecisionError).Inc()
		return false, 0, oops.Code("RATELIMIT_REDIS_FAILED").With("operation", "setnx").With("key", k).Wrap(err)
	}
	if ok {
		Decisions.WithLabelValues("redis", DecisionAllowed).Inc()
		return true, 0, nil
	}
	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		Decisions.WithLabelValues("redis", DecisionError).Inc()
		return false, 0, oops.Code("RATELIMIT_REDIS_FAILED").With("operation", "pttl").With("key", k).Wrap(err)
	}
	Decisions.WithLabelValues("redis", DecisionThrottled).Inc()
	return false, max(ttl, 0), nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.Code("RATELIMIT_REDIS_FAILED").With("operation", "ping").Wrap(err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
