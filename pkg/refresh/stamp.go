// Package refresh holds the "last global refresh" timestamp of a station
// provider.
//
// MemoryStamp keeps it per process. RedisStamp shares it between replicas
// that draw on the same upstream budget, so a refresh done by one replica is
// not repeated by the others.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Stamp stores when the last global refresh happened.
type Stamp interface {
	// Last returns the last refresh time, or the zero time if none happened.
	Last(ctx context.Context) (time.Time, error)

	// Mark records t as the last refresh time.
	Mark(ctx context.Context, t time.Time) error
}

// MemoryStamp is a process-local Stamp.
type MemoryStamp struct {
	mu   sync.RWMutex
	last time.Time
}

// NewMemoryStamp creates a stamp starting at the zero time.
func NewMemoryStamp() *MemoryStamp {
	return &MemoryStamp{}
}

// Last implements Stamp.
func (s *MemoryStamp) Last(context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, nil
}

// Mark implements Stamp.
func (s *MemoryStamp) Mark(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = t
	return nil
}

// KeyPrefix namespaces refresh stamps in Redis.
const KeyPrefix = "transit:refresh:"

// RedisStamp stores the stamp as unix milliseconds under one Redis key.
type RedisStamp struct {
	redis  *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisStamp creates a stamp stored under KeyPrefix+name.
func NewRedisStamp(redisClient *redis.Client, name string, logger zerolog.Logger) *RedisStamp {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStamp{
		redis:  redisClient,
		key:    KeyPrefix + name,
		logger: logger,
	}
}

// Key returns the Redis key holding the stamp.
func (s *RedisStamp) Key() string {
	return s.key
}

// Last implements Stamp. A missing key is the zero time.
func (s *RedisStamp) Last(ctx context.Context) (time.Time, error) {
	millis, err := s.redis.Get(ctx, s.key).Int64()
	if errors.Is(err, redis.Nil) {
		s.logger.Debug().Str("key", s.key).Msg("No refresh stamp in Redis")
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get refresh stamp %s: %w", s.key, err)
	}
	return time.UnixMilli(millis), nil
}

// Mark implements Stamp.
func (s *RedisStamp) Mark(ctx context.Context, t time.Time) error {
	if err := s.redis.Set(ctx, s.key, t.UnixMilli(), 0).Err(); err != nil {
		return fmt.Errorf("set refresh stamp %s: %w", s.key, err)
	}
	s.logger.Debug().
		Str("key", s.key).
		Time("last_refresh", t).
		Msg("Refresh stamp updated")
	return nil
}
