package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStamp(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStamp()

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "a new stamp starts at the zero time")

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.Mark(ctx, now))

	last, err = s.Last(ctx)
	require.NoError(t, err)
	assert.True(t, last.Equal(now))
}

func TestMemoryStamp_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStamp()
	base := time.Unix(1_700_000_000, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Mark(ctx, base.Add(time.Duration(i)*time.Second))
			_, _ = s.Last(ctx)
		}(i)
	}
	wg.Wait()

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestNewRedisStamp_NilClient(t *testing.T) {
	assert.Panics(t, func() { NewRedisStamp(nil, "bike", zerolog.Nop()) })
}

// TestRedisStamp_Local runs against a local Redis and is skipped without one.
func TestRedisStamp_Local(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	s := NewRedisStamp(client, "test-local-"+time.Now().Format("150405.000"), zerolog.Nop())
	defer client.Del(ctx, s.Key())

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	now := time.UnixMilli(1_700_000_000_123)
	require.NoError(t, s.Mark(ctx, now))

	last, err = s.Last(ctx)
	require.NoError(t, err)
	assert.True(t, last.Equal(now))
}
