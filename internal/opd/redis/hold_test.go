package redis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects a client to an in-memory miniredis server.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestAcquireIsExclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	h := NewIssueHold(client, time.Minute)
	ctx := context.Background()

	ok, err := h.Acquire(ctx, "s1", "p@x.com", "req-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Acquire(ctx, "s1", "p@x.com", "req-2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.Acquire(ctx, "s2", "p@x.com", "req-3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseOnlyByOwner(t *testing.T) {
	client, mr := setupTestRedis(t)
	h := NewIssueHold(client, time.Minute)
	ctx := context.Background()

	_, err := h.Acquire(ctx, "s1", "p@x.com", "owner")
	require.NoError(t, err)

	require.NoError(t, h.Release(ctx, "s1", "p@x.com", "intruder"))
	assert.True(t, mr.Exists(holdKey("s1", "p@x.com")))

	require.NoError(t, h.Release(ctx, "s1", "p@x.com", "owner"))
	assert.False(t, mr.Exists(holdKey("s1", "p@x.com")))

	assert.NoError(t, h.Release(ctx, "s1", "p@x.com", "owner"))
}

func TestHoldExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	h := NewIssueHold(client, 5*time.Second)
	ctx := context.Background()

	_, err := h.Acquire(ctx, "s1", "p@x.com", "req")
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	ok, err := h.Acquire(ctx, "s1", "p@x.com", "req-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	client, _ := setupTestRedis(t)
	h := NewIssueHold(client, time.Minute)
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := h.Acquire(ctx, "s1", "p@x.com", fmt.Sprintf("req-%d", i))
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestAcquireFailsWhenRedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	h := NewIssueHold(client, time.Minute)
	mr.Close()

	_, err := h.Acquire(context.Background(), "s1", "p@x.com", "req")
	assert.Error(t, err)
}
