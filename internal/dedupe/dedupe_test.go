package dedupe

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClaimer(t *testing.T, c Claimer) {
	ctx := context.Background()
	id := int64(uuid.New().ID())

	ok, err := c.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	require.NoError(t, c.Release(ctx, id))
	ok, err = c.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "released ids can be claimed again")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := c.Claim(ctx, id+1); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestMemory(t *testing.T) {
	m := NewMemory(time.Minute, 0)
	defer m.Close()
	testClaimer(t, m)
	assert.Equal(t, "memory", m.Backend())
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute, 0)
	defer m.Close()
	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	ok, _ := m.Claim(ctx, 7)
	require.True(t, ok)
	ok, _ = m.Claim(ctx, 8)
	require.True(t, ok)

	clock = clock.Add(30 * time.Second)
	ok, _ = m.Claim(ctx, 7)
	assert.False(t, ok)

	clock = clock.Add(31 * time.Second)
	m.sweep()
	assert.Equal(t, 0, m.size())
	ok, _ = m.Claim(ctx, 7)
	assert.True(t, ok)
}

func TestRedis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	r, err := NewRedis(context.Background(), url, time.Minute)
	require.NoError(t, err)
	defer r.Close()
	testClaimer(t, r)
	assert.Equal(t, "redis", r.Backend())
}

func TestNewRedisBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}
