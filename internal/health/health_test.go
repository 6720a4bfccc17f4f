package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xsamyy/callpoll/internal/store"
)

type brokenStore struct{}

func (brokenStore) CountPolls(context.Context) (store.Counts, error) {
	return store.Counts{}, errors.New("disk on fire")
}

type clients int

func (c clients) Clients() int { return int(c) }

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.CreatePoll(ctx, &store.PollRecord{ChatID: 1, ContractAddress: "A", CreatedAt: time.Now()}))
	require.NoError(t, st.CreatePoll(ctx, &store.PollRecord{ChatID: 1, ContractAddress: "B", CreatedAt: time.Now()}))
	require.NoError(t, st.ResolveVote(ctx, 1, "B", "cto", time.Now()))

	rep := New(st, "memory", "redis", clients(3)).Snapshot(ctx)
	assert.True(t, rep.OK())
	assert.Equal(t, store.Counts{Total: 2, Open: 1, Resolved: 1}, rep.Polls)
	assert.Equal(t, "memory", rep.StoreDriver)
	assert.Equal(t, "redis", rep.DedupeBackend)
	assert.Equal(t, 3, rep.FeedClients)
	assert.False(t, rep.GeneratedAt.IsZero())
}

func TestSnapshotStoreError(t *testing.T) {
	rep := New(brokenStore{}, "bolt", "memory", nil).Snapshot(context.Background())
	assert.False(t, rep.OK())
	assert.Equal(t, "disk on fire", rep.StoreError)
	assert.Zero(t, rep.FeedClients)
}
