package leaderboard

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xsamyy/callpoll/internal/store"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  map[string]int
}

func (f *fakePrices) Price(_ context.Context, ca string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[ca]++
	p, ok := f.prices[ca]
	if !ok {
		return 0, errors.New("no pairs")
	}
	return p, nil
}

func ptr[T any](v T) *T { return &v }

type call struct {
	chat        int64
	ca, user    string
	age         time.Duration
	vote        string
	entry, peak *float64
}

func seed(t *testing.T, st store.Store, calls ...call) {
	t.Helper()
	ctx := context.Background()
	for _, c := range calls {
		rec := &store.PollRecord{
			ChatID:          c.chat,
			ContractAddress: c.ca,
			SenderUserID:    1,
			SenderUsername:  c.user,
			CreatedAt:       now.Add(-c.age),
			EntryPriceUSD:   c.entry,
			PeakPriceUSD:    c.peak,
		}
		require.NoError(t, st.CreatePoll(ctx, rec))
		if c.vote != "" {
			require.NoError(t, st.ResolveVote(ctx, c.chat, c.ca, c.vote, rec.CreatedAt))
		}
	}
}

func newAggregator(st store.Store, prices PriceSource, cfg Config) *Aggregator {
	a := New(st, prices, cfg, zap.NewNop())
	a.now = func() time.Time { return now }
	return a
}

func TestBuildRanksByPeakOverEntry(t *testing.T) {
	st := store.NewMemory()
	seed(t, st,
		call{chat: 100, ca: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", user: "alice", age: time.Hour, vote: "cto", entry: ptr(1.0), peak: ptr(1.0)},
		call{chat: 100, ca: "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", user: "bob", age: 2 * time.Hour, vote: "gamble,alpha", entry: ptr(2.0), peak: ptr(9.0)},
		call{chat: 100, ca: "CCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC", user: "", age: 3 * time.Hour, vote: "alpha", entry: ptr(4.0), peak: ptr(4.0)},
		// excluded: zero entry, open, unknown entry, outside window, other chat
		call{chat: 100, ca: "DDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD", user: "carol", age: time.Hour, vote: "cto", entry: ptr(0.0), peak: ptr(0.0)},
		call{chat: 100, ca: "EEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEE", user: "dave", age: time.Hour, entry: ptr(1.0), peak: ptr(1.0)},
		call{chat: 100, ca: "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF", user: "erin", age: time.Hour, vote: "cto"},
		call{chat: 100, ca: "GGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGG", user: "frank", age: 30 * time.Hour, vote: "cto", entry: ptr(1.0), peak: ptr(50.0)},
		call{chat: 200, ca: "HHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHHH", user: "gina", age: time.Hour, vote: "cto", entry: ptr(1.0), peak: ptr(70.0)},
	)
	_, err := st.RaiseATH(context.Background(), store.AthRecord{ContractAddress: "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", MaxPriceUSD: 9, CoinName: "Bravo"})
	require.NoError(t, err)

	prices := &fakePrices{prices: map[string]float64{
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA": 3.5, // raises peak
		"BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB": 5.0, // below stored peak
	}}
	a := newAggregator(st, prices, Config{})
	defer a.Close()

	b, err := a.Build(context.Background(), 100, Period1d, "")
	require.NoError(t, err)

	assert.Equal(t, 3, b.Calls)
	assert.Equal(t, 2, b.Hits)
	assert.Equal(t, 67, b.HitRate)
	require.Len(t, b.Top, 3)
	assert.Equal(t, Entry{CoinName: "Bravo", Username: "bob", CA: "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", Return: 4.5}, b.Top[0])
	assert.Equal(t, "AAAAAA", b.Top[1].CoinName)
	assert.InDelta(t, 3.5, b.Top[1].Return, 1e-9)
	assert.Equal(t, "Unknown", b.Top[2].Username)
	assert.InDelta(t, 1.0, b.Top[2].Return, 1e-9)
	assert.InDelta(t, 3.5, b.Median, 1e-9)
	assert.InDelta(t, 4.5, b.Best, 1e-9)
	assert.InDelta(t, 3.0, b.Average, 1e-9)

	rec, err := st.GetPoll(context.Background(), 100, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, 3.5, rec.Peak(), "peak raised lazily")
	rec, err = st.GetPoll(context.Background(), 100, "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	require.NoError(t, err)
	assert.Equal(t, 9.0, rec.Peak(), "peak never lowered")
}

func TestBuildCategoryFilterAndEmpty(t *testing.T) {
	st := store.NewMemory()
	seed(t, st,
		call{chat: 100, ca: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", user: "alice", age: time.Hour, vote: "good_dev", entry: ptr(1.0), peak: ptr(2.0)},
		call{chat: 100, ca: "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", user: "bob", age: time.Hour, vote: "gamble", entry: ptr(1.0), peak: ptr(3.0)},
	)
	a := newAggregator(st, &fakePrices{}, Config{})
	defer a.Close()

	b, err := a.Build(context.Background(), 100, Period12h, "good_dev")
	require.NoError(t, err)
	require.Len(t, b.Top, 1)
	assert.Equal(t, "alice", b.Top[0].Username)
	assert.Equal(t, "good_dev", b.Filter)

	b, err = a.Build(context.Background(), 100, Period12h, "volume")
	require.NoError(t, err)
	assert.Zero(t, b.Calls)
	assert.Empty(t, b.Top)
	assert.Equal(t, Period12h, b.Period)
}

func TestBuildTopNAndHitThreshold(t *testing.T) {
	st := store.NewMemory()
	var calls []call
	for i, ca := range []string{
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
		"CCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC", "DDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD",
	} {
		calls = append(calls, call{chat: 1, ca: ca, user: "u", age: time.Hour, vote: "cto", entry: ptr(1.0), peak: ptr(float64(i + 1))})
	}
	seed(t, st, calls...)
	a := newAggregator(st, &fakePrices{}, Config{TopN: 2, HitMultiple: 3})
	defer a.Close()

	b, err := a.Build(context.Background(), 1, Period1w, "")
	require.NoError(t, err)
	assert.Equal(t, 4, b.Calls)
	assert.Equal(t, 2, b.Hits)
	assert.Equal(t, 50, b.HitRate)
	assert.InDelta(t, 3.0, b.Median, 1e-9, "median is the upper middle for even counts")
	require.Len(t, b.Top, 2)
	assert.InDelta(t, 4.0, b.Top[0].Return, 1e-9)
}

func TestRefreshPeaksFetchesEachAddressOnce(t *testing.T) {
	st := store.NewMemory()
	seed(t, st,
		call{chat: 1, ca: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", user: "a", age: time.Hour, vote: "cto", entry: ptr(1.0), peak: ptr(1.0)},
		call{chat: 2, ca: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", user: "b", age: time.Hour, vote: "cto", entry: ptr(1.0), peak: ptr(4.0)},
	)
	prices := &fakePrices{prices: map[string]float64{"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA": 2}}
	a := newAggregator(st, prices, Config{Batch: 3})
	defer a.Close()

	n, err := a.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, prices.calls["AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"])

	r1, _ := st.GetPoll(context.Background(), 1, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	r2, _ := st.GetPoll(context.Background(), 2, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	assert.Equal(t, 2.0, r1.Peak())
	assert.Equal(t, 4.0, r2.Peak())
}

func TestParsePeriod(t *testing.T) {
	p, ok := ParsePeriod("2W")
	assert.True(t, ok)
	assert.Equal(t, Period2w, p)
	assert.Equal(t, 336*time.Hour, p.Duration())
	assert.Equal(t, "12H", Period12h.Button())
	_, ok = ParsePeriod("3d")
	assert.False(t, ok)
}

func TestSweeperSchedule(t *testing.T) {
	a := newAggregator(store.NewMemory(), &fakePrices{}, Config{})
	defer a.Close()
	_, err := NewSweeper(context.Background(), a, "not a schedule", zap.NewNop())
	assert.Error(t, err)
	s, err := NewSweeper(context.Background(), a, "@every 15m", zap.NewNop())
	require.NoError(t, err)
	s.Start()
	s.Stop()
}

// The sqlite store compares created_at as text, so the window bound must
// be UTC whatever the process zone is.
func TestBuildWindowIgnoresLocalZone(t *testing.T) {
	saved := time.Local
	t.Cleanup(func() { time.Local = saved })

	for _, zone := range []*time.Location{
		time.FixedZone("KST", 9*3600),
		time.FixedZone("PDT", -7*3600),
	} {
		t.Run(zone.String(), func(t *testing.T) {
			time.Local = zone
			ctx := context.Background()
			st, err := store.OpenGorm("sqlite", filepath.Join(t.TempDir(), "polls.db"))
			require.NoError(t, err)
			defer st.Close()

			created := time.Now().UTC()
			for _, c := range []struct {
				ca  string
				age time.Duration
			}{
				{"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 20 * time.Hour},
				{"BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", 30 * time.Hour},
			} {
				rec := &store.PollRecord{
					ChatID:          100,
					ContractAddress: c.ca,
					SenderUserID:    1,
					SenderUsername:  "alice",
					CreatedAt:       created.Add(-c.age),
					EntryPriceUSD:   ptr(1.0),
					PeakPriceUSD:    ptr(2.0),
				}
				require.NoError(t, st.CreatePoll(ctx, rec))
				require.NoError(t, st.ResolveVote(ctx, 100, c.ca, "cto", rec.CreatedAt))
			}

			a := New(st, &fakePrices{}, Config{}, zap.NewNop())
			defer a.Close()
			b, err := a.Build(ctx, 100, Period1d, "")
			require.NoError(t, err)
			assert.Equal(t, 1, b.Calls)
			require.Len(t, b.Top, 1)
			assert.Equal(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", b.Top[0].CA)
		})
	}
}
