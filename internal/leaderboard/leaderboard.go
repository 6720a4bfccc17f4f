// Package leaderboard ranks resolved calls by peak return.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/0xsamyy/callpoll/internal/store"
)

// PriceSource returns the current USD price of a token.
type PriceSource interface {
	Price(ctx context.Context, ca string) (float64, error)
}

// Config tunes ranking and fan-out.
type Config struct {
	TopN        int     // ranked rows returned
	HitMultiple float64 // return counted as a hit
	Batch       int     // concurrent price lookups
}

// DefaultConfig matches the bot's historical constants.
var DefaultConfig = Config{TopN: 10, HitMultiple: 2.0, Batch: 10}

// Entry is one ranked call.
type Entry struct {
	CoinName string
	Username string
	CA       string
	Return   float64
}

// Board is a computed leaderboard.
type Board struct {
	Period  Period
	Filter  string
	Calls   int
	Hits    int
	HitRate int // percent, rounded
	Median  float64
	Average float64
	Best    float64
	Top     []Entry
}

// Aggregator builds boards from the poll store.
type Aggregator struct {
	store  store.Store
	prices PriceSource
	pool   pond.Pool
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
}

// New returns an Aggregator. Zero fields in cfg take DefaultConfig values.
func New(st store.Store, prices PriceSource, cfg Config, log *zap.Logger) *Aggregator {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultConfig.TopN
	}
	if cfg.HitMultiple <= 0 {
		cfg.HitMultiple = DefaultConfig.HitMultiple
	}
	if cfg.Batch <= 0 {
		cfg.Batch = DefaultConfig.Batch
	}
	return &Aggregator{
		store:  st,
		prices: prices,
		pool:   pond.NewPool(cfg.Batch),
		cfg:    cfg,
		log:    log.Named("leaderboard"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Close stops the price worker pool.
func (a *Aggregator) Close() { a.pool.StopAndWait() }

// Build computes the board for chatID over period, optionally restricted to
// calls whose vote contains filter.
func (a *Aggregator) Build(ctx context.Context, chatID int64, period Period, filter string) (*Board, error) {
	recs, err := a.store.ListResolved(ctx, store.ResolvedQuery{
		ChatID:   chatID,
		Since:    a.now().Add(-period.Duration()),
		Category: filter,
	})
	if err != nil {
		return nil, fmt.Errorf("list resolved polls: %w", err)
	}
	prices := a.RefreshPeaks(ctx, recs)

	names := make(map[string]string)
	var entries []Entry
	for i := range recs {
		r := &recs[i]
		entry := r.Entry()
		if entry <= 0 {
			continue
		}
		peak := r.Peak()
		if r.PeakPriceUSD == nil {
			peak = prices[r.ContractAddress]
		}
		name, ok := names[r.ContractAddress]
		if !ok {
			name = a.coinName(ctx, r.ContractAddress)
			names[r.ContractAddress] = name
		}
		username := r.SenderUsername
		if username == "" {
			username = "Unknown"
		}
		entries = append(entries, Entry{
			CoinName: name,
			Username: username,
			CA:       r.ContractAddress,
			Return:   peak / entry,
		})
	}
	return a.rank(period, filter, entries), nil
}

func (a *Aggregator) rank(period Period, filter string, entries []Entry) *Board {
	b := &Board{Period: period, Filter: filter, Calls: len(entries)}
	if len(entries) == 0 {
		return b
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Return > entries[j].Return })

	returns := make([]float64, len(entries))
	var sum float64
	for i, e := range entries {
		returns[i] = e.Return
		sum += e.Return
		if e.Return >= a.cfg.HitMultiple {
			b.Hits++
		}
	}
	sort.Float64s(returns)
	b.HitRate = int(math.Round(float64(b.Hits) / float64(b.Calls) * 100))
	b.Median = returns[len(returns)/2]
	b.Best = returns[len(returns)-1]
	b.Average = sum / float64(len(returns))

	top := entries
	if len(top) > a.cfg.TopN {
		top = top[:a.cfg.TopN]
	}
	b.Top = top
	return b
}

func (a *Aggregator) coinName(ctx context.Context, ca string) string {
	if ath, err := a.store.GetATH(ctx, ca); err == nil && ath.CoinName != "" {
		return ath.CoinName
	}
	if len(ca) > 6 {
		return ca[:6]
	}
	return ca
}

// RefreshPeaks fetches the current price of every distinct address in recs,
// at most Batch at a time, and raises stored peaks that the price exceeds.
// recs are updated in place. The returned map holds the fetched prices;
// failed lookups are absent.
func (a *Aggregator) RefreshPeaks(ctx context.Context, recs []store.PollRecord) map[string]float64 {
	seen := make(map[string]bool)
	var addrs []string
	for i := range recs {
		if ca := recs[i].ContractAddress; !seen[ca] {
			seen[ca] = true
			addrs = append(addrs, ca)
		}
	}

	var mu sync.Mutex
	prices := make(map[string]float64, len(addrs))
	group := a.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, ca := range addrs {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			p, err := a.prices.Price(groupCtx, ca)
			if err != nil {
				a.log.Debug("price lookup failed", zap.String("ca", ca), zap.Error(err))
				return
			}
			mu.Lock()
			prices[ca] = p
			mu.Unlock()
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		a.log.Warn("price batch encountered error", zap.Error(err))
	}

	for i := range recs {
		r := &recs[i]
		price := prices[r.ContractAddress]
		if price <= 0 || price <= r.Peak() {
			continue
		}
		raised, err := a.store.RaisePeak(ctx, r.ChatID, r.ContractAddress, price)
		if err != nil {
			a.log.Warn("raise peak failed", zap.Int64("chat_id", r.ChatID), zap.String("ca", r.ContractAddress), zap.Error(err))
			continue
		}
		if raised {
			r.PeakPriceUSD = &price
		}
	}
	return prices
}

// Sweep refreshes peaks for every resolved call of the longest window,
// across all chats. It returns the number of records examined.
func (a *Aggregator) Sweep(ctx context.Context) (int, error) {
	recs, err := a.store.ListResolved(ctx, store.ResolvedQuery{Since: a.now().Add(-Period2w.Duration())})
	if err != nil {
		return 0, fmt.Errorf("list resolved polls: %w", err)
	}
	a.RefreshPeaks(ctx, recs)
	return len(recs), nil
}
