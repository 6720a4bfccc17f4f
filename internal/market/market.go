// Package market fetches token quotes for contract addresses.
package market

import (
	"context"
	"errors"
)

var (
	// ErrInvalidMint is returned for addresses that are not 32-byte base58 keys.
	ErrInvalidMint = errors.New("market: not a valid mint address")
	// ErrNoPairs is returned when the provider knows no trading pair for the mint.
	ErrNoPairs = errors.New("market: no trading pairs")
)

// Quote is a snapshot of market data for one token. Pointer fields are nil
// when the provider did not report them; PriceUSD is 0 when unknown.
type Quote struct {
	Name         string
	PriceUSD     float64
	MarketCapUSD *float64
	FDVUSD       *float64
	Volume24hUSD *float64
	LiquidityUSD *float64
	Change1h     *float64
	Change24h    *float64
	Buys1h       *int
	Sells1h      *int
	ImageURL     string
	TwitterURL   string
	WebsiteURL   string
	TelegramURL  string
	DexPaid      bool
}

// MarketCap returns the market cap, or 0 when unknown.
func (q *Quote) MarketCap() float64 {
	if q == nil || q.MarketCapUSD == nil {
		return 0
	}
	return *q.MarketCapUSD
}

// Supply returns market cap divided by price, the factor that converts a
// historical price into a historical market cap. It is 0 when either is unknown.
func (q *Quote) Supply() float64 {
	if q == nil || q.PriceUSD <= 0 || q.MarketCap() <= 0 {
		return 0
	}
	return q.MarketCap() / q.PriceUSD
}

// Oracle is the read-only market data source.
type Oracle interface {
	Quote(ctx context.Context, ca string) (*Quote, error)
	Price(ctx context.Context, ca string) (float64, error)
}
