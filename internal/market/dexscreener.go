package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/shopspring/decimal"

	"github.com/0xsamyy/callpoll/internal/ca"
)

const imageCDN = "https://dd.dexscreener.com/ds-data/tokens/solana/%s.png"

// DexScreener is an Oracle backed by the public DexScreener API with a
// short per-address cache.
type DexScreener struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration
	cache      *xsync.Map[string, cachedQuote]
	now        func() time.Time
}

type cachedQuote struct {
	Quote       Quote
	LastFetched time.Time
}

// NewDexScreener returns a client for baseURL (e.g. https://api.dexscreener.com).
// Quotes are reused for ttl; a ttl of 0 disables caching.
func NewDexScreener(baseURL string, ttl time.Duration) *DexScreener {
	return &DexScreener{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		ttl:        ttl,
		cache:      xsync.NewMap[string, cachedQuote](),
		now:        time.Now,
	}
}

// Price returns the current USD price, 0 when the pair reports none.
func (d *DexScreener) Price(ctx context.Context, addr string) (float64, error) {
	q, err := d.Quote(ctx, addr)
	if err != nil {
		return 0, err
	}
	return q.PriceUSD, nil
}

// Quote returns market data for addr using the first reported pair.
func (d *DexScreener) Quote(ctx context.Context, addr string) (*Quote, error) {
	if !ca.IsPublicKey(addr) {
		return nil, ErrInvalidMint
	}
	if d.ttl > 0 {
		if c, ok := d.cache.Load(addr); ok && d.now().Sub(c.LastFetched) < d.ttl {
			q := c.Quote
			return &q, nil
		}
	}

	var body tokensResponse
	if err := d.get(ctx, "/latest/dex/tokens/"+addr, &body); err != nil {
		return nil, fmt.Errorf("dexscreener %s: %w", addr, err)
	}
	if len(body.Pairs) == 0 {
		return nil, ErrNoPairs
	}
	q, err := quoteFromPair(&body.Pairs[0])
	if err != nil {
		return nil, fmt.Errorf("dexscreener %s: %w", addr, err)
	}
	if d.ttl > 0 {
		d.cache.Store(addr, cachedQuote{Quote: *q, LastFetched: d.now()})
	}
	return q, nil
}

func (d *DexScreener) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func quoteFromPair(p *pair) (*Quote, error) {
	q := &Quote{
		Name:         p.BaseToken.Name,
		MarketCapUSD: p.MarketCap,
		FDVUSD:       p.FDV,
		Volume24hUSD: p.Volume.H24,
		LiquidityUSD: p.Liquidity.USD,
		Change1h:     p.PriceChange.H1,
		Change24h:    p.PriceChange.H24,
	}
	if q.Name == "" {
		q.Name = "Unknown"
	}
	if p.PriceUSD != "" {
		price, err := decimal.NewFromString(p.PriceUSD)
		if err != nil {
			return nil, fmt.Errorf("parse priceUsd %q: %w", p.PriceUSD, err)
		}
		q.PriceUSD = price.InexactFloat64()
	}
	if h1 := p.Txns.H1; h1 != nil {
		q.Buys1h, q.Sells1h = h1.Buys, h1.Sells
	}
	if p.Info != nil {
		q.ImageURL = p.Info.ImageURL
		for _, s := range p.Info.Socials {
			switch {
			case s.Type == "twitter" || s.Platform == "twitter":
				q.TwitterURL = s.URL
			case s.Type == "telegram" || s.Platform == "telegram":
				q.TelegramURL = s.URL
			}
		}
		if len(p.Info.Websites) > 0 {
			q.WebsiteURL = p.Info.Websites[0].URL
		}
	}
	if q.ImageURL == "" && p.BaseToken.Address != "" {
		q.ImageURL = fmt.Sprintf(imageCDN, p.BaseToken.Address)
	}
	q.DexPaid = (p.Boosts != nil && p.Boosts.Active > 0) || slices.Contains(p.Labels, "boost")
	return q, nil
}
