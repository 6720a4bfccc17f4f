package market

// tokensResponse is the body of GET /latest/dex/tokens/{address}.
type tokensResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD    string   `json:"priceUsd"`
	MarketCap   *float64 `json:"marketCap"`
	FDV         *float64 `json:"fdv"`
	Volume      window   `json:"volume"`
	PriceChange window   `json:"priceChange"`
	Liquidity   struct {
		USD *float64 `json:"usd"`
	} `json:"liquidity"`
	Txns struct {
		H1 *struct {
			Buys  *int `json:"buys"`
			Sells *int `json:"sells"`
		} `json:"h1"`
	} `json:"txns"`
	Info *struct {
		ImageURL string `json:"imageUrl"`
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
		Socials []struct {
			Type     string `json:"type"`
			Platform string `json:"platform"`
			URL      string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
	Boosts *struct {
		Active int `json:"active"`
	} `json:"boosts"`
	Labels []string `json:"labels"`
}

type window struct {
	H1  *float64 `json:"h1"`
	H24 *float64 `json:"h24"`
}
