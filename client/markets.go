package client

import (
	"context"
	"net/url"

	"predictterm/logger"
)

// MarketsClient is the read-only market data surface: the workflow consumes
// it as an opaque quote source, everything here is plain decoding.
type MarketsClient struct {
	*Client
}

func NewMarketsClient(baseURL string, log *logger.Logger) *MarketsClient {
	return &MarketsClient{Client: New(baseURL, log)}
}

func (c *MarketsClient) Markets(ctx context.Context) ([]Market, error) {
	var resp struct {
		Markets []Market `json:"markets"`
	}
	if err := c.get(ctx, "/markets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Markets, nil
}

func (c *MarketsClient) Market(ctx context.Context, conditionID string) (*Market, error) {
	market := &Market{}
	if err := c.get(ctx, "/markets/"+conditionID, nil, market); err != nil {
		return nil, err
	}
	return market, nil
}

func (c *MarketsClient) Orderbook(ctx context.Context, conditionID string) (*Orderbook, error) {
	book := &Orderbook{}
	if err := c.get(ctx, "/markets/"+conditionID+"/orderbook", nil, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (c *MarketsClient) Trades(ctx context.Context, conditionID string) ([]Trade, error) {
	var trades []Trade
	if err := c.get(ctx, "/markets/"+conditionID+"/trades", nil, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// PriceHistory fetches candles at one of the backend's intervals
// ("1h", "1d", "1w"); anything else falls back to "1d".
func (c *MarketsClient) PriceHistory(ctx context.Context, conditionID, interval string) (*PriceHistory, error) {
	switch interval {
	case "1h", "1d", "1w":
	default:
		interval = "1d"
	}

	params := url.Values{}
	params.Set("interval", interval)

	history := &PriceHistory{}
	if err := c.get(ctx, "/markets/"+conditionID+"/prices/history", params, history); err != nil {
		return nil, err
	}
	return history, nil
}

func (c *MarketsClient) Search(ctx context.Context, query string) ([]Market, error) {
	params := url.Values{}
	params.Set("q", query)

	var markets []Market
	if err := c.get(ctx, "/markets/search", params, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

func (c *MarketsClient) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.get(ctx, "/markets/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}
