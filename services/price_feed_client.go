// services/price_feed_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// RoundData is one observation of the external price feed. Price carries
// the feed's 8 implied decimals already applied.
type RoundData struct {
	RoundID         uint64          `json:"round_id"`
	Price           decimal.Decimal `json:"price"`
	StartedAt       time.Time       `json:"started_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	AnsweredInRound uint64          `json:"answered_in_round"`
}

// PriceFeed is the read contract of the oracle. Settlement re-reads it on
// every evaluation; there is no caching, so outcomes depend on the price at
// the moment each individual call executes.
type PriceFeed interface {
	LatestRoundData(ctx context.Context) (*RoundData, error)
	RoundData(ctx context.Context, roundID uint64) (*RoundData, error)
}

type PriceFeedClient struct {
	BaseURL string
	Client  *http.Client
}

func NewPriceFeedClient(baseURL string) *PriceFeedClient {
	return &PriceFeedClient{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// LatestRoundData fetches the most recent round from the feed.
func (c *PriceFeedClient) LatestRoundData(ctx context.Context) (*RoundData, error) {
	return c.fetch(ctx, fmt.Sprintf("%s/rounds/latest", c.BaseURL))
}

// RoundData fetches one historical round by id.
func (c *PriceFeedClient) RoundData(ctx context.Context, roundID uint64) (*RoundData, error) {
	return c.fetch(ctx, fmt.Sprintf("%s/rounds/%d", c.BaseURL, roundID))
}

func (c *PriceFeedClient) fetch(ctx context.Context, url string) (*RoundData, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceFeedUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		log.Printf("PriceFeed %s returned %d: %s", url, resp.StatusCode, string(body))
		return nil, fmt.Errorf("%w: status %d", ErrPriceFeedUnavailable, resp.StatusCode)
	}

	var out RoundData
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrPriceFeedUnavailable, err)
	}

	return &out, nil
}
