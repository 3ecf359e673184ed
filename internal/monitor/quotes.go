// Package monitor is the always-on companion service: periodic price,
// news, and social checks that feed the alert pipeline, plus retention
// cleanup. Tasks are scheduled on a cron and never overlap themselves.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/marketbrief/internal/logging"
)

// Quote is one current-price observation.
type Quote struct {
	Symbol        string
	Price         float64
	ChangePercent float64 // change since previous close, informational
	Volume        int64
	Timestamp     time.Time
}

// QuoteClient fetches current quotes with a provider rate limit of one
// request per 12 seconds, shared across all symbols.
type QuoteClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewQuoteClient(apiKey string) *QuoteClient {
	return &QuoteClient{
		endpoint: "https://finnhub.io/api/v1/quote",
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(12*time.Second), 1),
	}
}

// Fetch returns the current quote for one symbol. Blocks on the provider
// rate limit; honor the context to bound the wait.
func (q *QuoteClient) Fetch(ctx context.Context, symbol string) (*Quote, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?symbol=%s&token=%s", q.endpoint, url.QueryEscape(symbol), url.QueryEscape(q.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("quote provider rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote provider error (status %d)", resp.StatusCode)
	}

	var body struct {
		Current   float64 `json:"c"`
		PrevClose float64 `json:"pc"`
		ChangePct float64 `json:"dp"`
		HighOfDay float64 `json:"h"`
		Timestamp int64   `json:"t"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	if body.Current == 0 {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}

	ts := time.Now()
	if body.Timestamp > 0 {
		ts = time.Unix(body.Timestamp, 0)
	}
	logging.Debug("quote fetched", "symbol", symbol, "price", body.Current)
	return &Quote{
		Symbol:        symbol,
		Price:         body.Current,
		ChangePercent: body.ChangePct,
		Timestamp:     ts,
	}, nil
}
