// Package fetch retrieves articles from the configured source layers.
//
// The fetcher runs two passes: a holdings-first search pass across every
// layer that supports keyword search, then a top-stories pass over the
// L1/L2 feeds with L3 APIs as a fallback floor. Each source is fetched in
// its own goroutine with an independent timeout; a failing source
// contributes zero articles but never aborts the batch.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/marketbrief/internal/feeds"
	"github.com/abelbrown/marketbrief/internal/logging"
)

const (
	rssTimeout = 20 * time.Second
	apiTimeout = 30 * time.Second

	// defaultFloor is the minimum number of top-stories items L1+L2 must
	// produce before L3 APIs are skipped.
	defaultFloor = 25

	// perSourceCap bounds how many items a single feed may contribute
	perSourceCap = 40
)

// SourceState tracks fetch health for one source across runs.
type SourceState struct {
	LastFetched  time.Time
	ItemCount    int
	ConsecErrors int
	LastError    error
}

// shouldSkip applies quadratic backoff after consecutive failures.
func (s *SourceState) shouldSkip(now time.Time) bool {
	if s.ConsecErrors == 0 {
		return false
	}
	backoff := time.Duration(s.ConsecErrors*s.ConsecErrors) * time.Minute
	if backoff > 30*time.Minute {
		backoff = 30 * time.Minute
	}
	return now.Sub(s.LastFetched) < backoff
}

// Fetcher runs the multi-layer acquisition passes.
type Fetcher struct {
	registry  *feeds.Registry
	rssClient *http.Client
	apiClient *http.Client
	apiKey    string // optional key for L3 APIs

	mu     sync.Mutex
	states map[string]*SourceState

	// Floor below which L3 supplements top stories
	Floor int
}

// NewFetcher creates a fetcher over the given registry.
func NewFetcher(registry *feeds.Registry, apiKey string) *Fetcher {
	return &Fetcher{
		registry:  registry,
		rssClient: &http.Client{Timeout: rssTimeout},
		apiClient: &http.Client{Timeout: apiTimeout},
		apiKey:    apiKey,
		states:    make(map[string]*SourceState),
		Floor:     defaultFloor,
	}
}

// FetchAll produces a url-deduplicated list of raw articles with holdings
// news first. A cancelled context stops outstanding fetches and returns
// whatever has not yet been assembled as an error.
func (f *Fetcher) FetchAll(ctx context.Context, holdings []string, limit int) ([]feeds.RawArticle, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	holdingsArticles := f.holdingsPass(ctx, holdings)
	topArticles := f.topStoriesPass(ctx)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	merged := mergeArticles(holdingsArticles, topArticles, limit)
	logging.Info("fetch complete",
		"holdings_items", len(holdingsArticles),
		"top_items", len(topArticles),
		"merged", len(merged))
	return merged, nil
}

// holdingsPass issues one keyword search per symbol against every source
// that exposes a search endpoint.
func (f *Fetcher) holdingsPass(ctx context.Context, holdings []string) []feeds.RawArticle {
	type task struct {
		src    feeds.Source
		symbol string
	}
	var tasks []task
	for _, src := range f.registry.All() {
		if src.SearchURL == "" {
			continue
		}
		for _, sym := range holdings {
			tasks = append(tasks, task{src: src, symbol: sym})
		}
	}

	results := make([][]feeds.RawArticle, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			arts, err := f.fetchSource(ctx, t.src, fmt.Sprintf(t.src.SearchURL, url.QueryEscape(t.symbol)))
			if err != nil {
				logging.Warn("holdings search failed", "source", t.src.Name, "symbol", t.symbol, "error", err)
				return
			}
			for j := range arts {
				arts[j].IsHoldingsNews = true
				arts[j].SourceTag = t.symbol
			}
			results[i] = arts
		}(i, t)
	}
	wg.Wait()

	var out []feeds.RawArticle
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// SearchSymbol runs the keyword search for one symbol across every
// source with a search endpoint. Used by the news monitor.
func (f *Fetcher) SearchSymbol(ctx context.Context, symbol string) []feeds.RawArticle {
	var out []feeds.RawArticle
	for _, src := range f.registry.All() {
		if src.SearchURL == "" {
			continue
		}
		arts, err := f.fetchSource(ctx, src, fmt.Sprintf(src.SearchURL, url.QueryEscape(symbol)))
		if err != nil {
			logging.Warn("symbol search failed", "source", src.Name, "symbol", symbol, "error", err)
			continue
		}
		for i := range arts {
			arts[i].SourceTag = symbol
		}
		out = append(out, arts...)
	}
	return out
}

// topStoriesPass fetches each L1/L2 feed's latest items, adding L3 only
// when the first two layers come up short.
func (f *Fetcher) topStoriesPass(ctx context.Context) []feeds.RawArticle {
	primary := append(f.registry.Layer(1), f.registry.Layer(2)...)
	out := f.fetchSources(ctx, primary)

	if len(out) < f.Floor {
		logging.Debug("top stories below floor, trying layer 3", "count", len(out), "floor", f.Floor)
		out = append(out, f.fetchSources(ctx, f.registry.Layer(3))...)
	}
	return out
}

func (f *Fetcher) fetchSources(ctx context.Context, sources []feeds.Source) []feeds.RawArticle {
	results := make([][]feeds.RawArticle, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		if f.state(src.Name).shouldSkip(time.Now()) {
			logging.Debug("source in backoff, skipping", "source", src.Name)
			continue
		}
		wg.Add(1)
		go func(i int, src feeds.Source) {
			defer wg.Done()
			arts, err := f.fetchSource(ctx, src, src.URL)
			f.recordResult(src.Name, len(arts), err)
			if err != nil {
				logging.Warn("source fetch failed", "source", src.Name, "error", err)
				return
			}
			results[i] = arts
		}(i, src)
	}
	wg.Wait()

	var out []feeds.RawArticle
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (f *Fetcher) fetchSource(ctx context.Context, src feeds.Source, endpoint string) ([]feeds.RawArticle, error) {
	switch src.Transport {
	case feeds.TransportRSS:
		return f.fetchRSS(ctx, src, endpoint)
	case feeds.TransportAPI:
		return f.fetchAPI(ctx, src, endpoint)
	default:
		return nil, fmt.Errorf("unknown transport %q", src.Transport)
	}
}

func (f *Fetcher) fetchRSS(ctx context.Context, src feeds.Source, endpoint string) ([]feeds.RawArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "marketbrief/1.0 (+https://github.com/abelbrown/marketbrief)")

	resp, err := f.rssClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	parser := gofeed.NewParser()
	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := time.Now()
	items := feed.Items
	if len(items) > perSourceCap {
		items = items[:perSourceCap]
	}
	out := make([]feeds.RawArticle, 0, len(items))
	for _, it := range items {
		out = append(out, convertFeedItem(it, src, now))
	}
	return out, nil
}

// finnhubItem is the JSON shape the L3 news APIs return.
type finnhubItem struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Datetime int64  `json:"datetime"` // unix seconds
	Related  string `json:"related"`  // comma-separated symbols
}

func (f *Fetcher) fetchAPI(ctx context.Context, src feeds.Source, endpoint string) ([]feeds.RawArticle, error) {
	if f.apiKey != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = endpoint + sep + "token=" + url.QueryEscape(f.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("api access denied (status %d), check provider key", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var items []finnhubItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("failed to decode api response: %w", err)
	}

	now := time.Now()
	if len(items) > perSourceCap {
		items = items[:perSourceCap]
	}
	out := make([]feeds.RawArticle, 0, len(items))
	for _, it := range items {
		if it.Headline == "" || it.URL == "" {
			continue
		}
		var tickers []string
		for _, sym := range strings.Split(it.Related, ",") {
			if sym = strings.TrimSpace(sym); sym != "" {
				tickers = append(tickers, strings.ToUpper(sym))
			}
		}
		out = append(out, feeds.RawArticle{
			ID:             hashString(it.URL),
			Source:         src.Name,
			SourceLayer:    src.Layer,
			Title:          it.Headline,
			Description:    it.Summary,
			PublishedAt:    time.Unix(it.Datetime, 0).UTC().Format(time.RFC3339),
			URL:            it.URL,
			InitialTickers: tickers,
			FetchTime:      now,
		})
	}
	return out, nil
}

func convertFeedItem(item *gofeed.Item, src feeds.Source, fetchTime time.Time) feeds.RawArticle {
	published := item.Published
	if published == "" {
		published = item.Updated
	}

	body := item.Content
	if body == "" && len(item.Description) > 500 {
		body = item.Description
	}

	return feeds.RawArticle{
		ID:          generateID(item),
		Source:      src.Name,
		SourceLayer: src.Layer,
		Title:       item.Title,
		RawBody:     body,
		Description: item.Description,
		PublishedAt: published,
		URL:         item.Link,
		FetchTime:   fetchTime,
	}
}

// mergeArticles concatenates the holdings pass before the top-stories pass,
// drops normalized-url duplicates, and caps to limit preserving order.
func mergeArticles(holdings, top []feeds.RawArticle, limit int) []feeds.RawArticle {
	seen := make(map[string]bool)
	var out []feeds.RawArticle
	for _, a := range append(holdings, top...) {
		key := NormalizeURL(a.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// NormalizeURL lowercases a url and strips its query, fragment, and
// trailing slash. Used as the dedup key everywhere urls are compared.
func NormalizeURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, "/")
}

func (f *Fetcher) state(name string) *SourceState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[name]
	if !ok {
		st = &SourceState{}
		f.states[name] = st
	}
	return st
}

func (f *Fetcher) recordResult(name string, count int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[name]
	if !ok {
		st = &SourceState{}
		f.states[name] = st
	}
	st.LastFetched = time.Now()
	st.ItemCount = count
	st.LastError = err
	if err != nil {
		st.ConsecErrors++
	} else {
		st.ConsecErrors = 0
	}
}

// States returns a snapshot of per-source fetch health.
func (f *Fetcher) States() map[string]SourceState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]SourceState, len(f.states))
	for k, v := range f.states {
		out[k] = *v
	}
	return out
}

// generateID creates a deterministic ID for a feed item.
// Uses the GUID if available, otherwise hashes the URL.
func generateID(item *gofeed.Item) string {
	if item.GUID != "" {
		return hashString(item.GUID)
	}
	if item.Link != "" {
		return hashString(item.Link)
	}
	key := item.Title + item.Published
	return hashString(key)
}

// hashString creates a short hash of a string for use as an ID.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}
