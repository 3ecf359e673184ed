package feeds

import "strings"

// DefaultSources is the curated source catalog, split into three layers.
// Layer 1 are wire feeds (full trust), layer 2 aggregators and financial
// press, layer 3 supplemental APIs used only as fallback.
// Quality scores feed directly into cleaning and canonical-article selection.
var DefaultSources = []Source{
	// ============================================
	// LAYER 1 — WIRE SERVICES (quality 1.0)
	// ============================================
	{Name: "Reuters Business", Layer: 1, Transport: TransportRSS, URL: "https://www.reutersagency.com/feed/?best-topics=business-finance&post_type=best", QualityScore: 1.0, Category: "wire"},
	{Name: "AP Business", Layer: 1, Transport: TransportRSS, URL: "https://rsshub.app/apnews/topics/apf-business", QualityScore: 1.0, Category: "wire"},
	{Name: "Bloomberg Markets", Layer: 1, Transport: TransportRSS, URL: "https://feeds.bloomberg.com/markets/news.rss", QualityScore: 1.0, Category: "wire"},
	{Name: "WSJ Markets", Layer: 1, Transport: TransportRSS, URL: "https://feeds.a.dj.com/rss/RSSMarketsMain.xml", QualityScore: 1.0, Category: "wire"},

	// ============================================
	// LAYER 2 — AGGREGATORS & FINANCIAL PRESS (quality 0.75–0.90)
	// ============================================
	{Name: "CNBC Markets", Layer: 2, Transport: TransportRSS, URL: "https://search.cnbc.com/rs/search/combinedcms/view.xml?partnerId=wrss01&id=20910258", QualityScore: 0.90, Category: "finance"},
	{Name: "MarketWatch Top", Layer: 2, Transport: TransportRSS, URL: "http://feeds.marketwatch.com/marketwatch/topstories/", QualityScore: 0.85, Category: "finance"},
	{Name: "MarketWatch Pulse", Layer: 2, Transport: TransportRSS, URL: "http://feeds.marketwatch.com/marketwatch/marketpulse/", QualityScore: 0.85, Category: "finance"},
	{Name: "Yahoo Finance", Layer: 2, Transport: TransportRSS, URL: "https://finance.yahoo.com/news/rssindex", QualityScore: 0.80, Category: "finance"},
	{Name: "Seeking Alpha", Layer: 2, Transport: TransportRSS, URL: "https://seekingalpha.com/feed.xml", QualityScore: 0.78, Category: "finance"},
	{Name: "Google News Business", Layer: 2, Transport: TransportRSS, URL: "https://news.google.com/rss/search?q=stock+market&hl=en-US&gl=US&ceid=US:en", SearchURL: "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en", QualityScore: 0.75, Category: "aggregator"},
	{Name: "Investing.com", Layer: 2, Transport: TransportRSS, URL: "https://www.investing.com/rss/news.rss", QualityScore: 0.75, Category: "aggregator"},

	// ============================================
	// LAYER 3 — SUPPLEMENTAL APIS (quality 0.60, fallback only)
	// ============================================
	{Name: "Benzinga", Layer: 3, Transport: TransportAPI, URL: "https://api.benzinga.com/api/v2/news", SearchURL: "https://api.benzinga.com/api/v2/news?tickers=%s", QualityScore: 0.60, Category: "api"},
	{Name: "Finnhub", Layer: 3, Transport: TransportAPI, URL: "https://finnhub.io/api/v1/news?category=general", SearchURL: "https://finnhub.io/api/v1/company-news?symbol=%s", QualityScore: 0.60, Category: "api"},
}

// Registry exposes the source catalog by layer and the quality lookup.
// It is stateless; construction never fails.
type Registry struct {
	sources []Source
	quality map[string]float64
}

// SourcesByName restricts the default catalog to the named sources, in
// catalog order. Matching is case-insensitive and unknown names are
// ignored. An empty list returns nil, which NewRegistry treats as the
// full catalog.
func SourcesByName(names []string) []Source {
	if len(names) == 0 {
		return nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var out []Source
	for _, s := range DefaultSources {
		if want[strings.ToLower(s.Name)] {
			out = append(out, s)
		}
	}
	return out
}

// NewRegistry builds a registry over the given sources, or over
// DefaultSources when none are supplied.
func NewRegistry(sources []Source) *Registry {
	if len(sources) == 0 {
		sources = DefaultSources
	}
	q := make(map[string]float64, len(sources))
	for _, s := range sources {
		q[s.Name] = s.QualityScore
	}
	return &Registry{sources: sources, quality: q}
}

// Layer returns the sources in a layer, in catalog order.
func (r *Registry) Layer(layer int) []Source {
	var out []Source
	for _, s := range r.sources {
		if s.Layer == layer {
			out = append(out, s)
		}
	}
	return out
}

// All returns every source in catalog order.
func (r *Registry) All() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Quality returns the registered quality score for a source name.
// Unknown sources score 0.
func (r *Registry) Quality(name string) float64 {
	return r.quality[name]
}

// NewsTier maps a source name to the monitor's news tier (1 = wire,
// 2 = aggregator/press, 3 = supplemental). Unknown sources are tier 0.
func (r *Registry) NewsTier(name string) int {
	for _, s := range r.sources {
		if s.Name == name {
			return s.Layer
		}
	}
	return 0
}
