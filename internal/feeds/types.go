package feeds

import "time"

// Transport identifies how a source is fetched
type Transport string

const (
	TransportRSS Transport = "rss"
	TransportAPI Transport = "api"
)

// Source is a single configured news source. Sources are static
// configuration declared at build time; there is no source state here.
type Source struct {
	Name         string
	Layer        int // 1 = wire feeds, 2 = aggregators, 3 = supplemental APIs
	Transport    Transport
	URL          string  // feed URL, or API endpoint for TransportAPI
	SearchURL    string  // optional search endpoint with a %s query slot
	QualityScore float64 // [0,1]; L1 = 1.0, L2 ≈ 0.75–0.90, L3 ≈ 0.60
	Category     string
}

// RawArticle is an immutable snapshot of one fetched article. Created by
// the fetcher and never mutated afterwards.
type RawArticle struct {
	ID             string
	Source         string
	SourceLayer    int
	Title          string
	RawBody        string // optional
	Description    string // optional
	PublishedAt    string // raw string exactly as the source gave it
	URL            string
	InitialTickers []string // optional, from sources that tag symbols
	FetchTime      time.Time
	IsHoldingsNews bool // produced by a holdings-targeted query
	SourceTag      string
}
