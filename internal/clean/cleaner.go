// Package clean normalizes raw articles into a form the rest of the
// pipeline can trust: markup stripped, dates resolved to instants,
// tickers extracted against a known vocabulary, and low-information
// items flagged.
package clean

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/abelbrown/marketbrief/internal/feeds"
	"github.com/abelbrown/marketbrief/internal/fetch"
)

// CleanedArticle is the normalized form of one RawArticle.
type CleanedArticle struct {
	ID                    string
	RawArticleID          string
	URL                   string // normalized
	CleanTitle            string
	CleanDescription      string
	CleanBody             string
	CleanTickers          []string // uppercase, vocabulary-recognized
	Language              string
	SourceQualityScore    float64
	NormalizedPublishedAt time.Time
	Author                string
	SourceCategory        string
	Source                string
	SourceLayer           int
	IsHoldingsNews        bool
	IsLowInformation      bool
}

// HasTicker reports whether the article mentions symbol.
func (a *CleanedArticle) HasTicker(symbol string) bool {
	symbol = strings.ToUpper(symbol)
	for _, t := range a.CleanTickers {
		if t == symbol {
			return true
		}
	}
	return false
}

// dateFormats is the ordered parse chain for publishedAt strings.
var dateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// boilerplatePatterns mark bodies that carry no information of their own.
var boilerplatePatterns = []string{
	"click here to read",
	"read the full article",
	"read more at",
	"continue reading",
	"subscribe to read",
	"sign up for our newsletter",
	"this article originally appeared",
	"all rights reserved",
}

var (
	tickerTokenRe    = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
	explicitTickerRe = regexp.MustCompile(`[$(]([A-Z]{1,5})[):]?|\b([A-Z]{1,5}):\s`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// Cleaner transforms raw articles. It is deterministic and does no I/O.
type Cleaner struct {
	registry *feeds.Registry
}

func NewCleaner(registry *feeds.Registry) *Cleaner {
	return &Cleaner{registry: registry}
}

// Clean derives the CleanedArticle for one raw article. Malformed input
// yields empty fields, never an error.
func (c *Cleaner) Clean(raw feeds.RawArticle) CleanedArticle {
	title := StripHTML(raw.Title)
	desc := StripHTML(raw.Description)
	body := StripHTML(raw.RawBody)

	art := CleanedArticle{
		ID:                    uuid.NewString(),
		RawArticleID:          raw.ID,
		URL:                   fetch.NormalizeURL(raw.URL),
		CleanTitle:            title,
		CleanDescription:      desc,
		CleanBody:             body,
		Language:              detectLanguage(title + " " + desc),
		SourceQualityScore:    c.registry.Quality(raw.Source),
		NormalizedPublishedAt: ParseDate(raw.PublishedAt, raw.FetchTime),
		Source:                raw.Source,
		SourceLayer:           raw.SourceLayer,
		IsHoldingsNews:        raw.IsHoldingsNews,
	}
	if src := sourceCategory(c.registry, raw.Source); src != "" {
		art.SourceCategory = src
	}
	art.CleanTickers = ExtractTickers(title+" "+desc+" "+body, raw.InitialTickers)
	// Feeds that ship no body still count their description as content.
	content := body
	if content == "" {
		content = desc
	}
	art.IsLowInformation = isLowInformation(title, content)
	return art
}

// CleanAll maps Clean over a batch, dropping non-English articles.
func (c *Cleaner) CleanAll(raws []feeds.RawArticle) []CleanedArticle {
	out := make([]CleanedArticle, 0, len(raws))
	for _, raw := range raws {
		art := c.Clean(raw)
		if art.Language != "en" {
			continue
		}
		out = append(out, art)
	}
	return out
}

// StripHTML removes markup and collapses whitespace. Entities are decoded.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<>") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("script, style").Remove()
			s = doc.Text()
		}
	}
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// ParseDate resolves a raw publishedAt string through the format chain,
// falling back to the given time when nothing matches.
func ParseDate(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

// detectLanguage is a cheap heuristic: if the text is mostly ASCII and
// contains common English stopwords, call it English. Good enough for
// feed triage; anything doubtful is marked unknown and dropped upstream.
func detectLanguage(text string) string {
	if text == "" {
		return "en"
	}
	nonASCII := 0
	for _, r := range text {
		if r > 127 {
			nonASCII++
		}
	}
	if float64(nonASCII)/float64(len(text)) > 0.15 {
		return "unknown"
	}
	lower := " " + strings.ToLower(text) + " "
	hits := 0
	for _, w := range []string{" the ", " to ", " of ", " and ", " in ", " for ", " on ", " is ", " as ", " with "} {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	if hits >= 2 || len(text) < 40 {
		return "en"
	}
	return "unknown"
}

// ExtractTickers finds vocabulary symbols in text. Ambiguous symbols
// (plain-English collisions) require an explicit form like $AAPL or
// (AAPL). The result is the union with any source-supplied tickers,
// uppercase, deduplicated, in first-seen order.
func ExtractTickers(text string, initial []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(sym string) {
		sym = strings.ToUpper(sym)
		if sym == "" || seen[sym] || !KnownTicker(sym) {
			return
		}
		seen[sym] = true
		out = append(out, sym)
	}

	for _, m := range explicitTickerRe.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if g != "" {
				add(g)
			}
		}
	}
	for _, tok := range tickerTokenRe.FindAllString(text, -1) {
		if ambiguousTickers[tok] && !seen[tok] {
			continue
		}
		add(tok)
	}
	for _, sym := range initial {
		add(sym)
	}
	return out
}

func isLowInformation(title, body string) bool {
	if len(title) < 30 {
		return true
	}
	if len(body) < 120 {
		return true
	}
	lower := strings.ToLower(body)
	for _, p := range boilerplatePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func sourceCategory(r *feeds.Registry, name string) string {
	for _, s := range r.All() {
		if s.Name == name {
			return s.Category
		}
	}
	return ""
}
