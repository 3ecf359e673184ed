package cluster

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/marketbrief/internal/event"
	"github.com/abelbrown/marketbrief/internal/fetch"
	"github.com/abelbrown/marketbrief/internal/logging"
)

// Thresholds for the lexical stages. Values are Jaccard title overlap.
const (
	nearDuplicateThreshold = 0.85 // stage 1: drop as duplicate coverage
	quickAcceptThreshold   = 0.70 // stage 2: same ticker, accept without LLM
	llmCandidateThreshold  = 0.30 // stage 2: ambiguous, ask the LLM
	llmFallbackThreshold   = 0.50 // accept on similarity alone when LLM fails
	crossMergeThreshold    = 0.50 // stage 3: auto-merge without LLM
	crossConsiderThreshold = 0.35 // stage 3: consider merging, confirm via LLM

	sameTickerWindow = 48 * time.Hour
	crossMergeWindow = 72 * time.Hour
)

// SameEventChecker is the LLM capability for ambiguous pairs. Pacing
// between calls is the provider's job.
type SameEventChecker interface {
	SameEvent(ctx context.Context, titleA, titleB string) (bool, error)
}

// Cluster is a non-empty set of detected events judged to describe one
// real-world event. The canonical article is an index into Events, never
// a second owning handle.
type Cluster struct {
	ID             string
	Events         []event.DetectedEvent
	Similarities   []float64 // informational, parallel to accepted members
	EventType      event.Type
	DominantTicker string
	CanonicalIndex int
	CreatedAt      time.Time
	CrossMerged    bool
}

// Canonical returns the representative event of the cluster.
func (c *Cluster) Canonical() event.DetectedEvent {
	return c.Events[c.CanonicalIndex]
}

// tickerCounts tallies symbol mentions across member articles.
func (c *Cluster) tickerCounts() map[string]int {
	counts := make(map[string]int)
	for _, ev := range c.Events {
		for _, t := range ev.Article.CleanTickers {
			counts[t]++
		}
	}
	return counts
}

// Engine clusters detected events. Holdings bias dominant-ticker choice.
type Engine struct {
	brain    SameEventChecker
	holdings map[string]bool

	// DroppedDuplicates counts stage-1 rejections for diagnostics.
	DroppedDuplicates int
	llmChecks         int
	llmFailures       int
}

// NewEngine creates a clustering engine. brain may be nil.
func NewEngine(brain SameEventChecker, holdings []string) *Engine {
	set := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		set[h] = true
	}
	return &Engine{brain: brain, holdings: set}
}

// ClusterEvents runs all three stages and returns clusters with canonical
// articles selected. Always terminates; zero-article clusters cannot occur.
func (e *Engine) ClusterEvents(ctx context.Context, events []event.DetectedEvent) []*Cluster {
	survivors := e.dedupe(events)
	clusters := e.clusterIntraGroup(ctx, survivors)
	clusters = e.mergeCrossTicker(ctx, clusters)
	logging.Info("clustering complete",
		"input", len(events),
		"after_dedup", len(survivors),
		"clusters", len(clusters),
		"llm_checks", e.llmChecks,
		"llm_failures", e.llmFailures)
	return clusters
}

// dedupe is stage 1: drop repeat urls, exact normalized-title duplicates,
// and near-duplicate titles.
func (e *Engine) dedupe(events []event.DetectedEvent) []event.DetectedEvent {
	seenURL := make(map[string]bool)
	seenTitle := make(map[string]bool)
	var keptTitles []string
	var out []event.DetectedEvent

	for _, ev := range events {
		url := fetch.NormalizeURL(ev.Article.URL)
		if url != "" && seenURL[url] {
			e.DroppedDuplicates++
			continue
		}
		norm := NormalizeTitle(ev.Article.CleanTitle)
		if norm != "" && seenTitle[norm] {
			e.DroppedDuplicates++
			continue
		}
		dup := false
		for _, kept := range keptTitles {
			if TitleSimilarity(ev.Article.CleanTitle, kept) > nearDuplicateThreshold {
				dup = true
				break
			}
		}
		if dup {
			e.DroppedDuplicates++
			continue
		}
		if url != "" {
			seenURL[url] = true
		}
		if norm != "" {
			seenTitle[norm] = true
		}
		keptTitles = append(keptTitles, ev.Article.CleanTitle)
		out = append(out, ev)
	}
	return out
}

// clusterIntraGroup is stage 2: partition by dominant ticker, then grow
// clusters greedily from each unseen seed.
func (e *Engine) clusterIntraGroup(ctx context.Context, events []event.DetectedEvent) []*Cluster {
	groups := make(map[string][]event.DetectedEvent)
	var order []string
	for _, ev := range events {
		key := ev.DominantTicker
		if key == "" {
			key = "no-ticker"
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], ev)
	}

	var clusters []*Cluster
	for _, key := range order {
		group := groups[key]
		used := make([]bool, len(group))
		for i := range group {
			if used[i] {
				continue
			}
			used[i] = true
			c := &Cluster{
				ID:             uuid.NewString(),
				Events:         []event.DetectedEvent{group[i]},
				EventType:      group[i].EventType,
				DominantTicker: group[i].DominantTicker,
				CreatedAt:      time.Now(),
			}
			for j := i + 1; j < len(group); j++ {
				if used[j] {
					continue
				}
				sim, accept := e.sameEvent(ctx, group[i], group[j], key != "no-ticker")
				if accept {
					used[j] = true
					c.Events = append(c.Events, group[j])
					c.Similarities = append(c.Similarities, sim)
					if group[j].EventType.BaseScore() > c.EventType.BaseScore() {
						c.EventType = group[j].EventType
					}
				}
			}
			// Canonical selection happens here so the cross-ticker stage
			// compares representative articles, not cluster seeds.
			c.CanonicalIndex = selectCanonical(c.Events)
			clusters = append(clusters, c)
		}
	}
	return clusters
}

// sameEvent decides whether two events in one ticker group belong
// together, returning the recorded similarity.
func (e *Engine) sameEvent(ctx context.Context, a, b event.DetectedEvent, sameTicker bool) (float64, bool) {
	if sameTicker && a.EventType == b.EventType && within(a.Article.NormalizedPublishedAt, b.Article.NormalizedPublishedAt, sameTickerWindow) {
		return 0.95, true
	}
	sim := TitleSimilarity(a.Article.CleanTitle, b.Article.CleanTitle)
	if sameTicker && sim > quickAcceptThreshold {
		return sim, true
	}
	if sim > llmCandidateThreshold || tickersOverlap(a.Article.CleanTickers, b.Article.CleanTickers) {
		return sim, e.askSameEvent(ctx, a.Article.CleanTitle, b.Article.CleanTitle, sim)
	}
	return sim, false
}

// askSameEvent consults the LLM, degrading to similarity-only.
func (e *Engine) askSameEvent(ctx context.Context, titleA, titleB string, sim float64) bool {
	if e.brain == nil {
		return sim > llmFallbackThreshold
	}
	e.llmChecks++
	same, err := e.brain.SameEvent(ctx, titleA, titleB)
	if err != nil {
		e.llmFailures++
		logging.Debug("same-event check failed, using similarity", "error", err)
		return sim > llmFallbackThreshold
	}
	return same
}

// mergeCrossTicker is stage 3: merge clusters with distinct dominant
// tickers that describe one multi-company event.
func (e *Engine) mergeCrossTicker(ctx context.Context, clusters []*Cluster) []*Cluster {
	merged := make([]bool, len(clusters))
	var out []*Cluster
	for i := 0; i < len(clusters); i++ {
		if merged[i] {
			continue
		}
		base := clusters[i]
		for j := i + 1; j < len(clusters); j++ {
			if merged[j] {
				continue
			}
			other := clusters[j]
			if base.DominantTicker == other.DominantTicker {
				continue
			}
			if e.shouldMerge(ctx, base, other) {
				e.merge(base, other)
				merged[j] = true
			}
		}
		out = append(out, base)
	}
	return out
}

func (e *Engine) shouldMerge(ctx context.Context, a, b *Cluster) bool {
	ca, cb := a.Canonical(), b.Canonical()
	sim := TitleSimilarity(ca.Article.CleanTitle, cb.Article.CleanTitle)
	if sim > crossMergeThreshold {
		return true
	}
	overlap := tickersOverlap(ca.Article.CleanTickers, cb.Article.CleanTickers)
	recent := within(ca.Article.NormalizedPublishedAt, cb.Article.NormalizedPublishedAt, crossMergeWindow)
	if overlap || (sim > crossConsiderThreshold && recent) {
		return e.askSameEvent(ctx, ca.Article.CleanTitle, cb.Article.CleanTitle, sim)
	}
	return false
}

// merge folds b into a: union events, recompute dominant ticker with
// holdings bias, keep the higher-baseScore event type.
func (e *Engine) merge(a, b *Cluster) {
	a.Events = append(a.Events, b.Events...)
	a.Similarities = append(a.Similarities, b.Similarities...)
	if b.EventType.BaseScore() > a.EventType.BaseScore() {
		a.EventType = b.EventType
	}
	a.CrossMerged = true
	a.DominantTicker = e.pickDominantTicker(a)
	a.CanonicalIndex = selectCanonical(a.Events)
}

// pickDominantTicker prefers a holdings-owned ticker; otherwise the
// ticker appearing in the most member articles wins.
func (e *Engine) pickDominantTicker(c *Cluster) string {
	counts := c.tickerCounts()
	best, bestCount := "", 0
	for t, n := range counts {
		if e.holdings[t] {
			if best == "" || !e.holdings[best] || n > bestCount {
				best, bestCount = t, n
			}
			continue
		}
		if best != "" && e.holdings[best] {
			continue
		}
		if n > bestCount || (n == bestCount && t < best) || best == "" {
			best, bestCount = t, n
		}
	}
	if best == "" {
		return c.DominantTicker
	}
	return best
}

// selectCanonical scores each member and returns the index of the best:
// quality, body length, freshness, and title length in fixed proportions.
func selectCanonical(events []event.DetectedEvent) int {
	now := time.Now()
	bestIdx, bestScore := 0, -1.0
	for i, ev := range events {
		art := ev.Article
		ageDays := now.Sub(art.NormalizedPublishedAt).Hours() / 24
		score := 0.4*art.SourceQualityScore +
			0.3*math.Min(1, float64(len(art.CleanBody))/1000) +
			0.2*math.Max(0, 1-ageDays/7) +
			0.1*math.Min(1, float64(len(art.CleanTitle))/100)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return bestIdx
}

func within(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// Describe returns a short diagnostic string for logs.
func (c *Cluster) Describe() string {
	return fmt.Sprintf("%s/%s (%d articles)", c.DominantTicker, c.EventType, len(c.Events))
}
