// Package scoring computes per-user relevance scores for event clusters.
// Hard pre-filters run before any arithmetic; the weighted sum and the
// focus-mode post-filter decide what survives into the feed.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/abelbrown/marketbrief/internal/clean"
	"github.com/abelbrown/marketbrief/internal/cluster"
	"github.com/abelbrown/marketbrief/internal/event"
	"github.com/abelbrown/marketbrief/internal/user"
)

// Component weights of the total score.
const (
	weightHoldings = 0.55
	weightImpact   = 0.20
	weightType     = 0.15
	weightRecency  = 0.10

	// focusScoreFloor drops weak clusters in focus mode.
	focusScoreFloor = 0.5
)

// Breakdown carries the score components for inspection and tests.
type Breakdown struct {
	HoldingsRelevance float64
	ImpactLabelScore  float64
	EventTypeWeight   float64
	RecencyScore      float64
}

// UserEventScore is the scored (user, cluster) pair.
type UserEventScore struct {
	ClusterID  string
	UserID     string
	TotalScore float64
	Breakdown  Breakdown
	Cluster    *cluster.Cluster
}

// DropReason explains a pre- or post-filter rejection, for diagnostics.
type DropReason string

const (
	DropNotHolding     DropReason = "focus_not_holding"
	DropLowValueEvent  DropReason = "low_value_event"
	DropLowInformation DropReason = "low_information"
	DropFluff          DropReason = "fluff"
	DropBelowFloor     DropReason = "below_focus_floor"
)

// Engine scores clusters against one user's settings.
type Engine struct {
	settings *user.Settings

	// Dropped tallies filter rejections by reason.
	Dropped map[DropReason]int
}

func NewEngine(settings *user.Settings) *Engine {
	return &Engine{settings: settings, Dropped: make(map[DropReason]int)}
}

// Score returns the user's score for a cluster, or nil when a filter
// rejects it.
func (e *Engine) Score(c *cluster.Cluster) *UserEventScore {
	if reason, drop := e.preFilter(c); drop {
		e.Dropped[reason]++
		return nil
	}

	b := Breakdown{
		HoldingsRelevance: e.holdingsRelevance(c),
		ImpactLabelScore:  impactLabelScore(c),
		EventTypeWeight:   c.EventType.BaseScore(),
		RecencyScore:      RecencyScore(time.Since(c.CreatedAt)),
	}
	total := weightHoldings*b.HoldingsRelevance +
		weightImpact*b.ImpactLabelScore +
		weightType*b.EventTypeWeight +
		weightRecency*b.RecencyScore

	if e.settings.Mode == user.ModeFocus && total < focusScoreFloor {
		e.Dropped[DropBelowFloor]++
		return nil
	}

	return &UserEventScore{
		ClusterID:  c.ID,
		UserID:     e.settings.UserID,
		TotalScore: total,
		Breakdown:  b,
		Cluster:    c,
	}
}

// ScoreAll scores a batch, keeping only survivors, in input order.
func (e *Engine) ScoreAll(clusters []*cluster.Cluster) []*UserEventScore {
	var out []*UserEventScore
	for _, c := range clusters {
		if s := e.Score(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// preFilter applies the hard mode-dependent rejections.
func (e *Engine) preFilter(c *cluster.Cluster) (DropReason, bool) {
	isHoldings := e.settings.Owns(c.DominantTicker)

	if e.settings.Mode == user.ModeFocus && !isHoldings {
		return DropNotHolding, true
	}

	if e.settings.Mode == user.ModeBeginner || e.settings.Mode == user.ModeSmart {
		if !isHoldings && isLowValueEvent(c) {
			return DropLowValueEvent, true
		}
	}

	holdingsFocusException := isHoldings && e.settings.Mode == user.ModeFocus
	if !holdingsFocusException {
		for _, ev := range c.Events {
			if ev.Article.IsLowInformation {
				return DropLowInformation, true
			}
		}
		if c.EventType == event.Fluff {
			return DropFluff, true
		}
	}
	return "", false
}

// isLowValueEvent marks fluff, rumors, and unremarkable analyst or
// social chatter for beginner/smart filtering.
func isLowValueEvent(c *cluster.Cluster) bool {
	switch c.EventType {
	case event.Fluff, event.Rumor:
		return true
	case event.AnalystNote, event.SocialSentiment:
		for _, ev := range c.Events {
			if ev.HasStrongLabel() {
				return false
			}
		}
		return true
	}
	return false
}

// holdingsRelevance measures how directly the cluster touches the user's
// portfolio, with a sector-proximity fallback.
func (e *Engine) holdingsRelevance(c *cluster.Cluster) float64 {
	ticker := c.DominantTicker
	canonical := c.Canonical().Article

	if ticker != "" {
		owned := e.settings.Owns(ticker)
		if owned && mentionsTicker(canonical.CleanTitle, ticker) {
			return 1.0
		}
		if owned && (mentionsTicker(canonical.CleanBody, ticker) || canonical.HasTicker(ticker)) {
			return 0.6
		}
		if !owned {
			if sector := clean.Sector(ticker); sector != "" && e.ownsSector(sector) {
				return 0.3
			}
			return 0.0
		}
	}
	if sector := dominantSector(c); sector != "" && e.ownsSector(sector) {
		return 0.3
	}
	return 0.15
}

func (e *Engine) ownsSector(sector string) bool {
	for _, h := range e.settings.Holdings {
		if clean.Sector(h.Symbol) == sector {
			return true
		}
	}
	return false
}

// mentionsTicker checks for the symbol itself or its company name.
func mentionsTicker(text, symbol string) bool {
	if text == "" {
		return false
	}
	upper := strings.ToUpper(text)
	if strings.Contains(upper, strings.ToUpper(symbol)) {
		return true
	}
	if info, ok := clean.Lookup(symbol); ok && info.Name != "" {
		return strings.Contains(strings.ToLower(text), strings.ToLower(info.Name))
	}
	return false
}

// dominantSector finds the most common sector across member tickers.
func dominantSector(c *cluster.Cluster) string {
	counts := make(map[string]int)
	for _, ev := range c.Events {
		for _, t := range ev.Article.CleanTickers {
			if s := clean.Sector(t); s != "" {
				counts[s]++
			}
		}
	}
	best, bestN := "", 0
	for s, n := range counts {
		if n > bestN || (n == bestN && s < best) {
			best, bestN = s, n
		}
	}
	return best
}

// impactLabelScore sums label weights across member events, normalized
// by the total label weight and clamped to [0,1].
func impactLabelScore(c *cluster.Cluster) float64 {
	var sum float64
	for _, ev := range c.Events {
		for _, l := range ev.ImpactLabels {
			sum += l.Weight()
		}
	}
	return math.Min(1, sum/event.TotalLabelWeight())
}

// RecencyScore buckets the cluster age into a decaying score.
func RecencyScore(age time.Duration) float64 {
	hours := age.Hours()
	switch {
	case hours < 1:
		return 1.0
	case hours < 3:
		return 0.9
	case hours < 12:
		return 0.75
	case hours < 24:
		return 0.6
	case hours < 72:
		return 0.4
	case hours < 168:
		return 0.2
	default:
		return 0.1
	}
}
