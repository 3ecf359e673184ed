// Package event classifies cleaned articles into typed market events
// and attaches impact labels. Classification prefers an LLM collaborator
// and always has a deterministic keyword fallback.
package event

import (
	"time"

	"github.com/abelbrown/marketbrief/internal/clean"
)

// Type is the fixed event-type vocabulary.
type Type string

const (
	Earnings          Type = "earnings"
	Guidance          Type = "guidance"
	ProductLaunch     Type = "productLaunch"
	MergerAcquisition Type = "mergerAcquisition"
	Regulation        Type = "regulation"
	Litigation        Type = "litigation"
	AnalystNote       Type = "analystNote"
	Macro             Type = "macro"
	SocialSentiment   Type = "socialSentiment"
	Rumor             Type = "rumor"
	Fluff             Type = "fluff"
)

// baseScores fixes the per-type weight used in scoring.
var baseScores = map[Type]float64{
	Earnings:          1.00,
	Guidance:          0.95,
	Regulation:        0.90,
	MergerAcquisition: 0.85,
	ProductLaunch:     0.80,
	Macro:             0.70,
	Litigation:        0.65,
	AnalystNote:       0.45,
	SocialSentiment:   0.35,
	Rumor:             0.25,
	Fluff:             0.10,
}

// BaseScore returns the fixed score for a type; unknown types score as Fluff.
func (t Type) BaseScore() float64 {
	if s, ok := baseScores[t]; ok {
		return s
	}
	return baseScores[Fluff]
}

// Valid reports whether t is one of the eleven known types.
func (t Type) Valid() bool {
	_, ok := baseScores[t]
	return ok
}

// ImpactLabel is an orthogonal tag describing the market-impact character
// of an event.
type ImpactLabel string

const (
	MostImpactful          ImpactLabel = "mostImpactful"
	Surprising             ImpactLabel = "surprising"
	Drama                  ImpactLabel = "drama"
	PriceAffectingAbnormal ImpactLabel = "priceAffectingAbnormal"
	BigMoves               ImpactLabel = "bigMoves"
	AllTimeHigh            ImpactLabel = "allTimeHigh"
	AllTimeLow             ImpactLabel = "allTimeLow"
	StockPopularity        ImpactLabel = "stockPopularity"
)

// labelWeights are used only for impact-score normalization.
var labelWeights = map[ImpactLabel]float64{
	AllTimeHigh:            0.40,
	AllTimeLow:             0.40,
	PriceAffectingAbnormal: 0.35,
	BigMoves:               0.30,
	MostImpactful:          0.30,
	Surprising:             0.25,
	Drama:                  0.20,
	StockPopularity:        0.15,
}

// Weight returns the label's normalization weight.
func (l ImpactLabel) Weight() float64 {
	return labelWeights[l]
}

// TotalLabelWeight is the denominator of the impact-score normalization.
func TotalLabelWeight() float64 {
	var sum float64
	for _, w := range labelWeights {
		sum += w
	}
	return sum
}

// StrongLabels are the impact labels that rescue otherwise-filtered
// analyst notes and social chatter during scoring.
var StrongLabels = map[ImpactLabel]bool{
	MostImpactful:          true,
	BigMoves:               true,
	AllTimeHigh:            true,
	AllTimeLow:             true,
	PriceAffectingAbnormal: true,
}

// DetectedEvent is the classification result for one cleaned article.
type DetectedEvent struct {
	ID               string
	CleanedArticleID string
	EventType        Type
	BaseScore        float64
	DominantTicker   string // optional
	Confidence       float64
	ImpactLabels     []ImpactLabel
	DetectedAt       time.Time

	// Article keeps the classified article reachable for clustering.
	Article clean.CleanedArticle
}

// HasLabel reports whether the event carries the given impact label.
func (e *DetectedEvent) HasLabel(l ImpactLabel) bool {
	for _, have := range e.ImpactLabels {
		if have == l {
			return true
		}
	}
	return false
}

// HasStrongLabel reports whether any strong impact label is present.
func (e *DetectedEvent) HasStrongLabel() bool {
	for _, l := range e.ImpactLabels {
		if StrongLabels[l] {
			return true
		}
	}
	return false
}
