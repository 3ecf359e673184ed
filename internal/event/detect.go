package event

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/marketbrief/internal/clean"
	"github.com/abelbrown/marketbrief/internal/logging"
)

// detectBatchSize bounds per-batch concurrency during classification.
const detectBatchSize = 10

// Classifier is the LLM capability the engine uses when available.
// A nil Classifier means rule-only operation.
type Classifier interface {
	// ClassifyEventType returns exactly one event-type token.
	ClassifyEventType(ctx context.Context, title, description string) (string, error)
	// LabelImpacts returns zero or more impact-label tokens.
	LabelImpacts(ctx context.Context, title, description string) ([]string, error)
}

// Engine runs event detection over cleaned articles.
type Engine struct {
	brain Classifier
}

func NewEngine(brain Classifier) *Engine {
	return &Engine{brain: brain}
}

// typeRule is one keyword heuristic. Rules are evaluated in declaration
// order and the first match wins.
type typeRule struct {
	eventType Type
	keywords  []string
}

var typeRules = []typeRule{
	{Earnings, []string{"earnings", "quarterly results", "q1 results", "q2 results", "q3 results", "q4 results", "revenue beat", "revenue miss", "eps", "profit report", "reports revenue", "beats estimates", "misses estimates"}},
	{Guidance, []string{"guidance", "outlook", "forecast raised", "forecast cut", "raises forecast", "lowers forecast", "expects revenue", "full-year", "fiscal year outlook"}},
	{ProductLaunch, []string{"launches new", "launches its", "product launch", "launch event", "unveils", "unveiled", "announces new", "introduces", "debuts", "new product", "new model", "rolls out"}},
	{MergerAcquisition, []string{"acquisition", "acquires", "acquire", "merger", "merges", "buyout", "takeover", "to buy", "deal to purchase", "stake in"}},
	{Regulation, []string{"regulator", "regulation", "sec ", "ftc", "doj", "antitrust", "probe", "investigation", "fine", "fined", "compliance", "tariff", "sanction", "ban"}},
	{Litigation, []string{"lawsuit", "sues", "sued", "litigation", "court", "settlement", "class action", "appeal", "verdict", "judge rules"}},
	{AnalystNote, []string{"upgrade", "downgrade", "price target", "analyst", "rating", "initiates coverage", "overweight", "underweight", "outperform", "buy rating", "sell rating"}},
	{Macro, []string{"fed ", "federal reserve", "interest rate", "inflation", "cpi", "gdp", "jobs report", "unemployment", "treasury", "recession", "economy", "economic data", "central bank"}},
	{SocialSentiment, []string{"reddit", "wallstreetbets", "meme stock", "retail investors", "social media buzz", "trending on", "viral"}},
	{Rumor, []string{"rumor", "rumour", "reportedly", "sources say", "according to people familiar", "speculation", "unconfirmed", "may be considering"}},
	{Fluff, nil}, // unconditional fallback
}

// Detect classifies one article.
func (e *Engine) Detect(ctx context.Context, art clean.CleanedArticle) DetectedEvent {
	text := art.CleanTitle + " " + art.CleanDescription + " " + art.CleanBody

	eventType := Type("")
	if e.brain != nil {
		token, err := e.brain.ClassifyEventType(ctx, art.CleanTitle, art.CleanDescription)
		if err != nil {
			logging.Debug("llm classify failed, using rules", "article", art.ID, "error", err)
		} else if t := Type(strings.TrimSpace(token)); t.Valid() {
			eventType = t
		}
	}
	if eventType == "" {
		eventType = classifyByRules(text)
	}

	ev := DetectedEvent{
		ID:               uuid.NewString(),
		CleanedArticleID: art.ID,
		EventType:        eventType,
		BaseScore:        eventType.BaseScore(),
		DominantTicker:   dominantTicker(art),
		Confidence:       confidence(art),
		DetectedAt:       time.Now(),
		Article:          art,
	}
	ev.ImpactLabels = e.labelImpacts(ctx, art)
	return ev
}

// DetectAll classifies a batch, running articles concurrently in groups.
// LLM pacing lives in the provider, so fan-out here stays simple.
func (e *Engine) DetectAll(ctx context.Context, arts []clean.CleanedArticle) []DetectedEvent {
	out := make([]DetectedEvent, len(arts))
	for start := 0; start < len(arts); start += detectBatchSize {
		end := start + detectBatchSize
		if end > len(arts) {
			end = len(arts)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i] = e.Detect(ctx, arts[i])
			}(i)
		}
		wg.Wait()
		if ctx.Err() != nil {
			return out[:end]
		}
	}
	return out
}

// classifyByRules applies the keyword heuristics in priority order.
func classifyByRules(text string) Type {
	lower := strings.ToLower(text)
	for _, rule := range typeRules {
		if len(rule.keywords) == 0 {
			return rule.eventType
		}
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.eventType
			}
		}
	}
	return Fluff
}

// dominantTicker picks the article's leading symbol: the first extracted
// ticker, since extraction preserves first-mention order.
func dominantTicker(art clean.CleanedArticle) string {
	if len(art.CleanTickers) > 0 {
		return art.CleanTickers[0]
	}
	return ""
}

// confidence starts at 0.7 and earns increments for substance.
func confidence(art clean.CleanedArticle) float64 {
	c := 0.7
	if len(art.CleanBody) >= 200 {
		c += 0.1
	}
	if len(art.CleanTickers) >= 1 {
		c += 0.1
	}
	if art.SourceQualityScore >= 0.8 {
		c += 0.1
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}
