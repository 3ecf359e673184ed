package event

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/abelbrown/marketbrief/internal/clean"
)

func TestClassifyByRules(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Type
	}{
		{"earnings", "Apple quarterly results beat estimates", Earnings},
		{"guidance", "Nvidia raises forecast for the full-year", Guidance},
		{"product launch", "Tesla unveils new model at showcase", ProductLaunch},
		{"merger", "Microsoft in deal to purchase gaming studio", MergerAcquisition},
		{"regulation", "FTC opens antitrust probe into retailer", Regulation},
		{"litigation", "Shareholders file class action over disclosures", Litigation},
		{"analyst", "Morgan Stanley cuts price target on chipmaker", AnalystNote},
		{"macro", "Federal Reserve signals patience on interest rate cuts", Macro},
		{"social", "Meme stock mania returns as wallstreetbets piles in", SocialSentiment},
		{"rumor", "Company reportedly weighing a sale, sources say", Rumor},
		{"fluff fallback", "Ten habits of successful weekend investors", Fluff},
		{"priority order: earnings beats analyst", "Analyst reacts to blowout earnings report", Earnings},
		{"launch verb in product context", "Apple launches new iPhone lineup to strong demand", ProductLaunch},
		{"launch verb in regulatory context", "FTC launches antitrust investigation into platform", Regulation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyByRules(tt.text); got != tt.want {
				t.Errorf("classifyByRules(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestBaseScoreTable(t *testing.T) {
	tests := []struct {
		eventType Type
		want      float64
	}{
		{Earnings, 1.00},
		{Guidance, 0.95},
		{Regulation, 0.90},
		{MergerAcquisition, 0.85},
		{ProductLaunch, 0.80},
		{Macro, 0.70},
		{Litigation, 0.65},
		{AnalystNote, 0.45},
		{SocialSentiment, 0.35},
		{Rumor, 0.25},
		{Fluff, 0.10},
		{Type("bogus"), 0.10},
	}
	for _, tt := range tests {
		if got := tt.eventType.BaseScore(); got != tt.want {
			t.Errorf("BaseScore(%v) = %v, want %v", tt.eventType, got, tt.want)
		}
	}
}

func TestConfidence(t *testing.T) {
	longBody := strings.Repeat("Results were strong across segments. ", 10)
	tests := []struct {
		name string
		art  clean.CleanedArticle
		want float64
	}{
		{"base", clean.CleanedArticle{}, 0.7},
		{"body bonus", clean.CleanedArticle{CleanBody: longBody}, 0.8},
		{"ticker bonus", clean.CleanedArticle{CleanTickers: []string{"AAPL"}}, 0.8},
		{"quality bonus", clean.CleanedArticle{SourceQualityScore: 0.9}, 0.8},
		{"all bonuses capped", clean.CleanedArticle{
			CleanBody:          longBody,
			CleanTickers:       []string{"AAPL"},
			SourceQualityScore: 1.0,
		}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidence(tt.art); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("confidence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectWithoutBrain(t *testing.T) {
	engine := NewEngine(nil)
	art := clean.CleanedArticle{
		ID:           "a1",
		CleanTitle:   "Apple earnings surge past estimates as iPhone sales hit record high",
		CleanTickers: []string{"AAPL"},
	}
	ev := engine.Detect(context.Background(), art)

	if ev.EventType != Earnings {
		t.Errorf("eventType = %v, want earnings", ev.EventType)
	}
	if ev.BaseScore != 1.00 {
		t.Errorf("baseScore = %v, want 1.00", ev.BaseScore)
	}
	if ev.DominantTicker != "AAPL" {
		t.Errorf("dominantTicker = %q, want AAPL", ev.DominantTicker)
	}
	if ev.CleanedArticleID != "a1" {
		t.Errorf("cleanedArticleID = %q, want a1", ev.CleanedArticleID)
	}
	if !ev.HasLabel(BigMoves) {
		t.Errorf("expected bigMoves label for %q, got %v", art.CleanTitle, ev.ImpactLabels)
	}
	if !ev.HasLabel(AllTimeHigh) {
		t.Errorf("expected allTimeHigh label, got %v", ev.ImpactLabels)
	}
}

// fakeClassifier returns canned responses for the LLM path.
type fakeClassifier struct {
	eventType string
	labels    []string
	fail      bool
}

func (f *fakeClassifier) ClassifyEventType(ctx context.Context, title, description string) (string, error) {
	if f.fail {
		return "", context.DeadlineExceeded
	}
	return f.eventType, nil
}

func (f *fakeClassifier) LabelImpacts(ctx context.Context, title, description string) ([]string, error) {
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	return f.labels, nil
}

func TestDetectPrefersLLM(t *testing.T) {
	engine := NewEngine(&fakeClassifier{eventType: "guidance", labels: []string{"surprising"}})
	art := clean.CleanedArticle{CleanTitle: "Company shares plunge on weak quarter"}
	ev := engine.Detect(context.Background(), art)

	if ev.EventType != Guidance {
		t.Errorf("eventType = %v, want guidance from LLM", ev.EventType)
	}
	// Rule pass still contributes; LLM labels are unioned.
	if !ev.HasLabel(BigMoves) {
		t.Errorf("rule label bigMoves missing: %v", ev.ImpactLabels)
	}
	if !ev.HasLabel(Surprising) {
		t.Errorf("LLM label surprising missing: %v", ev.ImpactLabels)
	}
}

func TestDetectFallsBackOnLLMFailure(t *testing.T) {
	engine := NewEngine(&fakeClassifier{fail: true})
	art := clean.CleanedArticle{CleanTitle: "FTC launches antitrust investigation into platform"}
	ev := engine.Detect(context.Background(), art)

	if ev.EventType != Regulation {
		t.Errorf("eventType = %v, want regulation from rules", ev.EventType)
	}
}

func TestDetectRejectsUnknownLLMToken(t *testing.T) {
	engine := NewEngine(&fakeClassifier{eventType: "breakingNews"})
	art := clean.CleanedArticle{CleanTitle: "Court settlement reached in patent lawsuit"}
	ev := engine.Detect(context.Background(), art)

	if ev.EventType != Litigation {
		t.Errorf("eventType = %v, want litigation via rule fallback", ev.EventType)
	}
}

func TestDetectAllPreservesOrder(t *testing.T) {
	engine := NewEngine(nil)
	arts := make([]clean.CleanedArticle, 25)
	for i := range arts {
		arts[i] = clean.CleanedArticle{ID: string(rune('a' + i)), CleanTitle: "Quarterly results beat estimates again"}
	}
	events := engine.DetectAll(context.Background(), arts)
	if len(events) != len(arts) {
		t.Fatalf("got %d events, want %d", len(events), len(arts))
	}
	for i, ev := range events {
		if ev.CleanedArticleID != arts[i].ID {
			t.Errorf("events[%d] article = %q, want %q", i, ev.CleanedArticleID, arts[i].ID)
		}
	}
}
