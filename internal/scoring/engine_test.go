package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/abelbrown/marketbrief/internal/clean"
	"github.com/abelbrown/marketbrief/internal/cluster"
	"github.com/abelbrown/marketbrief/internal/event"
	"github.com/abelbrown/marketbrief/internal/user"
)

func makeCluster(ticker string, eventType event.Type, title string, labels []event.ImpactLabel, age time.Duration) *cluster.Cluster {
	var tickers []string
	if ticker != "" {
		tickers = []string{ticker}
	}
	ev := event.DetectedEvent{
		EventType:      eventType,
		DominantTicker: ticker,
		ImpactLabels:   labels,
		Article: clean.CleanedArticle{
			CleanTitle:         title,
			CleanTickers:       tickers,
			SourceQualityScore: 0.9,
		},
	}
	return &cluster.Cluster{
		ID:             "c-" + ticker + string(eventType),
		Events:         []event.DetectedEvent{ev},
		EventType:      eventType,
		DominantTicker: ticker,
		CreatedAt:      time.Now().Add(-age),
	}
}

func settingsWith(mode user.Mode, symbols ...string) *user.Settings {
	s := user.DefaultSettings("u1")
	s.Mode = mode
	for _, sym := range symbols {
		s.Holdings = append(s.Holdings, user.Holding{Symbol: sym})
	}
	return s
}

func TestTotalScoreIsWeightedSum(t *testing.T) {
	settings := settingsWith(user.ModeSmart, "AAPL")
	engine := NewEngine(settings)

	c := makeCluster("AAPL", event.Earnings, "AAPL beats on earnings as revenue climbs sharply",
		[]event.ImpactLabel{event.BigMoves}, 30*time.Minute)
	score := engine.Score(c)
	if score == nil {
		t.Fatal("expected a score, got nil")
	}

	b := score.Breakdown
	want := 0.55*b.HoldingsRelevance + 0.20*b.ImpactLabelScore + 0.15*b.EventTypeWeight + 0.10*b.RecencyScore
	if math.Abs(score.TotalScore-want) > 1e-9 {
		t.Errorf("totalScore = %v, want weighted sum %v", score.TotalScore, want)
	}
	if score.TotalScore < 0 || score.TotalScore > 1 {
		t.Errorf("totalScore = %v, want in [0,1]", score.TotalScore)
	}
	if b.HoldingsRelevance != 1.0 {
		t.Errorf("holdingsRelevance = %v, want 1.0 (owned ticker in title)", b.HoldingsRelevance)
	}
	if b.EventTypeWeight != 1.0 {
		t.Errorf("eventTypeWeight = %v, want 1.0 for earnings", b.EventTypeWeight)
	}
}

func TestFocusModeFiltersNonHoldings(t *testing.T) {
	settings := settingsWith(user.ModeFocus, "TSLA")
	engine := NewEngine(settings)

	clusters := []*cluster.Cluster{
		makeCluster("AAPL", event.Earnings, "AAPL posts record quarter with massive beats", []event.ImpactLabel{event.MostImpactful}, time.Hour),
		makeCluster("NVDA", event.Guidance, "NVDA raises guidance on surging data center demand", []event.ImpactLabel{event.BigMoves}, time.Hour),
		makeCluster("TSLA", event.Earnings, "TSLA earnings surprise sends shares higher today", []event.ImpactLabel{event.BigMoves}, time.Hour),
	}
	scored := engine.ScoreAll(clusters)
	if len(scored) != 1 {
		t.Fatalf("focus mode kept %d clusters, want 1", len(scored))
	}
	if scored[0].Cluster.DominantTicker != "TSLA" {
		t.Errorf("kept ticker = %q, want TSLA", scored[0].Cluster.DominantTicker)
	}
	if engine.Dropped[DropNotHolding] != 2 {
		t.Errorf("DropNotHolding = %d, want 2", engine.Dropped[DropNotHolding])
	}
}

func TestLowValueEventsFilteredUnlessHoldings(t *testing.T) {
	tests := []struct {
		name      string
		eventType event.Type
		labels    []event.ImpactLabel
		ticker    string
		holdings  []string
		wantKept  bool
	}{
		{"rumor dropped", event.Rumor, nil, "NVDA", nil, false},
		{"plain analyst note dropped", event.AnalystNote, nil, "NVDA", nil, false},
		{"analyst note with strong label kept", event.AnalystNote, []event.ImpactLabel{event.BigMoves}, "NVDA", nil, true},
		{"plain social dropped", event.SocialSentiment, nil, "GME", nil, false},
		{"rumor kept for holdings", event.Rumor, nil, "NVDA", []string{"NVDA"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := settingsWith(user.ModeSmart, tt.holdings...)
			engine := NewEngine(settings)
			c := makeCluster(tt.ticker, tt.eventType, "A headline long enough to avoid the low info path", tt.labels, time.Hour)
			got := engine.Score(c)
			if (got != nil) != tt.wantKept {
				t.Errorf("kept = %v, want %v", got != nil, tt.wantKept)
			}
		})
	}
}

func TestLowInformationArticleDropsCluster(t *testing.T) {
	settings := settingsWith(user.ModeSmart, "AAPL")
	engine := NewEngine(settings)

	c := makeCluster("AAPL", event.Earnings, "AAPL reports quarterly earnings beat expectations", nil, time.Hour)
	c.Events[0].Article.IsLowInformation = true
	if got := engine.Score(c); got != nil {
		t.Errorf("expected low-information cluster dropped, got score %v", got.TotalScore)
	}
	if engine.Dropped[DropLowInformation] != 1 {
		t.Errorf("DropLowInformation = %d, want 1", engine.Dropped[DropLowInformation])
	}
}

func TestFocusHoldingsExceptionKeepsLowInformation(t *testing.T) {
	settings := settingsWith(user.ModeFocus, "AAPL")
	engine := NewEngine(settings)

	c := makeCluster("AAPL", event.Earnings, "AAPL reports quarterly earnings beat expectations", []event.ImpactLabel{event.BigMoves}, time.Minute)
	c.Events[0].Article.IsLowInformation = true
	if got := engine.Score(c); got == nil {
		t.Error("focus-mode holdings cluster should survive the low-information filter")
	}
}

func TestHoldingsRelevance(t *testing.T) {
	tests := []struct {
		name     string
		ticker   string
		title    string
		holdings []string
		want     float64
	}{
		{"owned in title", "AAPL", "AAPL shares jump after product event announcement", []string{"AAPL"}, 1.0},
		{"ticker not owned no sector", "GME", "GME rallies on renewed retail interest today", []string{"XOM"}, 0.0},
		{"sector proximity", "AMD", "AMD gains on strong server processor demand", []string{"NVDA"}, 0.3},
		{"no ticker no sector", "", "Broad markets drift ahead of holiday weekend", []string{"AAPL"}, 0.15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := settingsWith(user.ModeSmart, tt.holdings...)
			engine := NewEngine(settings)
			c := makeCluster(tt.ticker, event.Earnings, tt.title, nil, time.Hour)
			got := engine.holdingsRelevance(c)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("holdingsRelevance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOwnedTickerInBodyOnly(t *testing.T) {
	settings := settingsWith(user.ModeSmart, "MSFT")
	engine := NewEngine(settings)

	c := makeCluster("MSFT", event.Earnings, "Software giant posts strong cloud growth this quarter", nil, time.Hour)
	c.Events[0].Article.CleanBody = "The results from MSFT exceeded every analyst forecast."
	got := engine.holdingsRelevance(c)
	if got != 0.6 {
		t.Errorf("holdingsRelevance = %v, want 0.6 (owned, body mention only)", got)
	}
}

func TestRecencyBuckets(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{30 * time.Minute, 1.0},
		{2 * time.Hour, 0.9},
		{6 * time.Hour, 0.75},
		{18 * time.Hour, 0.6},
		{48 * time.Hour, 0.4},
		{100 * time.Hour, 0.2},
		{200 * time.Hour, 0.1},
	}
	for _, tt := range tests {
		if got := RecencyScore(tt.age); got != tt.want {
			t.Errorf("RecencyScore(%v) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestFocusPostFilterDropsWeakScores(t *testing.T) {
	settings := settingsWith(user.ModeFocus, "AAPL")
	engine := NewEngine(settings)

	// Holdings cluster, but fluff type with no labels and a stale
	// timestamp: survives pre-filters via the focus exception, then
	// lands under the 0.5 floor.
	c := makeCluster("AAPL", event.Fluff, "Ten fun facts about the Cupertino campus grounds", nil, 200*time.Hour)
	if got := engine.Score(c); got != nil {
		t.Errorf("expected post-filter drop, got score %v", got.TotalScore)
	}
	if engine.Dropped[DropBelowFloor] != 1 {
		t.Errorf("DropBelowFloor = %d, want 1", engine.Dropped[DropBelowFloor])
	}
}

func TestImpactLabelScoreNormalized(t *testing.T) {
	all := []event.ImpactLabel{
		event.MostImpactful, event.Surprising, event.Drama,
		event.PriceAffectingAbnormal, event.BigMoves,
		event.AllTimeHigh, event.AllTimeLow, event.StockPopularity,
	}
	c := makeCluster("AAPL", event.Earnings, "AAPL sweeps every impact label somehow today", all, time.Hour)
	got := impactLabelScore(c)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("impactLabelScore with every label = %v, want 1.0", got)
	}

	none := makeCluster("AAPL", event.Earnings, "AAPL with no labels attached at all here", nil, time.Hour)
	if got := impactLabelScore(none); got != 0 {
		t.Errorf("impactLabelScore with no labels = %v, want 0", got)
	}
}
