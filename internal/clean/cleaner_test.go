package clean

import (
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/marketbrief/internal/feeds"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "Apple beats estimates", "Apple beats estimates"},
		{"tags removed", "<p>Apple <b>beats</b> estimates</p>", "Apple beats estimates"},
		{"entities decoded", "Johnson &amp; Johnson settles", "Johnson & Johnson settles"},
		{"script stripped", "<script>alert(1)</script>Markets rally", "Markets rally"},
		{"whitespace collapsed", "Fed  holds \n\t rates", "Fed holds rates"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripHTMLIdempotent(t *testing.T) {
	input := "<div>Tesla &amp; Ford   announce <em>joint</em> venture</div>"
	once := StripHTML(input)
	twice := StripHTML(once)
	if once != twice {
		t.Errorf("not idempotent: %q != %q", once, twice)
	}
}

func TestParseDate(t *testing.T) {
	fallback := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc1123z", "Mon, 03 Aug 2026 14:30:00 -0400", time.Date(2026, 8, 3, 18, 30, 0, 0, time.UTC)},
		{"rfc3339", "2026-08-03T14:30:00Z", time.Date(2026, 8, 3, 14, 30, 0, 0, time.UTC)},
		{"date only", "2026-08-03", time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)},
		{"garbage falls back", "yesterday-ish", fallback},
		{"empty falls back", "", fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.input, fallback)
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractTickers(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		initial []string
		want    []string
	}{
		{"plain symbol", "AAPL surges on earnings", nil, []string{"AAPL"}},
		{"dollar form", "Why $NVDA keeps climbing", nil, []string{"NVDA"}},
		{"paren form", "Tesla (TSLA) recalls vehicles", nil, []string{"TSLA"}},
		{"ambiguous word skipped", "ALL eyes on the Fed", nil, nil},
		{"ambiguous explicit kept", "$F jumps after earnings", nil, []string{"F"}},
		{"unknown symbol dropped", "ZZZZZ is not a ticker", nil, nil},
		{"initial union", "Chipmaker rallies", []string{"amd"}, []string{"AMD"}},
		{"dedup preserves order", "MSFT and AAPL, then MSFT again", nil, []string{"MSFT", "AAPL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTickers(tt.text, tt.initial)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractTickers(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ExtractTickers(%q)[%d] = %q, want %q", tt.text, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCleanQualityAndLowInfo(t *testing.T) {
	registry := feeds.NewRegistry(nil)
	cleaner := NewCleaner(registry)

	longBody := strings.Repeat("Apple reported strong quarterly numbers. ", 10)
	tests := []struct {
		name        string
		raw         feeds.RawArticle
		wantQuality float64
		wantLowInfo bool
	}{
		{
			"wire source full article",
			feeds.RawArticle{Source: "Reuters Business", Title: "Apple reports record quarterly revenue", RawBody: longBody},
			1.0, false,
		},
		{
			"short title is low info",
			feeds.RawArticle{Source: "Yahoo Finance", Title: "Apple news", RawBody: longBody},
			0.80, true,
		},
		{
			"thin body is low info",
			feeds.RawArticle{Source: "Yahoo Finance", Title: "Apple reports record quarterly revenue", RawBody: "Shares moved."},
			0.80, true,
		},
		{
			"boilerplate body is low info",
			feeds.RawArticle{
				Source:  "Yahoo Finance",
				Title:   "Apple reports record quarterly revenue",
				RawBody: strings.Repeat("x", 100) + " click here to read the rest " + strings.Repeat("y", 50),
			},
			0.80, true,
		},
		{
			"unknown source scores zero",
			feeds.RawArticle{Source: "Some Blog", Title: "Apple reports record quarterly revenue", RawBody: longBody},
			0.0, false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleaner.Clean(tt.raw)
			if got.SourceQualityScore != tt.wantQuality {
				t.Errorf("quality = %v, want %v", got.SourceQualityScore, tt.wantQuality)
			}
			if got.IsLowInformation != tt.wantLowInfo {
				t.Errorf("isLowInformation = %v, want %v", got.IsLowInformation, tt.wantLowInfo)
			}
		})
	}
}

func TestCleanDescriptionCountsAsContent(t *testing.T) {
	registry := feeds.NewRegistry(nil)
	cleaner := NewCleaner(registry)

	raw := feeds.RawArticle{
		Source:      "CNBC Markets",
		Title:       "Microsoft announces major cloud expansion in Europe",
		Description: strings.Repeat("Microsoft said it will invest in new data centers. ", 5),
	}
	got := cleaner.Clean(raw)
	if got.IsLowInformation {
		t.Error("article with a substantial description should not be low information")
	}
}

func TestCleanAllDropsNonEnglish(t *testing.T) {
	registry := feeds.NewRegistry(nil)
	cleaner := NewCleaner(registry)

	raws := []feeds.RawArticle{
		{Source: "Reuters Business", Title: "Markets rally as the Fed holds rates steady for now"},
		{Source: "Reuters Business", Title: "株式市場は日銀の決定を受けて大幅に上昇しました本日の取引で"},
	}
	out := cleaner.CleanAll(raws)
	if len(out) != 1 {
		t.Fatalf("CleanAll kept %d articles, want 1", len(out))
	}
	if out[0].Language != "en" {
		t.Errorf("kept article language = %q, want en", out[0].Language)
	}
}

func TestAddTickers(t *testing.T) {
	if KnownTicker("QQXX") {
		t.Fatal("QQXX should not be known before AddTickers")
	}
	AddTickers([]string{" qqxx ", "TOOLONGG", ""})
	if !KnownTicker("QQXX") {
		t.Error("QQXX should be known after AddTickers")
	}
	if KnownTicker("TOOLONGG") {
		t.Error("symbols longer than 5 chars must be rejected")
	}
}
