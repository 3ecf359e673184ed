// Package briefing turns scored clusters into a bounded, themed feed
// with human-readable hook, context, and why-it-matters text. The LLM
// writes the prose when available; deterministic templates otherwise.
package briefing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/abelbrown/marketbrief/internal/event"
	"github.com/abelbrown/marketbrief/internal/logging"
	"github.com/abelbrown/marketbrief/internal/scoring"
	"github.com/abelbrown/marketbrief/internal/user"
)

// Theme is one output unit of the feed.
type Theme struct {
	ID                 string
	ThemeName          string
	Clusters           []*scoring.UserEventScore
	Hook               string
	ContextExplanation string
	WhyItMatters       string
}

// maxScore is the ordering key between themes.
func (t *Theme) maxScore() float64 {
	var m float64
	for _, c := range t.Clusters {
		if c.TotalScore > m {
			m = c.TotalScore
		}
	}
	return m
}

// Writer is the LLM capability set the builder uses. Both methods have
// deterministic fallbacks; a nil Writer is fully supported.
type Writer interface {
	// GroupClusters assigns cluster indexes to at most maxThemes named
	// groups. Every index must land in exactly one group.
	GroupClusters(ctx context.Context, headlines []string, maxThemes int) (names []string, groups [][]int, err error)
	// WriteThemeText produces hook, context, and why-it-matters prose.
	// It must never introduce numbers absent from the inputs.
	WriteThemeText(ctx context.Context, themeName string, headlines []string, ownedTickers []string) (hook, contextText, why string, err error)
}

// Builder assembles the themed feed for one user.
type Builder struct {
	brain    Writer
	settings *user.Settings
}

func NewBuilder(brain Writer, settings *user.Settings) *Builder {
	return &Builder{brain: brain, settings: settings}
}

// Build sorts, caps to the mode's K, groups into themes, and writes the
// prose. Output themes are ordered by descending max cluster score.
func (b *Builder) Build(ctx context.Context, scored []*scoring.UserEventScore) []*Theme {
	if len(scored) == 0 {
		return nil
	}

	sorted := make([]*scoring.UserEventScore, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Breakdown.RecencyScore != b.Breakdown.RecencyScore {
			return a.Breakdown.RecencyScore > b.Breakdown.RecencyScore
		}
		return a.Cluster.Canonical().Article.SourceQualityScore > b.Cluster.Canonical().Article.SourceQualityScore
	})

	k := b.settings.Mode.FeedCap()
	if len(sorted) > k {
		sorted = sorted[:k]
	}

	themes := b.groupIntoThemes(ctx, sorted)
	for _, t := range themes {
		b.writeText(ctx, t)
	}
	sort.SliceStable(themes, func(i, j int) bool {
		return themes[i].maxScore() > themes[j].maxScore()
	})
	return themes
}

// groupIntoThemes asks the LLM for a grouping of at most K themes and
// validates it; any defect falls back to deterministic grouping.
func (b *Builder) groupIntoThemes(ctx context.Context, scored []*scoring.UserEventScore) []*Theme {
	if b.brain != nil {
		headlines := make([]string, len(scored))
		for i, s := range scored {
			headlines[i] = s.Cluster.Canonical().Article.CleanTitle
		}
		names, groups, err := b.brain.GroupClusters(ctx, headlines, b.settings.Mode.FeedCap())
		if err == nil {
			if themes, ok := assembleGroups(scored, names, groups); ok {
				return themes
			}
			logging.Debug("llm grouping invalid, using fallback")
		} else {
			logging.Debug("llm grouping failed, using fallback", "error", err)
		}
	}
	return fallbackGrouping(scored)
}

// assembleGroups validates the LLM grouping: each cluster index assigned
// exactly once, no empty groups.
func assembleGroups(scored []*scoring.UserEventScore, names []string, groups [][]int) ([]*Theme, bool) {
	if len(names) != len(groups) || len(groups) == 0 {
		return nil, false
	}
	seen := make(map[int]bool)
	var themes []*Theme
	for gi, group := range groups {
		if len(group) == 0 {
			return nil, false
		}
		t := &Theme{ID: uuid.NewString(), ThemeName: strings.TrimSpace(names[gi])}
		if t.ThemeName == "" {
			return nil, false
		}
		for _, idx := range group {
			if idx < 0 || idx >= len(scored) || seen[idx] {
				return nil, false
			}
			seen[idx] = true
			t.Clusters = append(t.Clusters, scored[idx])
		}
		themes = append(themes, t)
	}
	if len(seen) != len(scored) {
		return nil, false
	}
	return themes, true
}

// fallbackGrouping groups by dominant ticker, then by event type for
// clusters without one.
func fallbackGrouping(scored []*scoring.UserEventScore) []*Theme {
	byKey := make(map[string]*Theme)
	var order []string
	for _, s := range scored {
		key := s.Cluster.DominantTicker
		name := key
		if key == "" {
			key = "type:" + string(s.Cluster.EventType)
			name = themeNameForType(s.Cluster.EventType)
		} else {
			name = key + " news"
		}
		t, ok := byKey[key]
		if !ok {
			t = &Theme{ID: uuid.NewString(), ThemeName: name}
			byKey[key] = t
			order = append(order, key)
		}
		t.Clusters = append(t.Clusters, s)
	}
	themes := make([]*Theme, 0, len(order))
	for _, key := range order {
		themes = append(themes, byKey[key])
	}
	return themes
}

var typeThemeNames = map[event.Type]string{
	event.Earnings:          "Earnings season",
	event.Guidance:          "Guidance updates",
	event.ProductLaunch:     "Product news",
	event.MergerAcquisition: "Deals and mergers",
	event.Regulation:        "Regulatory watch",
	event.Litigation:        "Legal battles",
	event.AnalystNote:       "Analyst calls",
	event.Macro:             "The big picture",
	event.SocialSentiment:   "Retail buzz",
	event.Rumor:             "Rumor mill",
	event.Fluff:             "Also in the news",
}

func themeNameForType(t event.Type) string {
	if name, ok := typeThemeNames[t]; ok {
		return name
	}
	return "Market watch"
}

// writeText fills the prose fields, preferring the LLM but rejecting any
// output that invents numbers.
func (b *Builder) writeText(ctx context.Context, t *Theme) {
	headlines := make([]string, 0, len(t.Clusters))
	for _, c := range t.Clusters {
		headlines = append(headlines, c.Cluster.Canonical().Article.CleanTitle)
	}
	owned := b.ownedTickersIn(t)

	if b.brain != nil {
		hook, contextText, why, err := b.brain.WriteThemeText(ctx, t.ThemeName, headlines, owned)
		if err == nil {
			inputs := strings.Join(headlines, " ") + " " + t.ThemeName
			if DigitsSubset(hook+" "+contextText+" "+why, inputs) {
				t.Hook, t.ContextExplanation, t.WhyItMatters = hook, contextText, why
				return
			}
			logging.Warn("theme text invented numbers, using template", "theme", t.ThemeName)
		} else {
			logging.Debug("theme text failed, using template", "theme", t.ThemeName, "error", err)
		}
	}
	b.templateText(t, headlines, owned)
}

// templateText is the deterministic fallback built from the canonical
// title and the user's owned tickers.
func (b *Builder) templateText(t *Theme, headlines, owned []string) {
	lead := headlines[0]
	t.Hook = lead
	if len(headlines) > 1 {
		t.ContextExplanation = fmt.Sprintf("%s Related coverage: %s.", lead, strings.Join(headlines[1:], "; "))
	} else {
		t.ContextExplanation = lead
	}
	if len(owned) > 0 {
		t.WhyItMatters = fmt.Sprintf("This involves %s, which you hold.", strings.Join(owned, ", "))
	} else {
		t.WhyItMatters = "This is moving the broader market today."
	}
}

func (b *Builder) ownedTickersIn(t *Theme) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range t.Clusters {
		for _, ev := range c.Cluster.Events {
			for _, sym := range ev.Article.CleanTickers {
				if b.settings.Owns(sym) && !seen[sym] {
					seen[sym] = true
					out = append(out, sym)
				}
			}
		}
		if sym := c.Cluster.DominantTicker; sym != "" && b.settings.Owns(sym) && !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

// DigitsSubset reports whether every digit run in output also appears in
// inputs. Guards against the LLM fabricating figures.
func DigitsSubset(output, inputs string) bool {
	outRuns := digitRuns(output)
	if len(outRuns) == 0 {
		return true
	}
	inRuns := make(map[string]bool)
	for _, r := range digitRuns(inputs) {
		inRuns[r] = true
	}
	for _, r := range outRuns {
		if !inRuns[r] {
			return false
		}
	}
	return true
}

func digitRuns(s string) []string {
	var runs []string
	var cur strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			runs = append(runs, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		runs = append(runs, cur.String())
	}
	return runs
}
