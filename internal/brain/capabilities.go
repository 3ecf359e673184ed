package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/marketbrief/internal/logging"
)

// Brain exposes the capability set the pipeline and monitor consume:
// event-type classification, impact labeling, same-event checks, theme
// grouping and prose, and alert text. All calls share one token bucket
// so pacing holds across call sites.
type Brain struct {
	manager *ProviderManager
	limiter *rate.Limiter
}

// NewBrain wraps a provider manager. Calls are paced at roughly one per
// 100 ms to stay under provider RPM limits.
func NewBrain(manager *ProviderManager) *Brain {
	return &Brain{
		manager: manager,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

// Available reports whether any provider is ready.
func (b *Brain) Available() bool {
	return b.manager.GetAvailable() != nil
}

// generate waits for the pacing token, then runs the request against the
// first available provider.
func (b *Brain) generate(ctx context.Context, req Request) (string, error) {
	p := b.manager.GetAvailable()
	if p == nil {
		return "", fmt.Errorf("no AI provider available")
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

const classifySystem = `You classify financial news into exactly one category.
Respond with ONLY one token from this list, nothing else:
earnings guidance productLaunch mergerAcquisition regulation litigation analystNote macro socialSentiment rumor fluff`

// ClassifyEventType returns a single event-type token for an article.
func (b *Brain) ClassifyEventType(ctx context.Context, title, description string) (string, error) {
	out, err := b.generate(ctx, Request{
		SystemPrompt: classifySystem,
		UserPrompt:   fmt.Sprintf("Title: %s\nDescription: %s", title, description),
		MaxTokens:    16,
	})
	if err != nil {
		return "", err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty classification response")
	}
	return fields[0], nil
}

const labelSystem = `You tag financial news with market-impact labels.
Valid labels: mostImpactful surprising drama priceAffectingAbnormal bigMoves allTimeHigh allTimeLow stockPopularity
Respond with a comma-separated subset of those labels, or NONE.`

// LabelImpacts returns zero or more impact-label tokens.
func (b *Brain) LabelImpacts(ctx context.Context, title, description string) ([]string, error) {
	out, err := b.generate(ctx, Request{
		SystemPrompt: labelSystem,
		UserPrompt:   fmt.Sprintf("Title: %s\nDescription: %s", title, description),
		MaxTokens:    64,
	})
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(out, "NONE") {
		return nil, nil
	}
	var labels []string
	for _, part := range strings.Split(out, ",") {
		if p := strings.TrimSpace(part); p != "" {
			labels = append(labels, p)
		}
	}
	return labels, nil
}

// SameEvent asks whether two headlines describe the same real-world event.
func (b *Brain) SameEvent(ctx context.Context, titleA, titleB string) (bool, error) {
	out, err := b.generate(ctx, Request{
		SystemPrompt: "You compare two financial news headlines. Answer ONLY YES if they describe the SAME underlying event, otherwise ONLY NO.",
		UserPrompt:   fmt.Sprintf("A: %s\nB: %s", titleA, titleB),
		MaxTokens:    8,
	})
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToUpper(out), "YES"), nil
}

const groupSystem = `You group financial news headlines into themes for a briefing.
Respond with ONLY a JSON object of this shape, no prose:
{"themes":[{"name":"short theme name","clusters":[0,2]}]}
Every headline index must appear in exactly one theme.`

// GroupClusters asks for a themed grouping of at most maxThemes groups.
// The caller validates the assignment.
func (b *Brain) GroupClusters(ctx context.Context, headlines []string, maxThemes int) ([]string, [][]int, error) {
	var sb strings.Builder
	for i, h := range headlines {
		fmt.Fprintf(&sb, "%d: %s\n", i, h)
	}
	out, err := b.generate(ctx, Request{
		SystemPrompt: groupSystem,
		UserPrompt:   fmt.Sprintf("Group these into at most %d themes:\n%s", maxThemes, sb.String()),
		MaxTokens:    512,
	})
	if err != nil {
		return nil, nil, err
	}

	var parsed struct {
		Themes []struct {
			Name     string `json:"name"`
			Clusters []int  `json:"clusters"`
		} `json:"themes"`
	}
	if err := json.Unmarshal([]byte(extractJSON(out)), &parsed); err != nil {
		return nil, nil, fmt.Errorf("failed to parse grouping: %w", err)
	}
	if len(parsed.Themes) == 0 || len(parsed.Themes) > maxThemes {
		return nil, nil, fmt.Errorf("grouping returned %d themes, want 1..%d", len(parsed.Themes), maxThemes)
	}

	names := make([]string, len(parsed.Themes))
	groups := make([][]int, len(parsed.Themes))
	for i, t := range parsed.Themes {
		names[i] = t.Name
		groups[i] = t.Clusters
	}
	return names, groups, nil
}

const themeSystem = `You write a calm briefing for a retail investor.
Rules: no panic language. Never invent numbers; only use figures that appear in the provided headlines. The hook is at most 2-3 sentences.
Respond with ONLY a JSON object: {"hook":"...","context":"...","why_it_matters":"..."}`

// WriteThemeText produces the hook, context, and why-it-matters prose
// for one theme.
func (b *Brain) WriteThemeText(ctx context.Context, themeName string, headlines, ownedTickers []string) (string, string, string, error) {
	prompt := fmt.Sprintf("Theme: %s\nHeadlines:\n- %s\n", themeName, strings.Join(headlines, "\n- "))
	if len(ownedTickers) > 0 {
		prompt += fmt.Sprintf("The reader holds: %s\n", strings.Join(ownedTickers, ", "))
	}
	out, err := b.generate(ctx, Request{
		SystemPrompt: themeSystem,
		UserPrompt:   prompt,
		MaxTokens:    512,
	})
	if err != nil {
		return "", "", "", err
	}

	var parsed struct {
		Hook         string `json:"hook"`
		Context      string `json:"context"`
		WhyItMatters string `json:"why_it_matters"`
	}
	if err := json.Unmarshal([]byte(extractJSON(out)), &parsed); err != nil {
		return "", "", "", fmt.Errorf("failed to parse theme text: %w", err)
	}
	if parsed.Hook == "" {
		return "", "", "", fmt.Errorf("theme text missing hook")
	}
	return parsed.Hook, parsed.Context, parsed.WhyItMatters, nil
}

const alertSystem = `You write one short, calm push-notification sentence about a stock alert.
Never emit any number that is not present in the user message. No exclamation marks, no advice.`

// WriteAlertText renders a calm one-sentence alert from the given facts.
func (b *Brain) WriteAlertText(ctx context.Context, facts string) (string, error) {
	out, err := b.generate(ctx, Request{
		SystemPrompt: alertSystem,
		UserPrompt:   facts,
		MaxTokens:    96,
	})
	if err != nil {
		return "", err
	}
	logging.Debug("alert text rendered", "length", len(out))
	return out, nil
}

// extractJSON trims any prose around the first JSON object in a response.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
