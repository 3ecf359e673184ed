package event

import (
	"context"
	"strings"

	"github.com/abelbrown/marketbrief/internal/clean"
	"github.com/abelbrown/marketbrief/internal/logging"
)

// labelKeywords drive the always-on rule pass for impact labels.
var labelKeywords = map[ImpactLabel][]string{
	AllTimeHigh:            {"all-time high", "all time high", "record high", "record close", "highest ever", "new high"},
	AllTimeLow:             {"all-time low", "all time low", "record low", "lowest ever", "new low", "52-week low"},
	PriceAffectingAbnormal: {"halted", "trading halt", "circuit breaker", "abnormal", "unusual volume", "unusual activity", "flash crash"},
	BigMoves:               {"surges", "surge", "plunges", "plunge", "soars", "soar", "tumbles", "tumble", "jumps", "sinks", "rallies", "crashes", "spikes", "slides"},
	MostImpactful:          {"historic", "unprecedented", "biggest", "largest", "massive", "landmark", "major blow", "game-changing", "shakes markets"},
	Surprising:             {"unexpected", "surprise", "surprising", "shocks", "stuns", "out of nowhere", "contrary to expectations", "beats expectations"},
	Drama:                  {"feud", "clash", "battle", "scandal", "controversy", "fires back", "slams", "blasts", "lashes out", "resigns abruptly", "ousted"},
	StockPopularity:        {"most traded", "most popular", "heavily traded", "retail favorite", "most watched", "trending stock", "most mentioned"},
}

// labelRuleOrder keeps the rule pass deterministic.
var labelRuleOrder = []ImpactLabel{
	AllTimeHigh, AllTimeLow, PriceAffectingAbnormal, BigMoves,
	MostImpactful, Surprising, Drama, StockPopularity,
}

// labelImpacts runs the keyword pass and unions the LLM's labels when a
// brain is configured. The rule pass always runs so an LLM outage never
// strips labels entirely.
func (e *Engine) labelImpacts(ctx context.Context, art clean.CleanedArticle) []ImpactLabel {
	text := strings.ToLower(art.CleanTitle + " " + art.CleanDescription + " " + art.CleanBody)

	seen := make(map[ImpactLabel]bool)
	var out []ImpactLabel
	for _, label := range labelRuleOrder {
		for _, kw := range labelKeywords[label] {
			if strings.Contains(text, kw) {
				seen[label] = true
				out = append(out, label)
				break
			}
		}
	}

	if e.brain != nil {
		tokens, err := e.brain.LabelImpacts(ctx, art.CleanTitle, art.CleanDescription)
		if err != nil {
			logging.Debug("llm labeling failed, keeping rule labels", "article", art.ID, "error", err)
			return out
		}
		for _, tok := range tokens {
			label := ImpactLabel(strings.TrimSpace(tok))
			if _, known := labelWeights[label]; !known || seen[label] {
				continue
			}
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}
