// Package pipeline wires the stages end to end: fetch, clean, detect,
// cluster, score, and build. One Run call executes a full pass for one
// user and returns the themed feed plus a diagnostics bundle.
package pipeline

import (
	"context"
	"time"

	"github.com/abelbrown/marketbrief/internal/brain"
	"github.com/abelbrown/marketbrief/internal/briefing"
	"github.com/abelbrown/marketbrief/internal/clean"
	"github.com/abelbrown/marketbrief/internal/cluster"
	"github.com/abelbrown/marketbrief/internal/event"
	"github.com/abelbrown/marketbrief/internal/feeds"
	"github.com/abelbrown/marketbrief/internal/fetch"
	"github.com/abelbrown/marketbrief/internal/logging"
	"github.com/abelbrown/marketbrief/internal/scoring"
	"github.com/abelbrown/marketbrief/internal/user"
)

// defaultFetchLimit bounds how many raw articles a run will process.
const defaultFetchLimit = 150

// Diagnostics summarizes one run for logs and the diagnostics endpoint.
type Diagnostics struct {
	StartedAt         time.Time
	Duration          time.Duration
	RawArticles       int
	CleanedArticles   int
	DetectedEvents    int
	Clusters          int
	DroppedDuplicates int
	ScoredClusters    int
	DropReasons       map[scoring.DropReason]int
	Themes            int
	BrainAvailable    bool
	SourceStates      map[string]fetch.SourceState
}

// Pipeline holds the long-lived collaborators shared across runs.
type Pipeline struct {
	registry *feeds.Registry
	fetcher  *fetch.Fetcher
	brain    *brain.Brain // nil disables all LLM paths

	FetchLimit int
}

// New assembles a pipeline. br may be nil for rule-only operation.
func New(registry *feeds.Registry, fetcher *fetch.Fetcher, br *brain.Brain) *Pipeline {
	return &Pipeline{
		registry:   registry,
		fetcher:    fetcher,
		brain:      br,
		FetchLimit: defaultFetchLimit,
	}
}

// Run executes a full pass for one user. An empty feed with no error
// means nothing newsworthy survived the filters.
func (p *Pipeline) Run(ctx context.Context, settings *user.Settings) ([]*briefing.Theme, *Diagnostics, error) {
	diag := &Diagnostics{
		StartedAt:   time.Now(),
		DropReasons: make(map[scoring.DropReason]int),
	}
	defer func() {
		diag.Duration = time.Since(diag.StartedAt)
		logging.Info("pipeline run complete",
			"user", settings.UserID,
			"raw", diag.RawArticles,
			"clusters", diag.Clusters,
			"themes", diag.Themes,
			"duration", diag.Duration)
	}()

	var detector event.Classifier
	var sameEvent cluster.SameEventChecker
	var writer briefing.Writer
	if p.brain != nil && p.brain.Available() {
		diag.BrainAvailable = true
		detector, sameEvent, writer = p.brain, p.brain, p.brain
	}

	raws, err := p.fetcher.FetchAll(ctx, settings.Symbols(), p.FetchLimit)
	if err != nil {
		return nil, diag, err
	}
	diag.RawArticles = len(raws)
	diag.SourceStates = p.fetcher.States()

	cleaner := clean.NewCleaner(p.registry)
	cleaned := cleaner.CleanAll(raws)
	diag.CleanedArticles = len(cleaned)

	detectEngine := event.NewEngine(detector)
	events := detectEngine.DetectAll(ctx, cleaned)
	diag.DetectedEvents = len(events)
	if ctx.Err() != nil {
		return nil, diag, ctx.Err()
	}

	clusterEngine := cluster.NewEngine(sameEvent, settings.Symbols())
	clusters := clusterEngine.ClusterEvents(ctx, events)
	diag.Clusters = len(clusters)
	diag.DroppedDuplicates = clusterEngine.DroppedDuplicates
	if ctx.Err() != nil {
		return nil, diag, ctx.Err()
	}

	scorer := scoring.NewEngine(settings)
	scored := scorer.ScoreAll(clusters)
	diag.ScoredClusters = len(scored)
	for reason, n := range scorer.Dropped {
		diag.DropReasons[reason] = n
	}

	builder := briefing.NewBuilder(writer, settings)
	themes := builder.Build(ctx, scored)
	diag.Themes = len(themes)
	return themes, diag, nil
}
