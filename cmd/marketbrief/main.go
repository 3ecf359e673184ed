// marketbrief runs one pipeline pass for a user and prints the themed
// briefing. Users and holdings come from the shared database; flags can
// override the portfolio for ad-hoc runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/abelbrown/marketbrief/internal/brain"
	"github.com/abelbrown/marketbrief/internal/clean"
	"github.com/abelbrown/marketbrief/internal/config"
	"github.com/abelbrown/marketbrief/internal/feeds"
	"github.com/abelbrown/marketbrief/internal/fetch"
	"github.com/abelbrown/marketbrief/internal/logging"
	"github.com/abelbrown/marketbrief/internal/pipeline"
	"github.com/abelbrown/marketbrief/internal/store"
	"github.com/abelbrown/marketbrief/internal/user"
)

func main() {
	userID := flag.String("user", "", "user id to brief (required unless -holdings is set)")
	holdingsFlag := flag.String("holdings", "", "comma-separated symbols, overrides the stored portfolio")
	mode := flag.String("mode", "", "override mode: beginner, smart, or focus")
	jsonOut := flag.Bool("json", false, "emit the feed as JSON")
	noLLM := flag.Bool("no-llm", false, "disable LLM collaborators, rule fallbacks only")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	if err := logging.Init(cfg.DataDir); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logging:", err)
		os.Exit(1)
	}
	defer logging.Close()

	clean.AddTickers(cfg.ExtraTickers)

	settings, err := loadSettings(cfg, *userID, *holdingsFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *mode != "" {
		settings.Mode = user.Mode(*mode)
	}

	var br *brain.Brain
	if !*noLLM {
		manager := brain.NewProviderManager()
		manager.AddProvider(brain.NewClaudeProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel))
		manager.AddProvider(brain.NewOllamaProvider(cfg.OllamaEndpoint, cfg.OllamaModel))
		manager.SetPreferred("claude")
		br = brain.NewBrain(manager)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := feeds.NewRegistry(feeds.SourcesByName(cfg.SourceOverrides))
	p := pipeline.New(registry, fetch.NewFetcher(registry, cfg.NewsAPIKey), br)

	themes, diag, err := p.Run(ctx, settings)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pipeline failed:", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(themes)
		return
	}

	if len(themes) == 0 {
		fmt.Println("Nothing newsworthy for you right now.")
		return
	}
	for i, t := range themes {
		fmt.Printf("%d. %s\n", i+1, t.ThemeName)
		fmt.Printf("   %s\n", t.Hook)
		if t.WhyItMatters != "" {
			fmt.Printf("   Why it matters: %s\n", t.WhyItMatters)
		}
		for _, c := range t.Clusters {
			art := c.Cluster.Canonical().Article
			fmt.Printf("   - [%.2f] %s (%s)\n", c.TotalScore, art.CleanTitle, art.Source)
		}
		fmt.Println()
	}
	fmt.Printf("(%d articles considered, %d clusters, %s)\n",
		diag.RawArticles, diag.Clusters, diag.Duration.Round(1e8))
}

// loadSettings resolves the user: a stored profile, or an ad-hoc one
// built from the -holdings flag.
func loadSettings(cfg *config.Config, userID, holdingsFlag string) (*user.Settings, error) {
	if holdingsFlag != "" {
		settings := user.DefaultSettings("cli")
		for _, sym := range strings.Split(holdingsFlag, ",") {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				settings.Holdings = append(settings.Holdings, user.Holding{Symbol: sym})
			}
		}
		return settings, nil
	}
	if userID == "" {
		return nil, fmt.Errorf("either -user or -holdings is required")
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	row, err := st.GetUser(userID)
	if err != nil {
		return nil, err
	}
	holdings, err := st.Holdings(userID)
	if err != nil {
		return nil, err
	}

	settings := &user.Settings{
		UserID:         row.UserID,
		UserName:       row.Name,
		Frequency:      user.Frequency(row.Frequency),
		Sensitivity:    user.Sensitivity(row.Sensitivity),
		WeeklySummary:  row.WeeklySummary,
		Mode:           user.Mode(row.Mode),
		MaxDailyPushes: row.MaxDailyPushes,
	}
	for _, h := range holdings {
		settings.Holdings = append(settings.Holdings, user.Holding{
			Symbol:     h.Symbol,
			Name:       h.Name,
			Allocation: h.Allocation,
			Note:       h.Note,
		})
	}
	return settings, nil
}
