// monitord is the always-on companion service: the HTTP API plus the
// scheduled price, news, social, and cleanup tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/abelbrown/marketbrief/internal/brain"
	"github.com/abelbrown/marketbrief/internal/clean"
	"github.com/abelbrown/marketbrief/internal/config"
	"github.com/abelbrown/marketbrief/internal/feeds"
	"github.com/abelbrown/marketbrief/internal/logging"
	"github.com/abelbrown/marketbrief/internal/monitor"
	"github.com/abelbrown/marketbrief/internal/server"
	"github.com/abelbrown/marketbrief/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create data dir:", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.DataDir); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logging:", err)
		os.Exit(1)
	}
	defer logging.Close()

	clean.AddTickers(cfg.ExtraTickers)

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logging.Fatal("failed to open store", "error", err)
	}
	defer st.Close()

	manager := brain.NewProviderManager()
	manager.AddProvider(brain.NewClaudeProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel))
	manager.AddProvider(brain.NewOllamaProvider(cfg.OllamaEndpoint, cfg.OllamaModel))
	manager.SetPreferred("claude")

	var writer monitor.AlertWriter
	br := brain.NewBrain(manager)
	if br.Available() {
		writer = br
		logging.Info("alert prose via LLM", "providers", manager.ListAvailable())
	} else {
		logging.Info("no LLM provider configured, using alert templates")
	}

	registry := feeds.NewRegistry(feeds.SourcesByName(cfg.SourceOverrides))
	mon := monitor.New(st, cfg, registry, writer)
	if err := mon.Start(cfg.MonitorSchedule); err != nil {
		logging.Fatal("failed to start monitor", "error", err)
	}

	srv := server.New(st, cfg.Port)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logging.Error("http server failed", "error", err)
		}
	}

	mon.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("shutdown error", "error", err)
	}
}
