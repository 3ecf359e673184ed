package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/abelbrown/marketbrief/internal/alert"
	"github.com/abelbrown/marketbrief/internal/briefing"
	"github.com/abelbrown/marketbrief/internal/clean"
	"github.com/abelbrown/marketbrief/internal/logging"
	"github.com/abelbrown/marketbrief/internal/store"
	"github.com/abelbrown/marketbrief/internal/user"
)

const (
	priceWindow   = 15 * time.Minute
	priceMinAge   = 10 * time.Minute
	newsWindow    = 24 * time.Hour
	newsPerSymbol = 3
	retentionDays = 7
)

// RunPriceCheck polls quotes for every held symbol, appends price points,
// and raises threshold alerts on the 15-minute change.
func (m *Monitor) RunPriceCheck(ctx context.Context) {
	if !m.priceRunning.CompareAndSwap(false, true) {
		logging.Debug("price check already running, skipping")
		return
	}
	defer m.priceRunning.Store(false)

	users, err := m.monitoredUsers()
	if err != nil {
		logging.Error("price check: failed to load users", "error", err)
		return
	}
	symbols, err := m.store.AllSymbols()
	if err != nil {
		logging.Error("price check: failed to load symbols", "error", err)
		return
	}
	logging.Info("price check starting", "symbols", len(symbols), "users", len(users))

	for _, sym := range symbols {
		if ctx.Err() != nil {
			return
		}
		quote, err := m.quotes.Fetch(ctx, sym)
		if err != nil {
			logging.Warn("quote fetch failed", "symbol", sym, "error", err)
			continue
		}
		if err := m.store.InsertPricePoint(store.PricePoint{
			Symbol:        sym,
			Price:         quote.Price,
			ChangePercent: quote.ChangePercent,
			Volume:        quote.Volume,
			Timestamp:     quote.Timestamp,
		}); err != nil {
			logging.Warn("failed to store price point", "symbol", sym, "error", err)
			continue
		}

		change, ok := m.fifteenMinuteChange(sym)
		if !ok {
			continue
		}

		for _, u := range users {
			if !u.Owns(sym) {
				continue
			}
			m.priceCandidate(ctx, u, sym, change)
		}
	}
	m.flushDigests(ctx, users)
}

// fifteenMinuteChange computes newest minus oldest over the last window.
// Requires a point at least priceMinAge old so a cold start stays quiet.
func (m *Monitor) fifteenMinuteChange(symbol string) (float64, bool) {
	points, err := m.store.PricePointsSince(symbol, time.Now().Add(-priceWindow))
	if err != nil || len(points) < 2 {
		return 0, false
	}
	oldest, newest := points[0], points[len(points)-1]
	if time.Since(oldest.Timestamp) < priceMinAge {
		return 0, false
	}
	if oldest.Price == 0 {
		return 0, false
	}
	return (newest.Price - oldest.Price) / oldest.Price * 100, true
}

func (m *Monitor) priceCandidate(ctx context.Context, u *user.Settings, symbol string, change float64) {
	cand := alert.NewCandidate(u.UserID, "price", symbol)
	threshold := u.Sensitivity.PriceThreshold()
	if math.Abs(change) < threshold {
		cand.Drop(alert.ReasonBelowThreshold)
		return
	}
	cand.Advance(alert.StageThresholded)

	arrow := "↑"
	if change < 0 {
		arrow = "↓"
	}
	cand.Title = fmt.Sprintf("%s %s %.1f%%", symbol, arrow, math.Abs(change))
	direction := "up"
	if change < 0 {
		direction = "down"
	}
	facts := fmt.Sprintf("%s moved %s %.1f%% in the last 15 minutes.", symbol, direction, math.Abs(change))
	cand.Message = facts
	cand.ContentHash = alert.PriceHash(symbol, time.Now())
	cand.Metadata = map[string]interface{}{"changePercent": change}

	m.finalize(ctx, cand, u, facts, map[string]interface{}{
		"alert_type":    "price",
		"symbol":        symbol,
		"changePercent": change,
	})
}

// RunNewsCheck searches last-24h headlines per held symbol, caches them,
// and raises tier-gated alerts for fresh items.
func (m *Monitor) RunNewsCheck(ctx context.Context) {
	if !m.newsRunning.CompareAndSwap(false, true) {
		logging.Debug("news check already running, skipping")
		return
	}
	defer m.newsRunning.Store(false)

	users, err := m.monitoredUsers()
	if err != nil {
		logging.Error("news check: failed to load users", "error", err)
		return
	}
	symbols, err := m.store.AllSymbols()
	if err != nil {
		logging.Error("news check: failed to load symbols", "error", err)
		return
	}
	logging.Info("news check starting", "symbols", len(symbols))

	for _, sym := range symbols {
		if ctx.Err() != nil {
			return
		}
		arts := m.fetcher.SearchSymbol(ctx, sym)
		fresh := 0
		for _, raw := range arts {
			published := clean.ParseDate(raw.PublishedAt, raw.FetchTime)
			if time.Since(published) > newsWindow {
				continue
			}
			tier := m.registry.NewsTier(raw.Source)
			item := store.NewsItem{
				Symbol:      sym,
				Title:       clean.StripHTML(raw.Title),
				Source:      raw.Source,
				SourceTier:  tier,
				URL:         raw.URL,
				PublishedAt: published,
				ContentHash: alert.NewsHash(raw.URL),
			}
			if err := m.store.InsertNewsItem(item); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					continue // already seen, never re-alert
				}
				logging.Warn("failed to cache news item", "symbol", sym, "error", err)
				continue
			}
			if fresh >= newsPerSymbol {
				continue
			}
			fresh++

			for _, u := range users {
				if !u.Owns(sym) {
					continue
				}
				m.newsCandidate(ctx, u, sym, item)
			}
		}
	}
	m.flushDigests(ctx, users)
}

func (m *Monitor) newsCandidate(ctx context.Context, u *user.Settings, symbol string, item store.NewsItem) {
	cand := alert.NewCandidate(u.UserID, "news", symbol)
	if item.SourceTier == 0 || !u.Sensitivity.AllowsNewsTier(item.SourceTier) {
		cand.Drop(alert.ReasonTierTooLow)
		return
	}
	cand.Advance(alert.StageThresholded)

	cand.Title = fmt.Sprintf("%s news", symbol)
	facts := fmt.Sprintf("New coverage of %s from %s: %s", symbol, item.Source, item.Title)
	cand.Message = item.Title
	cand.URL = item.URL
	cand.ContentHash = item.ContentHash
	cand.Metadata = map[string]interface{}{"source": item.Source, "tier": item.SourceTier}

	m.finalize(ctx, cand, u, facts, map[string]interface{}{
		"alert_type": "news",
		"symbol":     symbol,
		"url":        item.URL,
	})
}

// RunSocialCheck counts forum mentions per symbol, compares against the
// rolling 7-day baseline, and raises spike alerts.
func (m *Monitor) RunSocialCheck(ctx context.Context) {
	if !m.socialRunning.CompareAndSwap(false, true) {
		logging.Debug("social check already running, skipping")
		return
	}
	defer m.socialRunning.Store(false)

	users, err := m.monitoredUsers()
	if err != nil {
		logging.Error("social check: failed to load users", "error", err)
		return
	}
	symbols, err := m.store.AllSymbols()
	if err != nil {
		logging.Error("social check: failed to load symbols", "error", err)
		return
	}
	logging.Info("social check starting", "symbols", len(symbols), "forums", len(m.social.Forums()))

	now := time.Now()
	for _, sym := range symbols {
		if ctx.Err() != nil {
			return
		}
		baseline, err := m.store.SocialBaseline(sym)
		if err != nil {
			logging.Warn("failed to load social baseline", "symbol", sym, "error", err)
			continue
		}

		var peakSpike float64
		var peakCount int
		for _, forum := range m.social.Forums() {
			count, err := m.social.CountMentions(ctx, forum, sym)
			if err != nil {
				logging.Warn("mention count failed", "forum", forum, "symbol", sym, "error", err)
				continue
			}
			if err := m.store.InsertSocialMention(store.SocialMention{
				Symbol:       sym,
				MentionCount: count,
				Subreddit:    forum,
				PeriodStart:  now.Add(-time.Hour),
				PeriodEnd:    now,
				Baseline7Day: baseline,
			}); err != nil {
				logging.Warn("failed to store social mention", "symbol", sym, "error", err)
			}

			// Baseline zero with activity counts as a spike of the raw count.
			spike := float64(count)
			if baseline > 0 {
				spike = float64(count) / baseline
			}
			if spike > peakSpike {
				peakSpike, peakCount = spike, count
			}
		}

		if peakCount == 0 {
			continue
		}
		for _, u := range users {
			if !u.Owns(sym) {
				continue
			}
			m.socialCandidate(ctx, u, sym, peakSpike, peakCount)
		}
	}
	m.flushDigests(ctx, users)
}

func (m *Monitor) socialCandidate(ctx context.Context, u *user.Settings, symbol string, spike float64, count int) {
	cand := alert.NewCandidate(u.UserID, "social", symbol)
	if spike < u.Sensitivity.SocialSpikeThreshold() {
		cand.Drop(alert.ReasonBelowThreshold)
		return
	}
	cand.Advance(alert.StageThresholded)

	cand.Title = fmt.Sprintf("%s is trending", symbol)
	facts := fmt.Sprintf("%s mentions are at %.1fx their usual level (%d posts in the last hour).", symbol, spike, count)
	cand.Message = facts
	cand.ContentHash = alert.SocialHash(symbol, time.Now())
	cand.Metadata = map[string]interface{}{"spikeMultiple": spike, "mentionCount": count}

	m.finalize(ctx, cand, u, facts, map[string]interface{}{
		"alert_type":    "social",
		"symbol":        symbol,
		"spikeMultiple": spike,
	})
}

// RunCleanup deletes price points older than the retention window.
func (m *Monitor) RunCleanup(ctx context.Context) {
	if !m.cleanupRunning.CompareAndSwap(false, true) {
		return
	}
	defer m.cleanupRunning.Store(false)

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := m.store.DeletePricePointsBefore(cutoff)
	if err != nil {
		logging.Error("cleanup failed", "error", err)
		return
	}
	logging.Info("cleanup complete", "price_points_removed", removed)
}

// finalize drives a thresholded candidate through dedup, budget,
// formatting, persistence, and delivery.
func (m *Monitor) finalize(ctx context.Context, cand *alert.Candidate, u *user.Settings, facts string, pushData map[string]interface{}) {
	// Dedup
	exists, err := m.store.HasAlertHash(cand.ContentHash)
	if err != nil {
		logging.Warn("dedup lookup failed", "error", err)
		return
	}
	if exists {
		cand.Drop(alert.ReasonDuplicate)
		return
	}
	cand.Advance(alert.StageDeduped)

	// Budget
	count, err := m.store.CountAlertsToday(u.UserID)
	if err != nil {
		logging.Warn("budget lookup failed", "user", u.UserID, "error", err)
		return
	}
	if count >= u.MaxDailyPushes {
		m.digester.Add(u.UserID, cand)
		cand.Drop(alert.ReasonBudgetExhausted)
		return
	}
	cand.Advance(alert.StageBudgeted)

	// Format: calm prose from the LLM, template otherwise. Output that
	// invents numbers is discarded in favor of the template.
	if m.writer != nil {
		if text, err := m.writer.WriteAlertText(ctx, facts); err == nil && text != "" {
			if briefing.DigitsSubset(text, facts+" "+cand.Title) {
				cand.Message = text
			} else {
				logging.Warn("alert text invented numbers, using template", "symbol", cand.Symbol)
			}
		}
	}
	cand.Advance(alert.StageFormatted)

	if u.PushToken == "" && !m.pusher.MockMode() {
		cand.Drop(alert.ReasonNoPushToken)
		return
	}

	// Persist first: the unique hash makes concurrent writers converge
	// to one delivered alert.
	if _, err := m.store.InsertAlert(store.AlertLog{
		UserID:      cand.UserID,
		AlertType:   cand.AlertType,
		Symbol:      cand.Symbol,
		ContentHash: cand.ContentHash,
		Title:       cand.Title,
		Message:     cand.Message,
		URL:         cand.URL,
		Metadata:    cand.Metadata,
	}); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			cand.Drop(alert.ReasonDuplicate)
			return
		}
		logging.Error("failed to log alert", "user", u.UserID, "error", err)
		return
	}

	if err := m.pusher.Send(ctx, u.PushToken, alert.PushPayload{
		Title: cand.Title,
		Body:  cand.Message,
		Data:  pushData,
	}); err != nil {
		cand.Drop(alert.ReasonDeliveryFailed)
		logging.Error("push delivery failed", "user", u.UserID, "error", err)
		return
	}
	cand.Advance(alert.StageDelivered)
	logging.Info("alert delivered", "user", u.UserID, "type", cand.AlertType, "symbol", cand.Symbol)
}

// flushDigests emits at most one digest per user per day summarising
// budget-suppressed alerts.
func (m *Monitor) flushDigests(ctx context.Context, users []*user.Settings) {
	for _, u := range users {
		if m.digester.Pending(u.UserID) == 0 {
			continue
		}
		hash := alert.DigestHash(u.UserID, time.Now())
		if exists, err := m.store.HasAlertHash(hash); err != nil || exists {
			continue // today's digest already went out
		}
		message := m.digester.Flush(u.UserID)
		if message == "" {
			continue
		}
		if _, err := m.store.InsertAlert(store.AlertLog{
			UserID:      u.UserID,
			AlertType:   "digest",
			ContentHash: hash,
			Title:       "Your daily catch-up",
			Message:     message,
		}); err != nil {
			if !errors.Is(err, store.ErrDuplicate) {
				logging.Error("failed to log digest", "user", u.UserID, "error", err)
			}
			continue
		}
		if u.PushToken == "" && !m.pusher.MockMode() {
			continue
		}
		if err := m.pusher.Send(ctx, u.PushToken, alert.PushPayload{
			Title: "Your daily catch-up",
			Body:  message,
			Data:  map[string]interface{}{"alert_type": "digest"},
		}); err != nil {
			logging.Error("digest delivery failed", "user", u.UserID, "error", err)
		}
	}
	if time.Now().Weekday() == time.Sunday {
		m.flushWeeklySummaries(ctx, users)
	}
}

// flushWeeklySummaries sends opted-in users one roll-up per ISO week
// counting the week's delivered alerts. Rides the digest alert type so
// it never consumes push budget.
func (m *Monitor) flushWeeklySummaries(ctx context.Context, users []*user.Settings) {
	now := time.Now()
	for _, u := range users {
		if !u.WeeklySummary {
			continue
		}
		hash := alert.WeeklyHash(u.UserID, now)
		if exists, err := m.store.HasAlertHash(hash); err != nil || exists {
			continue // this week's summary already went out
		}
		n, err := m.store.CountAlertsSince(u.UserID, now.AddDate(0, 0, -7))
		if err != nil {
			logging.Warn("weekly summary count failed", "user", u.UserID, "error", err)
			continue
		}
		message := "A quiet week: no alerts for your holdings."
		if n > 0 {
			noun := "alerts"
			if n == 1 {
				noun = "alert"
			}
			message = fmt.Sprintf("Your week in review: %d %s across your holdings.", n, noun)
		}
		if _, err := m.store.InsertAlert(store.AlertLog{
			UserID:      u.UserID,
			AlertType:   "digest",
			ContentHash: hash,
			Title:       "Your week in review",
			Message:     message,
		}); err != nil {
			if !errors.Is(err, store.ErrDuplicate) {
				logging.Error("failed to log weekly summary", "user", u.UserID, "error", err)
			}
			continue
		}
		if u.PushToken == "" && !m.pusher.MockMode() {
			continue
		}
		if err := m.pusher.Send(ctx, u.PushToken, alert.PushPayload{
			Title: "Your week in review",
			Body:  message,
			Data:  map[string]interface{}{"alert_type": "digest"},
		}); err != nil {
			logging.Error("weekly summary delivery failed", "user", u.UserID, "error", err)
		}
	}
}
