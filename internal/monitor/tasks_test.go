package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/marketbrief/internal/alert"
	"github.com/abelbrown/marketbrief/internal/config"
	"github.com/abelbrown/marketbrief/internal/feeds"
	"github.com/abelbrown/marketbrief/internal/store"
	"github.com/abelbrown/marketbrief/internal/user"
)

func newTestMonitor(t *testing.T) (*Monitor, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		MockNotifications: true,
		MaxDailyPushes:    5,
	}
	return New(st, cfg, feeds.NewRegistry(nil), nil), st
}

func curiousUser(userID string, symbols ...string) *user.Settings {
	s := user.DefaultSettings(userID)
	s.PushToken = "SIMULATOR-" + userID
	for _, sym := range symbols {
		s.Holdings = append(s.Holdings, user.Holding{Symbol: sym})
	}
	return s
}

func TestPriceCandidateDeliversAboveThreshold(t *testing.T) {
	m, st := newTestMonitor(t)
	u := curiousUser("u1", "AAPL")

	// Curious threshold is 2%; exactly at the threshold fires.
	m.priceCandidate(context.Background(), u, "AAPL", 2.0)

	alerts, err := st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "price", alerts[0].AlertType)
	assert.Equal(t, "AAPL", alerts[0].Symbol)
	assert.Contains(t, alerts[0].Title, "2.0%")
	assert.Contains(t, alerts[0].Title, "↑")
}

func TestPriceCandidateBelowThresholdDropped(t *testing.T) {
	m, st := newTestMonitor(t)
	u := curiousUser("u1", "AAPL")

	m.priceCandidate(context.Background(), u, "AAPL", 1.9)
	m.priceCandidate(context.Background(), u, "AAPL", -1.5)

	alerts, err := st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestPriceCandidateSameHourIsDuplicate(t *testing.T) {
	m, st := newTestMonitor(t)
	u := curiousUser("u1", "TSLA")

	m.priceCandidate(context.Background(), u, "TSLA", 4.2)
	// Second threshold breach in the same hour bucket dedups away.
	m.priceCandidate(context.Background(), u, "TSLA", 5.0)

	alerts, err := st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestNegativeChangeFormatsDownArrow(t *testing.T) {
	m, st := newTestMonitor(t)
	u := curiousUser("u1", "NVDA")

	m.priceCandidate(context.Background(), u, "NVDA", -3.7)

	alerts, err := st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Title, "↓")
	assert.Contains(t, alerts[0].Title, "3.7%")
}

func TestBudgetOverflowGoesToDigest(t *testing.T) {
	m, st := newTestMonitor(t)
	u := curiousUser("u1", "AAPL")
	u.MaxDailyPushes = 2

	// Fill the day's budget.
	for i := 0; i < 2; i++ {
		_, err := st.InsertAlert(store.AlertLog{
			UserID:      "u1",
			AlertType:   "price",
			ContentHash: fmt.Sprintf("filler-%d", i),
			Title:       "t",
			Message:     "m",
			SentAt:      time.Now(),
		})
		require.NoError(t, err)
	}

	m.priceCandidate(context.Background(), u, "AAPL", 4.0)
	assert.Equal(t, 1, m.digester.Pending("u1"))

	m.flushDigests(context.Background(), []*user.Settings{u})

	alerts, err := st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	var digests int
	for _, a := range alerts {
		if a.AlertType == "digest" {
			digests++
			assert.Contains(t, a.Message, "AAPL")
		}
	}
	assert.Equal(t, 1, digests)

	// The digest never consumes budget.
	n, err := st.CountAlertsToday("u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second flush the same day is a no-op.
	m.digester.Add("u1", &alert.Candidate{Symbol: "TSLA", Title: "TSLA ↑ 3.0%"})
	m.flushDigests(context.Background(), []*user.Settings{u})
	alerts, err = st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 3)
}

func TestWeeklySummaryForOptedInUsers(t *testing.T) {
	m, st := newTestMonitor(t)
	u := curiousUser("u1", "AAPL")
	u.WeeklySummary = true
	other := curiousUser("u2", "AAPL")

	// Two alerts earlier this week, one outside the window.
	for i, sent := range []time.Time{
		time.Now().Add(-48 * time.Hour),
		time.Now().Add(-24 * time.Hour),
		time.Now().Add(-9 * 24 * time.Hour),
	} {
		_, err := st.InsertAlert(store.AlertLog{
			UserID:      "u1",
			AlertType:   "price",
			ContentHash: fmt.Sprintf("wk-%d", i),
			Title:       "t",
			Message:     "m",
			SentAt:      sent,
		})
		require.NoError(t, err)
	}

	m.flushWeeklySummaries(context.Background(), []*user.Settings{u, other})

	alerts, err := st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 4)
	assert.Equal(t, "digest", alerts[0].AlertType)
	assert.Equal(t, "Your week in review", alerts[0].Title)
	assert.Contains(t, alerts[0].Message, "2 alerts")

	// The roll-up never consumes push budget.
	n, err := st.CountAlertsToday("u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Opted-out users get nothing.
	alerts, err = st.RecentAlerts("u2", 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	// A second flush in the same week is a no-op.
	m.flushWeeklySummaries(context.Background(), []*user.Settings{u})
	alerts, err = st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 4)
}

func TestNewsCandidateTierGating(t *testing.T) {
	m, st := newTestMonitor(t)

	item := store.NewsItem{
		Symbol:      "AAPL",
		Title:       "Apple announces a new product line",
		Source:      "CNBC Markets",
		SourceTier:  2,
		URL:         "https://example.com/apple-product",
		ContentHash: alert.NewsHash("https://example.com/apple-product"),
	}

	// Calm allows only tier 1; the tier-2 item is dropped.
	calm := curiousUser("u-calm", "AAPL")
	calm.Sensitivity = user.SensitivityCalm
	m.newsCandidate(context.Background(), calm, "AAPL", item)
	alerts, err := st.RecentAlerts("u-calm", 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	// Curious allows tiers 1 and 2.
	curious := curiousUser("u-curious", "AAPL")
	m.newsCandidate(context.Background(), curious, "AAPL", item)
	alerts, err = st.RecentAlerts("u-curious", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "news", alerts[0].AlertType)
	assert.Equal(t, item.URL, alerts[0].URL)
}

func TestNewsCandidateUnknownSourceDropped(t *testing.T) {
	m, st := newTestMonitor(t)
	u := curiousUser("u1", "AAPL")
	u.Sensitivity = user.SensitivityAlert

	item := store.NewsItem{
		Symbol:      "AAPL",
		Title:       "From a source nobody has heard of",
		SourceTier:  0,
		URL:         "https://sketchy.example/item",
		ContentHash: alert.NewsHash("https://sketchy.example/item"),
	}
	m.newsCandidate(context.Background(), u, "AAPL", item)

	alerts, err := st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestSocialCandidateSpikeThresholds(t *testing.T) {
	m, st := newTestMonitor(t)

	// Curious needs a 2x spike.
	u := curiousUser("u1", "GME")
	m.socialCandidate(context.Background(), u, "GME", 1.9, 40)
	alerts, err := st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	m.socialCandidate(context.Background(), u, "GME", 2.5, 50)
	alerts, err = st.RecentAlerts("u1", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "social", alerts[0].AlertType)
	assert.Contains(t, alerts[0].Message, "2.5x")
}

func TestFifteenMinuteChange(t *testing.T) {
	m, st := newTestMonitor(t)
	now := time.Now()

	// One point only: no change computable.
	require.NoError(t, st.InsertPricePoint(store.PricePoint{Symbol: "AAPL", Price: 200, Timestamp: now}))
	_, ok := m.fifteenMinuteChange("AAPL")
	assert.False(t, ok)

	// Oldest point too young: still quiet (cold start).
	require.NoError(t, st.InsertPricePoint(store.PricePoint{Symbol: "TSLA", Price: 100, Timestamp: now.Add(-5 * time.Minute)}))
	require.NoError(t, st.InsertPricePoint(store.PricePoint{Symbol: "TSLA", Price: 103, Timestamp: now}))
	_, ok = m.fifteenMinuteChange("TSLA")
	assert.False(t, ok)

	// Oldest point past the minimum age: change is computed.
	require.NoError(t, st.InsertPricePoint(store.PricePoint{Symbol: "NVDA", Price: 100, Timestamp: now.Add(-12 * time.Minute)}))
	require.NoError(t, st.InsertPricePoint(store.PricePoint{Symbol: "NVDA", Price: 102.5, Timestamp: now}))
	change, ok := m.fifteenMinuteChange("NVDA")
	require.True(t, ok)
	assert.InDelta(t, 2.5, change, 1e-9)
}

func TestRunCleanupRemovesStalePoints(t *testing.T) {
	m, st := newTestMonitor(t)
	now := time.Now()

	require.NoError(t, st.InsertPricePoint(store.PricePoint{Symbol: "AAPL", Price: 200, Timestamp: now.Add(-8 * 24 * time.Hour)}))
	require.NoError(t, st.InsertPricePoint(store.PricePoint{Symbol: "AAPL", Price: 201, Timestamp: now}))

	m.RunCleanup(context.Background())

	pts, err := st.PricePointsSince("AAPL", now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, 201.0, pts[0].Price)
}

func TestSettingsFromRowDefaults(t *testing.T) {
	row := store.User{
		UserID:      "u1",
		Mode:        "focus",
		Sensitivity: "alert",
		Frequency:   "balanced",
	}
	holdings := []store.Holding{{Symbol: "aapl", Name: "Apple"}}

	s := settingsFromRow(row, holdings, 5)
	assert.Equal(t, user.ModeFocus, s.Mode)
	assert.Equal(t, user.SensitivityAlert, s.Sensitivity)
	// Zero max pushes falls back to the service default.
	assert.Equal(t, 5, s.MaxDailyPushes)
	require.Len(t, s.Holdings, 1)
	assert.Equal(t, "AAPL", s.Holdings[0].Symbol)
}
