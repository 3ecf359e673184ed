package monitor

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/abelbrown/marketbrief/internal/alert"
	"github.com/abelbrown/marketbrief/internal/config"
	"github.com/abelbrown/marketbrief/internal/feeds"
	"github.com/abelbrown/marketbrief/internal/fetch"
	"github.com/abelbrown/marketbrief/internal/logging"
	"github.com/abelbrown/marketbrief/internal/store"
	"github.com/abelbrown/marketbrief/internal/user"
)

// AlertWriter renders calm alert prose. Nil means template-only.
type AlertWriter interface {
	WriteAlertText(ctx context.Context, facts string) (string, error)
}

// Monitor owns the periodic tasks. All durable state lives in the store;
// the only in-memory state is the digest queue and the overlap guards.
type Monitor struct {
	store    *store.Store
	pusher   *alert.Pusher
	writer   AlertWriter
	quotes   *QuoteClient
	social   *SocialClient
	fetcher  *fetch.Fetcher
	registry *feeds.Registry
	digester *alert.Digester

	defaultMaxPushes int
	cron             *cron.Cron

	// per-task overlap guards; a re-entrant trigger is a no-op
	priceRunning   atomic.Bool
	newsRunning    atomic.Bool
	socialRunning  atomic.Bool
	cleanupRunning atomic.Bool
}

// New assembles a monitor from its collaborators. writer may be nil.
func New(st *store.Store, cfg *config.Config, registry *feeds.Registry, writer AlertWriter) *Monitor {
	return &Monitor{
		store:            st,
		pusher:           alert.NewPusher(cfg.ExpoPushURL, cfg.MockNotifications),
		writer:           writer,
		quotes:           NewQuoteClient(cfg.NewsAPIKey),
		social:           NewSocialClient(nil),
		fetcher:          fetch.NewFetcher(registry, cfg.NewsAPIKey),
		registry:         registry,
		digester:         alert.NewDigester(),
		defaultMaxPushes: cfg.MaxDailyPushes,
	}
}

// Start registers the cron entries and begins scheduling. schedule is a
// six-field cron expression for the three monitoring tasks; cleanup is
// fixed at local midnight.
func (m *Monitor) Start(schedule string) error {
	m.cron = cron.New(cron.WithSeconds())

	if _, err := m.cron.AddFunc(schedule, func() { m.RunPriceCheck(context.Background()) }); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc(schedule, func() { m.RunNewsCheck(context.Background()) }); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc(schedule, func() { m.RunSocialCheck(context.Background()) }); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc("0 0 0 * * *", func() { m.RunCleanup(context.Background()) }); err != nil {
		return err
	}

	m.cron.Start()
	logging.Info("monitor started", "schedule", schedule)
	return nil
}

// Stop halts scheduling and waits for running jobs.
func (m *Monitor) Stop() {
	if m.cron != nil {
		ctx := m.cron.Stop()
		<-ctx.Done()
	}
	logging.Info("monitor stopped")
}

// monitoredUsers loads every user with their holdings as settings.
func (m *Monitor) monitoredUsers() ([]*user.Settings, error) {
	rows, err := m.store.AllUsers()
	if err != nil {
		return nil, err
	}
	var out []*user.Settings
	for _, u := range rows {
		holdings, err := m.store.Holdings(u.UserID)
		if err != nil {
			logging.Warn("failed to load holdings", "user", u.UserID, "error", err)
			continue
		}
		out = append(out, settingsFromRow(u, holdings, m.defaultMaxPushes))
	}
	return out, nil
}

// settingsFromRow converts store rows into pipeline settings.
func settingsFromRow(u store.User, holdings []store.Holding, defaultMax int) *user.Settings {
	s := &user.Settings{
		UserID:         u.UserID,
		UserName:       u.Name,
		Frequency:      user.Frequency(u.Frequency),
		Sensitivity:    user.Sensitivity(u.Sensitivity),
		WeeklySummary:  u.WeeklySummary,
		Mode:           user.Mode(u.Mode),
		MaxDailyPushes: u.MaxDailyPushes,
		PushToken:      u.PushToken,
	}
	if s.MaxDailyPushes <= 0 {
		s.MaxDailyPushes = defaultMax
	}
	for _, h := range holdings {
		s.Holdings = append(s.Holdings, user.Holding{
			Symbol:     strings.ToUpper(h.Symbol),
			Name:       h.Name,
			Allocation: h.Allocation,
			Note:       h.Note,
		})
	}
	return s
}
