package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/marketbrief/internal/logging"
)

// ErrDuplicate marks an insert rejected by a uniqueness constraint.
// Callers treat it as a dedup hit, not a failure.
var ErrDuplicate = errors.New("duplicate row")

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and migrates the
// schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; keep the pool at a single connection so
	// check-then-insert sequences serialize.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	logging.Info("store opened", "path", path)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS app_user (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		push_token TEXT NOT NULL DEFAULT '',
		notification_frequency TEXT NOT NULL DEFAULT 'balanced',
		notification_sensitivity TEXT NOT NULL DEFAULT 'curious',
		weekly_summary INTEGER NOT NULL DEFAULT 0,
		mode TEXT NOT NULL DEFAULT 'smart',
		max_daily_pushes INTEGER NOT NULL DEFAULT 5,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS holding (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES app_user(user_id),
		symbol TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		allocation REAL NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		UNIQUE(user_id, symbol)
	);

	CREATE TABLE IF NOT EXISTS price_point (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		price REAL NOT NULL,
		change_percent REAL NOT NULL DEFAULT 0,
		volume INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_price_point_symbol_ts ON price_point(symbol, timestamp);

	CREATE TABLE IF NOT EXISTS alert_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		symbol TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		sent_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alert_log_user_sent ON alert_log(user_id, sent_at);

	CREATE TABLE IF NOT EXISTS news_item (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		source_tier INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL UNIQUE,
		published_at DATETIME,
		content_hash TEXT NOT NULL UNIQUE,
		fetched_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS social_mention (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		mention_count INTEGER NOT NULL,
		subreddit TEXT NOT NULL,
		period_start DATETIME NOT NULL,
		period_end DATETIME NOT NULL,
		baseline_7day REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_social_mention_symbol ON social_mention(symbol, period_start);
	`
	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---- users ----

// CreateUser registers a user, or returns the existing row unchanged.
func (s *Store) CreateUser(userID, name, pushToken string) (*User, error) {
	_, err := s.db.Exec(`
		INSERT INTO app_user (user_id, name, push_token) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID, name, pushToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.GetUser(userID)
}

// GetUser loads one user row.
func (s *Store) GetUser(userID string) (*User, error) {
	row := s.db.QueryRow(`
		SELECT user_id, name, push_token, notification_frequency,
		       notification_sensitivity, weekly_summary, mode,
		       max_daily_pushes, created_at, updated_at
		FROM app_user WHERE user_id = ?`, userID)
	var u User
	err := row.Scan(&u.UserID, &u.Name, &u.PushToken, &u.Frequency,
		&u.Sensitivity, &u.WeeklySummary, &u.Mode, &u.MaxDailyPushes,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AllUsers returns every registered user.
func (s *Store) AllUsers() ([]User, error) {
	rows, err := s.db.Query(`
		SELECT user_id, name, push_token, notification_frequency,
		       notification_sensitivity, weekly_summary, mode,
		       max_daily_pushes, created_at, updated_at
		FROM app_user ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.Name, &u.PushToken, &u.Frequency,
			&u.Sensitivity, &u.WeeklySummary, &u.Mode, &u.MaxDailyPushes,
			&u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdatePushToken stores the user's device token.
func (s *Store) UpdatePushToken(userID, token string) error {
	res, err := s.db.Exec(`
		UPDATE app_user SET push_token = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`, token, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

// SettingsUpdate carries optional settings changes; nil fields are
// left untouched.
type SettingsUpdate struct {
	Frequency     *string
	Sensitivity   *string
	WeeklySummary *bool
	Mode          *string
}

// UpdateSettings applies the non-nil fields and returns the fresh row.
func (s *Store) UpdateSettings(userID string, upd SettingsUpdate) (*User, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	var args []interface{}
	if upd.Frequency != nil {
		sets = append(sets, "notification_frequency = ?")
		args = append(args, *upd.Frequency)
	}
	if upd.Sensitivity != nil {
		sets = append(sets, "notification_sensitivity = ?")
		args = append(args, *upd.Sensitivity)
	}
	if upd.WeeklySummary != nil {
		sets = append(sets, "weekly_summary = ?")
		args = append(args, *upd.WeeklySummary)
	}
	if upd.Mode != nil {
		sets = append(sets, "mode = ?")
		args = append(args, *upd.Mode)
	}
	args = append(args, userID)

	res, err := s.db.Exec("UPDATE app_user SET "+strings.Join(sets, ", ")+" WHERE user_id = ?", args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	return s.GetUser(userID)
}

// ---- holdings ----

// UpsertHolding inserts or updates the (user, symbol) row. Symbols are
// stored uppercase.
func (s *Store) UpsertHolding(h Holding) (*Holding, error) {
	symbol := strings.ToUpper(strings.TrimSpace(h.Symbol))
	_, err := s.db.Exec(`
		INSERT INTO holding (user_id, symbol, name, allocation, note)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, symbol) DO UPDATE SET
			name = excluded.name,
			allocation = excluded.allocation,
			note = excluded.note`,
		h.UserID, symbol, h.Name, h.Allocation, h.Note)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert holding: %w", err)
	}

	row := s.db.QueryRow(`
		SELECT id, user_id, symbol, name, allocation, note
		FROM holding WHERE user_id = ? AND symbol = ?`, h.UserID, symbol)
	var out Holding
	if err := row.Scan(&out.ID, &out.UserID, &out.Symbol, &out.Name, &out.Allocation, &out.Note); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteHolding removes one position.
func (s *Store) DeleteHolding(userID, symbol string) error {
	_, err := s.db.Exec(`DELETE FROM holding WHERE user_id = ? AND symbol = ?`,
		userID, strings.ToUpper(symbol))
	return err
}

// Holdings returns a user's positions ordered by symbol.
func (s *Store) Holdings(userID string) ([]Holding, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, symbol, name, allocation, note
		FROM holding WHERE user_id = ? ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.ID, &h.UserID, &h.Symbol, &h.Name, &h.Allocation, &h.Note); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AllSymbols returns the distinct symbols held by any user.
func (s *Store) AllSymbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT symbol FROM holding ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// ---- price points ----

// InsertPricePoint appends one quote observation.
func (s *Store) InsertPricePoint(p PricePoint) error {
	_, err := s.db.Exec(`
		INSERT INTO price_point (symbol, price, change_percent, volume, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		strings.ToUpper(p.Symbol), p.Price, p.ChangePercent, p.Volume, p.Timestamp.UTC())
	return err
}

// PricePointsSince returns a symbol's points newer than since, oldest first.
func (s *Store) PricePointsSince(symbol string, since time.Time) ([]PricePoint, error) {
	rows, err := s.db.Query(`
		SELECT id, symbol, price, change_percent, volume, timestamp
		FROM price_point WHERE symbol = ? AND timestamp >= ?
		ORDER BY timestamp`, strings.ToUpper(symbol), since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Price, &p.ChangePercent, &p.Volume, &p.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePricePointsBefore enforces retention; returns rows removed.
func (s *Store) DeletePricePointsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM price_point WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- alert log ----

// InsertAlert logs one delivered push. The unique content-hash index
// makes a second insert with the same hash return ErrDuplicate, which is
// the dedup mechanism across concurrent monitor tasks.
func (s *Store) InsertAlert(a AlertLog) (*AlertLog, error) {
	meta := "{}"
	if a.Metadata != nil {
		if b, err := json.Marshal(a.Metadata); err == nil {
			meta = string(b)
		}
	}
	sentAt := a.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	a.Symbol = strings.ToUpper(a.Symbol)
	res, err := s.db.Exec(`
		INSERT INTO alert_log (user_id, alert_type, symbol, content_hash, title, message, url, metadata, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.AlertType, a.Symbol, a.ContentHash,
		a.Title, a.Message, a.URL, meta, sentAt.UTC())
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	a.SentAt = sentAt
	return &a, nil
}

// CountAlertsSince counts a user's non-digest alerts since a cutoff.
// Feeds the weekly roll-up.
func (s *Store) CountAlertsSince(userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM alert_log
		WHERE user_id = ? AND sent_at >= ? AND alert_type != 'digest'`,
		userID, since.UTC()).Scan(&n)
	return n, err
}

// HasAlertHash reports whether an alert with this hash was already logged.
func (s *Store) HasAlertHash(hash string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM alert_log WHERE content_hash = ?`, hash).Scan(&n)
	return n > 0, err
}

// CountAlertsToday counts a user's alerts since local midnight, excluding
// digest rows so the digest itself never consumes budget.
func (s *Store) CountAlertsToday(userID string) (int, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM alert_log
		WHERE user_id = ? AND sent_at >= ? AND alert_type != 'digest'`,
		userID, midnight.UTC()).Scan(&n)
	return n, err
}

// RecentAlerts returns a user's latest alerts, newest first.
func (s *Store) RecentAlerts(userID string, limit int) ([]AlertLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, alert_type, symbol, content_hash, title, message, url, metadata, sent_at
		FROM alert_log WHERE user_id = ?
		ORDER BY sent_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertLog
	for rows.Next() {
		var a AlertLog
		var meta string
		if err := rows.Scan(&a.ID, &a.UserID, &a.AlertType, &a.Symbol, &a.ContentHash,
			&a.Title, &a.Message, &a.URL, &meta, &a.SentAt); err != nil {
			return nil, err
		}
		if meta != "" && meta != "{}" {
			_ = json.Unmarshal([]byte(meta), &a.Metadata)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- news cache ----

// InsertNewsItem caches one headline. ErrDuplicate on a repeated url or
// content hash.
func (s *Store) InsertNewsItem(n NewsItem) error {
	fetchedAt := n.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO news_item (symbol, title, source, source_tier, url, published_at, content_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToUpper(n.Symbol), n.Title, n.Source, n.SourceTier, n.URL,
		n.PublishedAt.UTC(), n.ContentHash, fetchedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// NewsSince returns cached items fetched after the cutoff, newest first.
func (s *Store) NewsSince(symbol string, since time.Time) ([]NewsItem, error) {
	rows, err := s.db.Query(`
		SELECT id, symbol, title, source, source_tier, url, published_at, content_hash, fetched_at
		FROM news_item WHERE symbol = ? AND fetched_at >= ?
		ORDER BY fetched_at DESC`, strings.ToUpper(symbol), since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NewsItem
	for rows.Next() {
		var n NewsItem
		if err := rows.Scan(&n.ID, &n.Symbol, &n.Title, &n.Source, &n.SourceTier,
			&n.URL, &n.PublishedAt, &n.ContentHash, &n.FetchedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ---- social mentions ----

// InsertSocialMention records one hourly count.
func (s *Store) InsertSocialMention(m SocialMention) error {
	_, err := s.db.Exec(`
		INSERT INTO social_mention (symbol, mention_count, subreddit, period_start, period_end, baseline_7day)
		VALUES (?, ?, ?, ?, ?, ?)`,
		strings.ToUpper(m.Symbol), m.MentionCount, m.Subreddit,
		m.PeriodStart.UTC(), m.PeriodEnd.UTC(), m.Baseline7Day)
	return err
}

// SocialBaseline computes the mean hourly mention count for a symbol over
// the trailing 7 days. Zero when there is no history.
func (s *Store) SocialBaseline(symbol string) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT AVG(mention_count) FROM social_mention
		WHERE symbol = ? AND period_start >= ?`,
		strings.ToUpper(symbol), time.Now().Add(-7*24*time.Hour).UTC()).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}
