// Package store persists users, holdings, and the monitor's durable
// state (price points, alert log, news cache, social mentions) in sqlite.
package store

import "time"

// User is one registered account row.
type User struct {
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	PushToken      string    `json:"pushToken,omitempty"`
	Frequency      string    `json:"notificationFrequency"`
	Sensitivity    string    `json:"notificationSensitivity"`
	WeeklySummary  bool      `json:"weeklySummary"`
	Mode           string    `json:"mode"`
	MaxDailyPushes int       `json:"maxDailyPushes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Holding is one portfolio row, unique per (user, symbol).
type Holding struct {
	ID         int64   `json:"id"`
	UserID     string  `json:"userId"`
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name,omitempty"`
	Allocation float64 `json:"allocation,omitempty"`
	Note       string  `json:"note,omitempty"`
}

// PricePoint is one quote observation. Append-only, 7-day retention.
type PricePoint struct {
	ID            int64
	Symbol        string
	Price         float64
	ChangePercent float64
	Volume        int64
	Timestamp     time.Time
}

// AlertLog is one delivered (or digested) push.
type AlertLog struct {
	ID          int64                  `json:"id"`
	UserID      string                 `json:"userId"`
	AlertType   string                 `json:"alertType"`
	Symbol      string                 `json:"symbol,omitempty"`
	ContentHash string                 `json:"-"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	URL         string                 `json:"url,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	SentAt      time.Time              `json:"sentAt"`
}

// NewsItem is one cached headline, unique by url and by content hash.
type NewsItem struct {
	ID          int64
	Symbol      string
	Title       string
	Source      string
	SourceTier  int
	URL         string
	PublishedAt time.Time
	ContentHash string
	FetchedAt   time.Time
}

// SocialMention is one per-hour mention count for a symbol in a forum.
type SocialMention struct {
	ID           int64
	Symbol       string
	MentionCount int
	Subreddit    string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Baseline7Day float64
}
