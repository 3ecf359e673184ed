package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abelbrown/marketbrief/internal/logging"
)

const defaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

// PushPayload is the wire format for one notification.
type PushPayload struct {
	To    string                 `json:"to"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Pusher delivers notifications through the Expo push service. Mock mode
// and simulator tokens log instead of sending.
type Pusher struct {
	url    string
	client *http.Client
	mock   bool
}

func NewPusher(url string, mock bool) *Pusher {
	if url == "" {
		url = defaultExpoPushURL
	}
	return &Pusher{
		url:    url,
		mock:   mock,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// MockMode reports whether sends are simulated.
func (p *Pusher) MockMode() bool {
	return p.mock
}

// isProductionToken matches the opaque 64-char hex device tokens.
// Anything else is treated as a simulator token.
func isProductionToken(token string) bool {
	if len(token) != 64 {
		return false
	}
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Send delivers one push. Simulator tokens and mock mode short-circuit
// to a logged simulated send and report success.
func (p *Pusher) Send(ctx context.Context, token string, payload PushPayload) error {
	if token == "" {
		return fmt.Errorf("no push token")
	}
	payload.To = token

	if p.mock || !isProductionToken(token) {
		logging.Info("simulated push send",
			"title", payload.Title,
			"token_prefix", tokenPrefix(token),
			"mock", p.mock)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("push service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	logging.Info("push delivered", "title", payload.Title)
	return nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}

// ---- daily digest ----

// DigestEntry is one suppressed alert waiting for the daily digest.
type DigestEntry struct {
	Symbol  string
	Title   string
	AddedAt time.Time
}

// Digester collects budget-overflow candidates per user and renders at
// most one digest message per user per day. State is in-memory; the
// once-per-day guarantee comes from the digest content hash in alert_log.
type Digester struct {
	pending map[string][]DigestEntry
}

func NewDigester() *Digester {
	return &Digester{pending: make(map[string][]DigestEntry)}
}

// Add queues a suppressed candidate for the user's next digest.
func (d *Digester) Add(userID string, c *Candidate) {
	d.pending[userID] = append(d.pending[userID], DigestEntry{
		Symbol:  c.Symbol,
		Title:   c.Title,
		AddedAt: time.Now(),
	})
}

// Pending reports how many entries a user has queued.
func (d *Digester) Pending(userID string) int {
	return len(d.pending[userID])
}

// Flush drains the user's queue and returns the digest message, or ""
// when nothing is pending.
func (d *Digester) Flush(userID string) string {
	entries := d.pending[userID]
	if len(entries) == 0 {
		return ""
	}
	delete(d.pending, userID)

	var parts []string
	seen := make(map[string]bool)
	for _, e := range entries {
		key := e.Symbol
		if key == "" {
			key = e.Title
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		parts = append(parts, key)
	}
	return fmt.Sprintf("While you were away: %d more updates on %s.",
		len(entries), strings.Join(parts, ", "))
}

// DigestHash identifies one user's digest for one day.
func DigestHash(userID string, now time.Time) string {
	return hash(fmt.Sprintf("digest:%s:%s", userID, now.Format("2006-01-02")))
}

// WeeklyHash identifies one user's weekly roll-up for one ISO week.
func WeeklyHash(userID string, now time.Time) string {
	year, week := now.ISOWeek()
	return hash(fmt.Sprintf("weekly:%s:%04d-%02d", userID, year, week))
}
