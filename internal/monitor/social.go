package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abelbrown/marketbrief/internal/logging"
)

// DefaultForums are the subreddits scanned for ticker mentions. The list
// is representative, not canonical; override per deployment.
var DefaultForums = []string{"wallstreetbets", "stocks", "investing"}

// SocialClient counts recent ticker mentions per forum via the public
// reddit search endpoint.
type SocialClient struct {
	forums []string
	client *http.Client
}

func NewSocialClient(forums []string) *SocialClient {
	if len(forums) == 0 {
		forums = DefaultForums
	}
	return &SocialClient{
		forums: forums,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Forums returns the configured forum list.
func (s *SocialClient) Forums() []string {
	return s.forums
}

// CountMentions returns how many posts in the forum mention the symbol
// in the last hour. Title and body text both count; a post mentioning
// the symbol twice counts once.
func (s *SocialClient) CountMentions(ctx context.Context, forum, symbol string) (int, error) {
	u := fmt.Sprintf("https://www.reddit.com/r/%s/search.json?q=%s&restrict_sr=1&sort=new&t=hour&limit=100",
		url.PathEscape(forum), url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "marketbrief/1.0 (monitoring)")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("social request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, fmt.Errorf("social provider rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("social provider error (status %d)", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Children []struct {
				Data struct {
					Title    string `json:"title"`
					Selftext string `json:"selftext"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode social response: %w", err)
	}

	sym := strings.ToUpper(symbol)
	count := 0
	for _, child := range body.Data.Children {
		text := strings.ToUpper(child.Data.Title + " " + child.Data.Selftext)
		if strings.Contains(text, sym) || strings.Contains(text, "$"+sym) {
			count++
		}
	}
	logging.Debug("social mentions counted", "forum", forum, "symbol", symbol, "count", count)
	return count, nil
}
