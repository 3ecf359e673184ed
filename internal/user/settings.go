// Package user defines per-user settings: holdings, notification
// preferences, and the mode dial that governs filtering and feed size.
package user

import "strings"

// Mode is the experience dial.
type Mode string

const (
	ModeBeginner Mode = "beginner"
	ModeSmart    Mode = "smart"
	ModeFocus    Mode = "focus"
)

// FeedCap returns the themed-feed size limit K for the mode.
func (m Mode) FeedCap() int {
	switch m {
	case ModeBeginner:
		return 6
	case ModeSmart:
		return 5
	case ModeFocus:
		return 4
	default:
		return 6
	}
}

// Sensitivity is the user's alert strictness level.
type Sensitivity string

const (
	SensitivityCalm    Sensitivity = "calm"
	SensitivityCurious Sensitivity = "curious"
	SensitivityAlert   Sensitivity = "alert"
)

// PriceThreshold is the minimum absolute 15-minute change, in percent,
// that fires a price alert. Comparisons use ≥.
func (s Sensitivity) PriceThreshold() float64 {
	switch s {
	case SensitivityCalm:
		return 3.0
	case SensitivityCurious:
		return 2.0
	case SensitivityAlert:
		return 1.0
	default:
		return 2.0
	}
}

// SocialSpikeThreshold is the minimum mention-count multiple over the
// 7-day baseline that fires a social alert.
func (s Sensitivity) SocialSpikeThreshold() float64 {
	switch s {
	case SensitivityCalm:
		return 3.0
	case SensitivityCurious:
		return 2.0
	case SensitivityAlert:
		return 1.5
	default:
		return 2.0
	}
}

// AllowsNewsTier reports whether a source tier passes this sensitivity.
// Calm users only hear from wire services.
func (s Sensitivity) AllowsNewsTier(tier int) bool {
	switch s {
	case SensitivityCalm:
		return tier == 1
	case SensitivityCurious:
		return tier == 1 || tier == 2
	case SensitivityAlert:
		return tier >= 1 && tier <= 3
	default:
		return tier == 1 || tier == 2
	}
}

// Frequency is the user's cadence preference, bounded by the daily cap.
type Frequency string

const (
	FrequencyQuiet    Frequency = "quiet"
	FrequencyBalanced Frequency = "balanced"
	FrequencyActive   Frequency = "active"
)

// Holding is one portfolio position.
type Holding struct {
	Symbol     string
	Name       string
	Allocation float64 // optional, fraction of portfolio
	Note       string  // optional
}

// Settings is the full per-user configuration consumed by the pipeline
// and the monitor.
type Settings struct {
	UserID         string
	UserName       string
	Holdings       []Holding
	Frequency      Frequency
	Sensitivity    Sensitivity
	WeeklySummary  bool
	Mode           Mode
	MaxDailyPushes int
	PushToken      string
}

// Owns reports whether the user holds symbol.
func (s *Settings) Owns(symbol string) bool {
	symbol = strings.ToUpper(symbol)
	for _, h := range s.Holdings {
		if strings.ToUpper(h.Symbol) == symbol {
			return true
		}
	}
	return false
}

// Symbols returns the uppercase holding symbols in declaration order.
func (s *Settings) Symbols() []string {
	out := make([]string, 0, len(s.Holdings))
	for _, h := range s.Holdings {
		out = append(out, strings.ToUpper(h.Symbol))
	}
	return out
}

// DefaultSettings fills the fields a new user starts with.
func DefaultSettings(userID string) *Settings {
	return &Settings{
		UserID:         userID,
		Frequency:      FrequencyBalanced,
		Sensitivity:    SensitivityCurious,
		Mode:           ModeSmart,
		MaxDailyPushes: 5,
	}
}
