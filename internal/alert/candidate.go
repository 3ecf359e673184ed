package alert

import (
	"time"

	"github.com/abelbrown/marketbrief/internal/logging"
)

// Stage tracks a candidate through the delivery pipeline.
type Stage string

const (
	StageDetected    Stage = "detected"
	StageThresholded Stage = "thresholded"
	StageDeduped     Stage = "deduped"
	StageBudgeted    Stage = "budgeted"
	StageFormatted   Stage = "formatted"
	StageDelivered   Stage = "delivered"
	StageDropped     Stage = "dropped"
)

// Drop reasons recorded when a candidate short-circuits.
const (
	ReasonBelowThreshold  = "below_threshold"
	ReasonTierTooLow      = "tier_below_sensitivity"
	ReasonDuplicate       = "duplicate"
	ReasonBudgetExhausted = "budget_exhausted"
	ReasonNoPushToken     = "no_push_token"
	ReasonDeliveryFailed  = "delivery_failed"
)

// Candidate is one potential alert moving through the state machine:
// Detected → Thresholded → Deduped → Budgeted → Formatted → Delivered,
// with any stage able to drop it.
type Candidate struct {
	UserID      string
	AlertType   string // price, news, social, mock
	Symbol      string
	ContentHash string
	Title       string
	Message     string
	URL         string
	Metadata    map[string]interface{}
	DetectedAt  time.Time

	Stage      Stage
	DropReason string
}

// NewCandidate starts a candidate in the detected stage.
func NewCandidate(userID, alertType, symbol string) *Candidate {
	return &Candidate{
		UserID:     userID,
		AlertType:  alertType,
		Symbol:     symbol,
		DetectedAt: time.Now(),
		Stage:      StageDetected,
	}
}

// Advance moves the candidate to the next stage.
func (c *Candidate) Advance(stage Stage) {
	c.Stage = stage
}

// Drop terminates the candidate with a recorded reason.
func (c *Candidate) Drop(reason string) {
	c.Stage = StageDropped
	c.DropReason = reason
	logging.Debug("alert candidate dropped",
		"user", c.UserID,
		"type", c.AlertType,
		"symbol", c.Symbol,
		"reason", reason)
}

// Dropped reports whether the candidate was terminated.
func (c *Candidate) Dropped() bool {
	return c.Stage == StageDropped
}
