// Package domain contains the core types of the rebalancing engine.
// The domain layer is pure: no I/O, no infrastructure dependencies.
package domain

import (
	"fmt"
	"math"
	"time"
)

// Sentiment is the AI-derived emotional classification for an asset.
type Sentiment string

const (
	SentimentFear    Sentiment = "fear"
	SentimentNeutral Sentiment = "neutral"
	SentimentGreed   Sentiment = "greed"
)

// Trend is the statistical price direction classification.
type Trend string

const (
	TrendUp       Trend = "uptrend"
	TrendDown     Trend = "downtrend"
	TrendSideways Trend = "sideways"
)

// Action is the per-asset recommendation produced by scoring.
type Action string

const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
	ActionMaintain Action = "maintain"
)

// AssetHolding is a single position within a portfolio. Value and Weight
// are derived from live prices on every analysis pass and are not
// independently persisted.
type AssetHolding struct {
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// Portfolio is the persistent aggregate owned by a user.
type Portfolio struct {
	ID            int64          `json:"id"`
	UserID        string         `json:"user_id"`
	Name          string         `json:"name"`
	Holdings      []AssetHolding `json:"holdings"`
	TotalValue    float64        `json:"total_value"`
	LastRebalance *time.Time     `json:"last_rebalance,omitempty"`
	AutoRebalance bool           `json:"auto_rebalance"`
	MaxSlippage   float64        `json:"max_slippage"`   // percent, 0.1-5.0
	CheckInterval int64          `json:"check_interval"` // seconds
}

// CheckIntervalDuration returns the configured rebalance check interval.
func (p *Portfolio) CheckIntervalDuration() time.Duration {
	return time.Duration(p.CheckInterval) * time.Second
}

// Symbols returns the holding symbols in portfolio order.
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		out = append(out, h.Symbol)
	}
	return out
}

// Weights returns the current weight of every holding.
func (p *Portfolio) Weights() map[string]float64 {
	out := make(map[string]float64, len(p.Holdings))
	for _, h := range p.Holdings {
		out[h.Symbol] = h.Weight
	}
	return out
}

// SignalSet holds the per-asset readings for a single analysis run.
// Ephemeral: produced and consumed within one run, persisted only inside
// a RebalanceEvent.
type SignalSet struct {
	Symbol               string    `json:"symbol"`
	Sentiment            Sentiment `json:"sentiment"`
	FearScore            float64   `json:"fear_score"`
	GreedScore           float64   `json:"greed_score"`
	ManipulationDetected bool      `json:"manipulation_detected"`
	Volatility           float64   `json:"volatility"`
	BelowMedianFrequency float64   `json:"below_median_frequency"`
	Trend                Trend     `json:"trend"`

	// Degradation flags record which source failed and was replaced by
	// neutral defaults. Both set means the asset is scored "maintain".
	SentimentDegraded bool `json:"sentiment_degraded,omitempty"`
	StatsDegraded     bool `json:"stats_degraded,omitempty"`
}

// Degraded reports whether any signal source failed for this asset.
func (s SignalSet) Degraded() bool {
	return s.SentimentDegraded || s.StatsDegraded
}

// AllocationTarget maps symbol to target weight. Weights sum to 1.0 ± 0.01.
type AllocationTarget map[string]float64

// Validate checks the AllocationTarget invariants: non-negative weights
// summing to 1.0 within tolerance. Violations indicate a programming
// error, not a recoverable condition.
func (t AllocationTarget) Validate() error {
	total := 0.0
	for symbol, w := range t {
		if w < 0 {
			return fmt.Errorf("negative target weight %.4f for %s", w, symbol)
		}
		total += w
	}
	if math.Abs(total-1.0) > 0.01 {
		return fmt.Errorf("target weights sum to %.4f, want 1.0", total)
	}
	return nil
}

// TradeOrder is one leg of a trade plan. Amount is signed: positive buys,
// negative sells. Zero-amount orders are excluded at plan construction.
type TradeOrder struct {
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
	Value  float64 `json:"value"` // signed estimated value
	Price  float64 `json:"price"`
}

// TradePlan is the ordered list of trades required to move the portfolio
// toward an AllocationTarget.
type TradePlan struct {
	Orders []TradeOrder `json:"orders"`
}

// Turnover returns the total absolute value traded by the plan.
func (p TradePlan) Turnover() float64 {
	total := 0.0
	for _, o := range p.Orders {
		total += math.Abs(o.Value)
	}
	return total
}

// ValidationResult is the reviewer's independent verdict on a proposed
// set of actions.
type ValidationResult struct {
	Approved     bool    `json:"approved"`
	ApprovalRate float64 `json:"approval_rate"` // [0,1]
	OverallRisk  float64 `json:"overall_risk"`  // [0,10]
	Reason       string  `json:"reason,omitempty"`
}

// GateDecision is the cost-benefit gate outcome. A skip is a normal,
// final result for the invocation, not an error.
type GateDecision struct {
	Proceed bool    `json:"proceed"`
	Reason  string  `json:"reason,omitempty"`
	Cost    float64 `json:"cost"`
	Benefit float64 `json:"benefit"`
}

// GateProceed builds a proceed decision carrying the evaluated economics.
func GateProceed(cost, benefit float64) GateDecision {
	return GateDecision{Proceed: true, Cost: cost, Benefit: benefit}
}

// GateSkip builds a skip decision with a caller-visible reason.
func GateSkip(reason string, cost, benefit float64) GateDecision {
	return GateDecision{Proceed: false, Reason: reason, Cost: cost, Benefit: benefit}
}

// Gate skip reasons.
const (
	SkipTooFrequent        = "too frequent"
	SkipCostExceedsBenefit = "cost exceeds benefit"
)

// TradeOutcome records the result of dispatching one trade order.
type TradeOutcome struct {
	Symbol      string  `json:"symbol"`
	Amount      float64 `json:"amount"`
	Value       float64 `json:"value"`
	Success     bool    `json:"success"`
	TxReference string  `json:"tx_reference,omitempty"`
	Error       string  `json:"error,omitempty"`
	TimedOut    bool    `json:"timed_out,omitempty"`
}

// AllSucceeded reports whether every outcome in the batch succeeded.
func AllSucceeded(outcomes []TradeOutcome) bool {
	for _, o := range outcomes {
		if !o.Success {
			return false
		}
	}
	return true
}

// AnySucceeded reports whether at least one outcome succeeded. Governs
// whether last_rebalance_timestamp advances after a partial failure.
func AnySucceeded(outcomes []TradeOutcome) bool {
	for _, o := range outcomes {
		if o.Success {
			return true
		}
	}
	return false
}

// RebalanceEventType classifies audit log entries.
type RebalanceEventType string

const (
	EventRebalanceRecommendation RebalanceEventType = "rebalance_recommendation"
	EventAutoRebalance           RebalanceEventType = "auto_rebalance"
	EventRebalanceSkipped        RebalanceEventType = "rebalance_skipped"
	EventRebalanceRejected       RebalanceEventType = "rebalance_rejected"
	EventRebalanceExecuted       RebalanceEventType = "rebalance_executed"
	EventSignalDegraded          RebalanceEventType = "signal_degraded"
)

// RebalanceEvent is one append-only audit log entry. Never mutated after
// creation.
type RebalanceEvent struct {
	ID          int64              `json:"id,omitempty"`
	PortfolioID int64              `json:"portfolio_id"`
	Type        RebalanceEventType `json:"event_type"`
	Details     EventDetails       `json:"details"`
	Timestamp   time.Time          `json:"timestamp"`
}

// EventDetails is the serialized decision context stored with an event.
type EventDetails struct {
	RunID           string            `json:"run_id,omitempty"`
	Signals         []SignalSet       `json:"signals,omitempty"`
	Target          AllocationTarget  `json:"target,omitempty"`
	Validation      *ValidationResult `json:"validation,omitempty"`
	Gate            *GateDecision     `json:"gate,omitempty"`
	Outcomes        []TradeOutcome    `json:"outcomes,omitempty"`
	AllSucceeded    *bool             `json:"all_succeeded,omitempty"`
	MarketCondition string            `json:"market_condition,omitempty"`
	Reason          string            `json:"reason,omitempty"`
}

// AssetInsight is the per-asset row of an analysis report.
type AssetInsight struct {
	Asset                string    `json:"asset"`
	CurrentAllocation    float64   `json:"current_allocation"`
	RecommendedAction    Action    `json:"recommended_action"`
	Confidence           float64   `json:"confidence"` // |score| * 100
	Score                float64   `json:"score"`
	Sentiment            Sentiment `json:"sentiment"`
	Trend                Trend     `json:"trend"`
	ManipulationDetected bool      `json:"manipulation_detected"`
	DegradedSignal       bool      `json:"degraded_signal"`
}

// AnalysisResult is the read-only report returned by Analyze. Always a
// best-effort answer, annotated with degraded-signal flags.
type AnalysisResult struct {
	RunID           string            `json:"run_id"`
	PortfolioID     int64             `json:"portfolio_id"`
	RebalanceNeeded bool              `json:"rebalance_needed"`
	Assets          []AssetInsight    `json:"assets"`
	TargetWeights   AllocationTarget  `json:"target_weights,omitempty"`
	Validation      *ValidationResult `json:"validation,omitempty"`
	MarketCondition string            `json:"market_condition"`
	Message         string            `json:"message"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// RebalanceStatus is the terminal state of a rebalance invocation.
type RebalanceStatus string

const (
	StatusExecuted  RebalanceStatus = "executed"
	StatusDryRun    RebalanceStatus = "dry_run"
	StatusSkipped   RebalanceStatus = "skipped"
	StatusRejected  RebalanceStatus = "rejected"
	StatusNotNeeded RebalanceStatus = "not_needed"
)

// RebalanceResult is what Rebalance returns. It always carries an explicit
// status and reason; it never reports a generic unexplained error.
type RebalanceResult struct {
	PortfolioID  int64           `json:"portfolio_id"`
	Status       RebalanceStatus `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	Plan         *TradePlan      `json:"plan,omitempty"`
	Outcomes     []TradeOutcome  `json:"outcomes,omitempty"`
	AllSucceeded bool            `json:"all_succeeded"`
	Analysis     *AnalysisResult `json:"analysis,omitempty"`
}

// Executed reports whether any order was dispatched to the executor.
func (r *RebalanceResult) Executed() bool {
	return r.Status == StatusExecuted
}
