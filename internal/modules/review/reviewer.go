// Package review provides the independent second opinion on a proposed
// trade plan. The reviewer sees only action labels and the market
// condition, never scoring internals, so a scoring bug cannot silently
// bypass validation.
package review

import (
	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// ProposedAction is one asset-level recommendation under review.
type ProposedAction struct {
	Asset  string
	Action domain.Action
}

// Policy judges individual actions under a market condition. The approval
// computation is pluggable so policies can be tuned or replaced without
// touching the pipeline.
type Policy interface {
	// Judge returns whether the action is acceptable and its risk
	// contribution on a 0-10 scale.
	Judge(action ProposedAction, marketCondition string) (approved bool, risk float64)
}

// Config holds the reviewer's acceptance thresholds.
type Config struct {
	ApprovalThreshold float64 // minimum approval rate, default 0.6
	MaxRisk           float64 // maximum overall risk, default 7
}

// Reviewer validates proposed rebalance plans.
type Reviewer struct {
	policy Policy
	cfg    Config
	log    zerolog.Logger
}

// NewReviewer creates a new trade reviewer
func NewReviewer(policy Policy, cfg Config, log zerolog.Logger) *Reviewer {
	return &Reviewer{
		policy: policy,
		cfg:    cfg,
		log:    log.With().Str("service", "reviewer").Logger(),
	}
}

// Validate reviews the proposed actions against the market condition and
// returns the aggregate verdict. An empty proposal is trivially approved
// with zero risk.
func (r *Reviewer) Validate(actions []ProposedAction, marketCondition string) domain.ValidationResult {
	if len(actions) == 0 {
		return domain.ValidationResult{Approved: true, ApprovalRate: 1.0}
	}

	approvedCount := 0
	totalRisk := 0.0
	for _, action := range actions {
		approved, risk := r.policy.Judge(action, marketCondition)
		if approved {
			approvedCount++
		}
		totalRisk += risk
	}

	result := domain.ValidationResult{
		ApprovalRate: float64(approvedCount) / float64(len(actions)),
		OverallRisk:  totalRisk / float64(len(actions)),
	}
	result.Approved = result.ApprovalRate >= r.cfg.ApprovalThreshold && result.OverallRisk <= r.cfg.MaxRisk

	if !result.Approved {
		switch {
		case result.ApprovalRate < r.cfg.ApprovalThreshold:
			result.Reason = "approval rate below threshold"
		default:
			result.Reason = "overall risk above maximum"
		}
	}

	r.log.Info().
		Str("market_condition", marketCondition).
		Float64("approval_rate", result.ApprovalRate).
		Float64("overall_risk", result.OverallRisk).
		Bool("approved", result.Approved).
		Msg("Plan reviewed")

	return result
}

// MarketConditionPolicy is the default policy: riskier regimes make
// position increases harder to approve and raise risk contributions.
type MarketConditionPolicy struct{}

// Judge implements Policy.
func (MarketConditionPolicy) Judge(action ProposedAction, marketCondition string) (bool, float64) {
	// Maintain carries no new exposure.
	if action.Action == domain.ActionMaintain {
		return true, 1
	}

	switch marketCondition {
	case "volatile":
		if action.Action == domain.ActionIncrease {
			return false, 8
		}
		return true, 5
	case "bearish":
		if action.Action == domain.ActionIncrease {
			return false, 7
		}
		return true, 4
	case "bullish":
		if action.Action == domain.ActionDecrease {
			// Selling into strength is allowed but scrutinized.
			return true, 5
		}
		return true, 3
	default: // "normal" and unknown conditions
		return true, 3
	}
}
