// Package rebalancing orchestrates the decision pipeline: signal
// collection, scoring, allocation planning, the cost-benefit gate,
// independent review, and execution. Analyze is the read-only half;
// Rebalance is the transactional half.
package rebalancing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
	"github.com/rebalancr/rebalancr/internal/events"
	"github.com/rebalancr/rebalancr/internal/modules/allocation"
	"github.com/rebalancr/rebalancr/internal/modules/execution"
	"github.com/rebalancr/rebalancr/internal/modules/gate"
	"github.com/rebalancr/rebalancr/internal/modules/performance"
	"github.com/rebalancr/rebalancr/internal/modules/portfolio"
	"github.com/rebalancr/rebalancr/internal/modules/review"
	"github.com/rebalancr/rebalancr/internal/modules/scoring"
	"github.com/rebalancr/rebalancr/internal/modules/signals"
	"github.com/rebalancr/rebalancr/internal/modules/snapshots"
)

// Market condition labels consumed by the review policy.
const (
	ConditionNormal   = "normal"
	ConditionVolatile = "volatile"
	ConditionBearish  = "bearish"
	ConditionBullish  = "bullish"
)

// volatileThreshold is the average-volatility cutoff above which the
// whole market reads as volatile.
const volatileThreshold = 0.8

// Service runs the rebalancing pipeline end to end.
type Service struct {
	portfolios  *portfolio.Service
	collector   *signals.Collector
	combiner    *scoring.Combiner
	planner     *allocation.Planner
	gate        *gate.Gate
	reviewer    *review.Reviewer
	coordinator *execution.Coordinator
	perfLog     *performance.Logger
	snapshots   *snapshots.Repository
	events      *events.Manager
	locks       *portfolioLocks

	minTradeFraction float64
	log              zerolog.Logger
}

// NewService creates a new rebalancing service
func NewService(
	portfolios *portfolio.Service,
	collector *signals.Collector,
	combiner *scoring.Combiner,
	planner *allocation.Planner,
	g *gate.Gate,
	reviewer *review.Reviewer,
	coordinator *execution.Coordinator,
	perfLog *performance.Logger,
	snapshotRepo *snapshots.Repository,
	eventManager *events.Manager,
	minTradeFraction float64,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolios:       portfolios,
		collector:        collector,
		combiner:         combiner,
		planner:          planner,
		gate:             g,
		reviewer:         reviewer,
		coordinator:      coordinator,
		perfLog:          perfLog,
		snapshots:        snapshotRepo,
		events:           eventManager,
		locks:            newPortfolioLocks(),
		minTradeFraction: minTradeFraction,
		log:              log.With().Str("service", "rebalancing").Logger(),
	}
}

// pipelineState carries intermediate results between stages of one run.
type pipelineState struct {
	runID      string
	portfolio  *domain.Portfolio
	signals    map[string]domain.SignalSet
	scores     map[string]float64
	actions    map[string]domain.Action
	insights   []domain.AssetInsight
	target     domain.AllocationTarget
	validation domain.ValidationResult
	condition  string
}

func (st *pipelineState) actionable() bool {
	for _, a := range st.actions {
		if a != domain.ActionMaintain {
			return true
		}
	}
	return false
}

// Analyze runs the read-only decision pipeline: it collects signals,
// scores every holding, plans a target allocation, and has the reviewer
// judge the proposal. It never places trades, never consults the interval
// gate, and always returns a best-effort answer annotated with
// degraded-signal flags.
func (s *Service) Analyze(ctx context.Context, portfolioID int64) (*domain.AnalysisResult, error) {
	state, err := s.runDecisionStages(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	result := s.buildAnalysis(state)

	if err := s.snapshots.Save(result); err != nil {
		s.log.Error().Err(err).Int64("portfolio_id", portfolioID).Msg("Failed to store analysis snapshot")
	}

	if result.RebalanceNeeded {
		s.perfLog.Log(portfolioID, domain.EventRebalanceRecommendation, domain.EventDetails{
			RunID:           state.runID,
			Target:          state.target,
			Validation:      &state.validation,
			MarketCondition: state.condition,
		})
		s.emit(&events.RebalanceRecommendationData{
			PortfolioID: portfolioID,
			UserID:      state.portfolio.UserID,
			Message:     result.Message,
			AssetCount:  len(result.Assets),
		})
	}

	return result, nil
}

// LatestAnalysis returns the stored snapshot from the most recent run, or
// nil when the portfolio has never been analyzed.
func (s *Service) LatestAnalysis(portfolioID int64) (*domain.AnalysisResult, error) {
	return s.snapshots.Latest(portfolioID)
}

// History returns the audit trail for a portfolio, most recent first.
// eventType filters when non-empty; limit <= 0 means no limit.
func (s *Service) History(portfolioID int64, eventType string, limit int) ([]domain.RebalanceEvent, error) {
	return s.perfLog.History(portfolioID, eventType, limit)
}

// Rebalance runs the full pipeline and, unless dryRun is set, executes
// the resulting plan. Runs for the same portfolio are serialized. The
// result always carries an explicit terminal status.
func (s *Service) Rebalance(ctx context.Context, portfolioID int64, dryRun bool) (*domain.RebalanceResult, error) {
	release := s.locks.acquire(portfolioID)
	defer release()

	state, err := s.runDecisionStages(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	analysis := s.buildAnalysis(state)
	result := &domain.RebalanceResult{PortfolioID: portfolioID, Analysis: analysis}

	if !state.actionable() {
		result.Status = domain.StatusNotNeeded
		result.Reason = "no actionable recommendations"
		return result, nil
	}

	plan := buildTradePlan(state.portfolio, state.target, s.minTradeFraction)
	if len(plan.Orders) == 0 {
		result.Status = domain.StatusNotNeeded
		result.Reason = "no trades above minimum size"
		return result, nil
	}
	result.Plan = &plan

	// No yield signal source is wired; the gate's benefit side is
	// allocation improvement only.
	decision := s.gate.Evaluate(state.portfolio, plan, gateInsights(state.insights), 0, time.Now().UTC())
	if !decision.Proceed {
		result.Status = domain.StatusSkipped
		result.Reason = decision.Reason
		s.perfLog.Log(portfolioID, domain.EventRebalanceSkipped, domain.EventDetails{
			RunID:           state.runID,
			Gate:            &decision,
			MarketCondition: state.condition,
			Reason:          decision.Reason,
		})
		s.emit(&events.RebalanceSkippedData{PortfolioID: portfolioID, Reason: decision.Reason})
		return result, nil
	}

	if !state.validation.Approved {
		result.Status = domain.StatusRejected
		result.Reason = state.validation.Reason
		s.perfLog.Log(portfolioID, domain.EventRebalanceRejected, domain.EventDetails{
			RunID:           state.runID,
			Target:          state.target,
			Validation:      &state.validation,
			MarketCondition: state.condition,
			Reason:          state.validation.Reason,
		})
		s.emit(&events.RebalanceRejectedData{
			PortfolioID:  portfolioID,
			ApprovalRate: state.validation.ApprovalRate,
			OverallRisk:  state.validation.OverallRisk,
		})
		return result, nil
	}

	if dryRun {
		result.Status = domain.StatusDryRun
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rebalance cancelled before execution: %w", err)
	}

	outcomes := s.coordinator.Execute(ctx, portfolioID, plan, state.portfolio.MaxSlippage)
	result.Outcomes = outcomes
	result.AllSucceeded = domain.AllSucceeded(outcomes)
	result.Status = domain.StatusExecuted

	// The rebalance timestamp advances only when at least one order
	// landed. A fully failed run stays eligible for the next attempt.
	if domain.AnySucceeded(outcomes) {
		ts := time.Now().UTC().Format(time.RFC3339)
		if err := s.portfolios.UpdatePortfolio(portfolioID, domain.PortfolioUpdate{LastRebalance: &ts}); err != nil {
			s.log.Error().Err(err).Int64("portfolio_id", portfolioID).Msg("Failed to update rebalance timestamp")
		}
		if err := s.portfolios.ApplyTradeOutcomes(portfolioID, outcomes); err != nil {
			s.log.Error().Err(err).Int64("portfolio_id", portfolioID).Msg("Failed to apply trade outcomes to holdings")
		}
	}

	allSucceeded := result.AllSucceeded
	s.perfLog.Log(portfolioID, domain.EventRebalanceExecuted, domain.EventDetails{
		RunID:           state.runID,
		Signals:         signalList(state.signals),
		Target:          state.target,
		Validation:      &state.validation,
		Gate:            &decision,
		Outcomes:        outcomes,
		AllSucceeded:    &allSucceeded,
		MarketCondition: state.condition,
	})
	s.emit(&events.RebalanceExecutedData{
		PortfolioID:  portfolioID,
		RunID:        state.runID,
		Orders:       len(outcomes),
		AllSucceeded: allSucceeded,
	})

	return result, nil
}

// runDecisionStages executes the shared read-only stages: load and value
// the portfolio, collect signals, score, plan, review. Cancellation is
// honored between stages.
func (s *Service) runDecisionStages(ctx context.Context, portfolioID int64) (*pipelineState, error) {
	p, err := s.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if len(p.Holdings) == 0 {
		return nil, fmt.Errorf("portfolio %d has no holdings", portfolioID)
	}

	state := &pipelineState{
		runID:     uuid.New().String(),
		portfolio: p,
	}

	state.signals, err = s.collector.Collect(ctx, portfolioID, p.Symbols())
	if err != nil {
		return nil, fmt.Errorf("signal collection failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state.scores = make(map[string]float64, len(state.signals))
	state.actions = make(map[string]domain.Action, len(state.signals))
	weights := p.Weights()
	for _, h := range p.Holdings {
		set := state.signals[h.Symbol]
		score := s.combiner.Score(set)
		action := s.combiner.ActionFor(score)
		state.scores[h.Symbol] = score
		state.actions[h.Symbol] = action
		state.insights = append(state.insights, domain.AssetInsight{
			Asset:                h.Symbol,
			CurrentAllocation:    weights[h.Symbol],
			RecommendedAction:    action,
			Confidence:           scoring.Confidence(score),
			Score:                score,
			Sentiment:            set.Sentiment,
			Trend:                set.Trend,
			ManipulationDetected: set.ManipulationDetected,
			DegradedSignal:       set.Degraded(),
		})
	}

	state.condition = deriveMarketCondition(state.signals)
	state.target = s.planner.Plan(weights, state.scores, state.actions)
	if err := state.target.Validate(); err != nil {
		return nil, fmt.Errorf("allocation planning produced invalid target: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state.validation = s.reviewer.Validate(proposedActions(state.insights), state.condition)

	s.log.Info().
		Int64("portfolio_id", portfolioID).
		Str("run_id", state.runID).
		Str("market_condition", state.condition).
		Bool("actionable", state.actionable()).
		Bool("approved", state.validation.Approved).
		Msg("Decision stages complete")

	return state, nil
}

func (s *Service) buildAnalysis(state *pipelineState) *domain.AnalysisResult {
	needed := state.actionable() && state.validation.Approved

	message := "Portfolio is balanced, no action needed"
	switch {
	case needed:
		message = "Rebalance recommended"
	case state.actionable():
		message = fmt.Sprintf("Rebalance proposed but not approved: %s", state.validation.Reason)
	}

	validation := state.validation
	return &domain.AnalysisResult{
		RunID:           state.runID,
		PortfolioID:     state.portfolio.ID,
		RebalanceNeeded: needed,
		Assets:          state.insights,
		TargetWeights:   state.target,
		Validation:      &validation,
		MarketCondition: state.condition,
		Message:         message,
		GeneratedAt:     time.Now().UTC(),
	}
}

func (s *Service) emit(data events.EventData) {
	if s.events != nil {
		s.events.Emit(data.EventType(), "rebalancing", data)
	}
}

// deriveMarketCondition aggregates per-asset signals into the regime label
// the review policy keys on. Volatility dominates: a market reading above
// the volatile threshold on average overrides directional labels.
func deriveMarketCondition(sets map[string]domain.SignalSet) string {
	if len(sets) == 0 {
		return ConditionNormal
	}

	var totalVol float64
	fear, greed, up, down := 0, 0, 0, 0
	for _, set := range sets {
		totalVol += set.Volatility
		switch set.Sentiment {
		case domain.SentimentFear:
			fear++
		case domain.SentimentGreed:
			greed++
		}
		switch set.Trend {
		case domain.TrendUp:
			up++
		case domain.TrendDown:
			down++
		}
	}

	n := len(sets)
	switch {
	case totalVol/float64(n) > volatileThreshold:
		return ConditionVolatile
	case fear*2 > n && down >= up:
		return ConditionBearish
	case greed*2 > n && up >= down:
		return ConditionBullish
	default:
		return ConditionNormal
	}
}

func proposedActions(insights []domain.AssetInsight) []review.ProposedAction {
	out := make([]review.ProposedAction, 0, len(insights))
	for _, in := range insights {
		out = append(out, review.ProposedAction{Asset: in.Asset, Action: in.RecommendedAction})
	}
	return out
}

func gateInsights(insights []domain.AssetInsight) []gate.Insight {
	out := make([]gate.Insight, 0, len(insights))
	for _, in := range insights {
		out = append(out, gate.Insight{
			Symbol:            in.Asset,
			Action:            in.RecommendedAction,
			Confidence:        in.Confidence,
			CurrentAllocation: in.CurrentAllocation,
		})
	}
	return out
}

func signalList(sets map[string]domain.SignalSet) []domain.SignalSet {
	symbols := make([]string, 0, len(sets))
	for symbol := range sets {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	out := make([]domain.SignalSet, 0, len(symbols))
	for _, symbol := range symbols {
		out = append(out, sets[symbol])
	}
	return out
}
