// Package execution dispatches an approved trade plan to the external
// executor, one order at a time so portfolio state stays consistent.
package execution

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/rebalancr/rebalancr/internal/domain"
	"github.com/rebalancr/rebalancr/internal/events"
)

// Coordinator executes trade plans sequentially with per-order timeouts.
type Coordinator struct {
	executor     domain.TradeExecutor
	events       *events.Manager
	orderTimeout time.Duration
	log          zerolog.Logger
}

// NewCoordinator creates a new execution coordinator
func NewCoordinator(executor domain.TradeExecutor, eventManager *events.Manager, orderTimeout time.Duration, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		executor:     executor,
		events:       eventManager,
		orderTimeout: orderTimeout,
		log:          log.With().Str("service", "execution").Logger(),
	}
}

// Execute dispatches every order in the plan in sequence. One order's
// failure does not abort the rest; each outcome is recorded. A timed-out
// order is marked failed(timeout) and the coordinator moves on, so
// execution never blocks indefinitely.
func (c *Coordinator) Execute(ctx context.Context, portfolioID int64, plan domain.TradePlan, maxSlippage float64) []domain.TradeOutcome {
	outcomes := make([]domain.TradeOutcome, 0, len(plan.Orders))

	for _, order := range plan.Orders {
		outcome := c.dispatch(ctx, order, maxSlippage)
		outcomes = append(outcomes, outcome)

		if c.events != nil {
			c.events.Emit(events.TradeExecuted, "execution", &events.TradeExecutedData{
				PortfolioID: portfolioID,
				Symbol:      outcome.Symbol,
				Amount:      outcome.Amount,
				Value:       outcome.Value,
				Success:     outcome.Success,
				TxReference: outcome.TxReference,
			})
		}
	}

	c.log.Info().
		Int64("portfolio_id", portfolioID).
		Int("orders", len(outcomes)).
		Bool("all_succeeded", domain.AllSucceeded(outcomes)).
		Msg("Trade plan executed")

	return outcomes
}

func (c *Coordinator) dispatch(ctx context.Context, order domain.TradeOrder, maxSlippage float64) domain.TradeOutcome {
	outcome := domain.TradeOutcome{
		Symbol: order.Symbol,
		Amount: order.Amount,
		Value:  order.Value,
	}

	orderCtx, cancel := context.WithTimeout(ctx, c.orderTimeout)
	defer cancel()

	result, err := c.executor.SubmitOrder(orderCtx, order.Symbol, order.Amount, maxSlippage)
	if err != nil {
		outcome.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(orderCtx.Err(), context.DeadlineExceeded) {
			outcome.TimedOut = true
			outcome.Error = "timeout"
		}
		c.log.Error().
			Err(err).
			Str("symbol", order.Symbol).
			Float64("amount", order.Amount).
			Msg("Order failed")
		return outcome
	}

	outcome.Success = result.Success
	outcome.TxReference = result.TxReference

	c.log.Info().
		Str("symbol", order.Symbol).
		Float64("amount", order.Amount).
		Str("tx", result.TxReference).
		Msg("Order executed")

	return outcome
}
