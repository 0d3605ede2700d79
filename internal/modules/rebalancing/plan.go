package rebalancing

import (
	"math"
	"sort"

	"github.com/rebalancr/rebalancr/internal/domain"
)

// buildTradePlan converts the gap between current holdings and an
// allocation target into signed trade orders. Moves smaller than
// minTradeFraction of portfolio value are dropped as not worth their
// costs, as are assets without a usable price. Sells come before buys so
// capital is freed before it is spent.
func buildTradePlan(p *domain.Portfolio, target domain.AllocationTarget, minTradeFraction float64) domain.TradePlan {
	if p.TotalValue <= 0 {
		return domain.TradePlan{}
	}

	var orders []domain.TradeOrder
	for _, h := range p.Holdings {
		targetWeight, ok := target[h.Symbol]
		if !ok {
			continue
		}
		delta := targetWeight*p.TotalValue - h.Value
		if math.Abs(delta)/p.TotalValue < minTradeFraction {
			continue
		}
		if h.Price <= 0 {
			continue
		}
		orders = append(orders, domain.TradeOrder{
			Symbol: h.Symbol,
			Amount: delta / h.Price,
			Value:  delta,
			Price:  h.Price,
		})
	}

	sort.Slice(orders, func(i, j int) bool {
		if (orders[i].Amount < 0) != (orders[j].Amount < 0) {
			return orders[i].Amount < 0
		}
		return orders[i].Symbol < orders[j].Symbol
	})

	return domain.TradePlan{Orders: orders}
}
