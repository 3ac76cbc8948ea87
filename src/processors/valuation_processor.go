package processors

import (
	"sort"
	"strings"

	"github.com/username/portfoly/backend/src/models"
)

// ValuationProcessor enriches holdings with current quotes and computes
// per-holding and aggregate profit/loss. Pure and stateless.
type ValuationProcessor struct{}

func NewValuationProcessor() *ValuationProcessor {
	return &ValuationProcessor{}
}

// Valuate prices each holding through the lookup and totals the result.
// Holdings without a quote are valued at zero but keep PriceKnown=false so
// callers can render "unavailable" instead of a misleading zero.
//
// Percentages are zero-guarded: a zero cost basis yields 0, never NaN or
// Inf. The aggregate percentage divides by TotalValue−TotalProfitLoss (the
// total cost basis); this exact denominator form is load-bearing.
func (p *ValuationProcessor) Valuate(holdings map[string]models.Holding, lookup PriceLookup) models.PortfolioValuation {
	symbols := make([]string, 0, len(holdings))
	for symbol := range holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	valuation := models.PortfolioValuation{
		Holdings: make([]models.HoldingValuation, 0, len(holdings)),
	}

	for _, symbol := range symbols {
		holding := holdings[symbol]

		currentPrice, known := lookup(symbol)
		if !known {
			currentPrice = 0
		}

		costBasis := holding.TotalQuantity * holding.AvgPrice
		currentValue := holding.TotalQuantity * currentPrice
		profitLoss := currentValue - costBasis

		profitLossPct := 0.0
		if costBasis != 0 {
			profitLossPct = profitLoss / costBasis * 100
		}

		valuation.Holdings = append(valuation.Holdings, models.HoldingValuation{
			Holding:       holding,
			CurrentPrice:  currentPrice,
			CurrentValue:  currentValue,
			ProfitLoss:    profitLoss,
			ProfitLossPct: profitLossPct,
			PriceKnown:    known,
		})

		valuation.TotalValue += currentValue
		valuation.TotalProfitLoss += profitLoss
	}

	totalCostBasis := valuation.TotalValue - valuation.TotalProfitLoss
	if totalCostBasis != 0 {
		valuation.TotalProfitLossPct = valuation.TotalProfitLoss / totalCostBasis * 100
	}
	return valuation
}

// NewPriceLookup builds a PriceLookup over a quote set. Matching is exact
// first (case-insensitive), then falls back to case-insensitive substring
// containment in either direction to bridge ticker vs. API-id naming
// (BTC vs. "bitcoin", XU100 vs. "XU100.IS"). Exact-first keeps a symbol
// that is itself a quote key from being captured by a longer near-match.
func NewPriceLookup(prices map[string]models.AssetPrice) PriceLookup {
	lowered := make(map[string]models.AssetPrice, len(prices))
	for _, price := range prices {
		lowered[strings.ToLower(price.Symbol)] = price
	}

	keys := make([]string, 0, len(lowered))
	for key := range lowered {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return func(symbol string) (float64, bool) {
		needle := strings.ToLower(symbol)
		if needle == "" {
			return 0, false
		}

		if price, ok := lowered[needle]; ok {
			return price.Price, true
		}

		// Deterministic fallback: first containment match in sorted key order.
		for _, key := range keys {
			if strings.Contains(key, needle) || strings.Contains(needle, key) {
				return lowered[key].Price, true
			}
		}
		return 0, false
	}
}
