package processors

import (
	"github.com/username/portfoly/backend/src/models"
)

// PriceLookup resolves a holding symbol to a current unit price. The second
// return reports whether a quote exists at all, so a genuine zero price is
// distinguishable from "unknown".
type PriceLookup func(symbol string) (float64, bool)

// HoldingsAggregator reduces a transaction history to net positions.
type HoldingsAggregator interface {
	Aggregate(transactions []models.Transaction) map[string]models.Holding
}

// Valuer prices holdings and computes profit/loss figures.
type Valuer interface {
	Valuate(holdings map[string]models.Holding, lookup PriceLookup) models.PortfolioValuation
}
