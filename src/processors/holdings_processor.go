package processors

import (
	"github.com/username/portfoly/backend/src/models"
)

// HoldingsProcessor derives per-symbol net positions from a transaction
// history. It is a pure function of its input: no state, safe to call
// concurrently, and it must agree bit-for-bit with the store-side
// aggregation in Store.GetPortfolioSummary.
type HoldingsProcessor struct{}

func NewHoldingsProcessor() *HoldingsProcessor {
	return &HoldingsProcessor{}
}

// Aggregate groups transactions by asset symbol and reduces each group to a
// Holding. Buys add to the net quantity, sells subtract. The average price
// is the arithmetic mean of the price field over every transaction in the
// group, sells included; this mirrors the store aggregation and is not a
// cost-basis method. Only positive net positions are returned: a fully
// exited position disappears rather than being flagged as closed.
//
// Transactions whose asset join is missing are grouped under
// models.UnknownSymbol instead of an empty key.
func (p *HoldingsProcessor) Aggregate(transactions []models.Transaction) map[string]models.Holding {
	type accumulator struct {
		name     string
		quantity float64
		priceSum float64
		count    int
	}

	groups := make(map[string]*accumulator)
	for _, tx := range transactions {
		symbol := tx.Symbol
		if symbol == "" {
			symbol = models.UnknownSymbol
		}

		acc, ok := groups[symbol]
		if !ok {
			acc = &accumulator{name: tx.AssetName}
			groups[symbol] = acc
		}

		switch tx.Type {
		case models.TransactionBuy:
			acc.quantity += tx.Quantity
		case models.TransactionSell:
			acc.quantity -= tx.Quantity
		default:
			continue
		}
		acc.priceSum += tx.Price
		acc.count++
	}

	holdings := make(map[string]models.Holding, len(groups))
	for symbol, acc := range groups {
		if acc.quantity <= 0 {
			continue
		}
		holdings[symbol] = models.Holding{
			Symbol:        symbol,
			Name:          acc.name,
			TotalQuantity: acc.quantity,
			AvgPrice:      acc.priceSum / float64(acc.count),
		}
	}
	return holdings
}
