package models

// Transaction types.
const (
	TransactionBuy  = "buy"
	TransactionSell = "sell"
)

// Portfolio groupings. "mixed" holds assets of more than one type.
const (
	PortfolioCrypto = "crypto"
	PortfolioBist   = "bist"
	PortfolioFund   = "fund"
	PortfolioMixed  = "mixed"
)

// UnknownSymbol is the sentinel grouping key for transactions whose asset
// row no longer exists (dangling asset_id after an asset-less insert).
const UnknownSymbol = "UNKNOWN"

// Portfolio is a free-standing grouping of transactions. Names are not
// unique; deletion does not cascade to transactions.
type Portfolio struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"created_at"`
}

// Asset is a tradable instrument. Symbol is the display ticker, APISymbol
// the lookup key understood by the price source (e.g. "bitcoin" for BTC).
type Asset struct {
	ID        int64  `json:"id"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	APISymbol string `json:"api_symbol"`
	Type      string `json:"type"`
}

// Transaction is an immutable history record of a buy or sell.
// Symbol/AssetName/PortfolioName are filled by joined reads only.
type Transaction struct {
	ID            int64   `json:"id"`
	Type          string  `json:"type"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	Date          int64   `json:"date"`
	PortfolioID   int64   `json:"portfolio_id"`
	AssetID       int64   `json:"asset_id"`
	Symbol        string  `json:"symbol,omitempty"`
	AssetName     string  `json:"asset_name,omitempty"`
	PortfolioName string  `json:"portfolio_name,omitempty"`
}

// AssetPrice is a best-effort current quote for one symbol.
type AssetPrice struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Change24h   float64 `json:"change24h"`
	LastUpdated int64   `json:"lastUpdated"`
}

// Holding is the derived net position in one asset within one portfolio.
// Never persisted; recomputed from the full transaction history.
type Holding struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	TotalQuantity float64 `json:"total_quantity"`
	AvgPrice      float64 `json:"avg_price"`
}

// HoldingValuation is a Holding enriched with a current quote.
// PriceKnown distinguishes "no quote available" from a genuine zero price;
// when false, CurrentPrice and CurrentValue are zero.
type HoldingValuation struct {
	Holding
	CurrentPrice  float64 `json:"current_price"`
	CurrentValue  float64 `json:"current_value"`
	ProfitLoss    float64 `json:"profit_loss"`
	ProfitLossPct float64 `json:"profit_loss_percentage"`
	PriceKnown    bool    `json:"price_known"`
}

// PortfolioValuation aggregates the valued holdings of one portfolio.
type PortfolioValuation struct {
	Holdings           []HoldingValuation `json:"holdings"`
	TotalValue         float64            `json:"total_value"`
	TotalProfitLoss    float64            `json:"total_profit_loss"`
	TotalProfitLossPct float64            `json:"total_profit_loss_percentage"`
}

// Alarm conditions.
const (
	AlarmAbove = "above"
	AlarmBelow = "below"
)

// PriceAlarm is an in-memory, per-session alert on one asset symbol.
type PriceAlarm struct {
	ID           int64   `json:"id"`
	AssetSymbol  string  `json:"assetSymbol"`
	TargetPrice  float64 `json:"targetPrice"`
	Condition    string  `json:"condition"`
	Active       bool    `json:"isActive"`
	CreatedAt    int64   `json:"createdAt"`
	CurrentPrice float64 `json:"currentPrice,omitempty"`
}

// ValuePoint is one entry of a portfolio's net-flow history: the signed
// cash flow (buys positive, sells negative) of a single date.
type ValuePoint struct {
	Date     int64   `json:"date"`
	DailyNet float64 `json:"daily_net"`
}

// PortfolioStats summarizes the transaction history of one portfolio.
type PortfolioStats struct {
	TotalTransactions    int64   `json:"total_transactions"`
	TotalInvestment      float64 `json:"total_investment"`
	TotalSales           float64 `json:"total_sales"`
	FirstTransactionDate int64   `json:"first_transaction_date"`
	LastTransactionDate  int64   `json:"last_transaction_date"`
}

// AssetPerformance summarizes all transactions of one asset across portfolios.
type AssetPerformance struct {
	TotalQuantity   float64 `json:"total_quantity"`
	AvgBuyPrice     float64 `json:"avg_buy_price"`
	TotalInvestment float64 `json:"total_investment"`
}

// ExportBundle is a full dump of the store for backup purposes.
type ExportBundle struct {
	Portfolios   []Portfolio   `json:"portfolios"`
	Assets       []Asset       `json:"assets"`
	Transactions []Transaction `json:"transactions"`
	ExportDate   int64         `json:"exportDate"`
	Version      string        `json:"version"`
}
