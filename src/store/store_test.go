package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/portfoly/backend/src/database"
	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
	"github.com/username/portfoly/backend/src/processors"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// newTestStore opens a fresh database file per test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { database.DB.Close() })
	return New(database.DB)
}

func seededAsset(t *testing.T, s *Store, symbol string) *models.Asset {
	t.Helper()
	asset, err := s.GetAssetBySymbol(context.Background(), symbol)
	require.NoError(t, err)
	return asset
}

func TestSeededAssets(t *testing.T) {
	s := newTestStore(t)

	assets, err := s.GetAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 6)

	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		symbols = append(symbols, a.Symbol)
	}
	sort.Strings(symbols)
	assert.Equal(t, []string{"AKBNK", "BTC", "EREGL", "ETH", "GARAN", "XU100"}, symbols)

	btc := seededAsset(t, s, "BTC")
	assert.Equal(t, "bitcoin", btc.APISymbol)
	assert.Equal(t, "crypto", btc.Type)

	xu100 := seededAsset(t, s, "XU100")
	assert.Equal(t, "XU100.IS", xu100.APISymbol)
	assert.Equal(t, "bist", xu100.Type)
}

func TestPortfolioCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddPortfolio(ctx, "Main", models.PortfolioCrypto)
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = s.AddPortfolio(ctx, "", models.PortfolioCrypto)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.AddPortfolio(ctx, "Weird", "commodities")
	assert.ErrorIs(t, err, ErrValidation)

	portfolios, err := s.GetPortfolios(ctx)
	require.NoError(t, err)
	require.Len(t, portfolios, 1)
	assert.Equal(t, "Main", portfolios[0].Name)
	assert.NotZero(t, portfolios[0].CreatedAt)

	count, err := s.CountPortfolios(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.DeletePortfolio(ctx, id))
	assert.ErrorIs(t, s.DeletePortfolio(ctx, id), ErrNotFound)
}

func TestTransactionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	portfolioID, err := s.AddPortfolio(ctx, "Main", models.PortfolioCrypto)
	require.NoError(t, err)
	btc := seededAsset(t, s, "BTC")

	tx := models.Transaction{
		Type: models.TransactionBuy, Quantity: 2, Price: 42000, Date: 1700000000,
		PortfolioID: portfolioID, AssetID: btc.ID,
	}
	id, err := s.AddTransaction(ctx, tx)
	require.NoError(t, err)

	_, err = s.AddTransaction(ctx, models.Transaction{Type: "hold", Quantity: 1, Price: 1, Date: 1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.AddTransaction(ctx, models.Transaction{Type: models.TransactionBuy, Quantity: 0, Price: 1, Date: 1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.AddTransaction(ctx, models.Transaction{Type: models.TransactionBuy, Quantity: 1, Price: -5, Date: 1})
	assert.ErrorIs(t, err, ErrValidation)

	transactions, err := s.GetPortfolioTransactions(ctx, portfolioID)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "BTC", transactions[0].Symbol)
	assert.Equal(t, "Bitcoin", transactions[0].AssetName)
	assert.Equal(t, "Main", transactions[0].PortfolioName)

	require.NoError(t, s.UpdateTransaction(ctx, id, map[string]interface{}{"price": 43000.0}))
	err = s.UpdateTransaction(ctx, id, map[string]interface{}{"color": "red"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, s.UpdateTransaction(ctx, 9999, map[string]interface{}{"price": 1.0}), ErrNotFound)

	transactions, err = s.GetTransactionsByAsset(ctx, btc.ID)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.InDelta(t, 43000.0, transactions[0].Price, 1e-9)

	require.NoError(t, s.DeleteTransaction(ctx, id))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, id), ErrNotFound)
}

// Updates must hold values to the same rules as inserts. A row smuggled
// outside the buy/sell invariant would make the SQL summary (which treats
// every non-buy row as a sell) and the in-memory aggregator (which skips
// unrecognized types) disagree.
func TestUpdateTransactionValidatesValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	portfolioID, err := s.AddPortfolio(ctx, "Main", models.PortfolioCrypto)
	require.NoError(t, err)
	btc := seededAsset(t, s, "BTC")

	first, err := s.AddTransaction(ctx, models.Transaction{
		Type: models.TransactionBuy, Quantity: 1, Price: 50, Date: 1,
		PortfolioID: portfolioID, AssetID: btc.ID,
	})
	require.NoError(t, err)
	_, err = s.AddTransaction(ctx, models.Transaction{
		Type: models.TransactionBuy, Quantity: 2, Price: 150, Date: 2,
		PortfolioID: portfolioID, AssetID: btc.ID,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdateTransaction(ctx, first, map[string]interface{}{"type": "dividend"}), ErrValidation)
	assert.ErrorIs(t, s.UpdateTransaction(ctx, first, map[string]interface{}{"type": 7}), ErrValidation)
	assert.ErrorIs(t, s.UpdateTransaction(ctx, first, map[string]interface{}{"quantity": -5.0}), ErrValidation)
	assert.ErrorIs(t, s.UpdateTransaction(ctx, first, map[string]interface{}{"quantity": "lots"}), ErrValidation)
	assert.ErrorIs(t, s.UpdateTransaction(ctx, first, map[string]interface{}{"price": 0.0}), ErrValidation)
	assert.ErrorIs(t, s.UpdateTransaction(ctx, first, map[string]interface{}{"date": -1.0}), ErrValidation)

	// Valid values still pass, including the float64 shape a JSON body decodes to.
	require.NoError(t, s.UpdateTransaction(ctx, first, map[string]interface{}{"type": models.TransactionSell, "price": 60.0}))

	summary, err := s.GetPortfolioSummary(ctx, portfolioID)
	require.NoError(t, err)
	transactions, err := s.GetPortfolioTransactions(ctx, portfolioID)
	require.NoError(t, err)
	derived := processors.NewHoldingsProcessor().Aggregate(transactions)

	require.Len(t, summary, 1)
	memBTC := derived["BTC"]
	assert.InDelta(t, memBTC.TotalQuantity, summary[0].TotalQuantity, 1e-9,
		"store summary and processor must agree on net quantity after updates")
	assert.InDelta(t, memBTC.AvgPrice, summary[0].AvgPrice, 1e-9)
}

func TestAddTransactionsBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	portfolioID, err := s.AddPortfolio(ctx, "Main", models.PortfolioBist)
	require.NoError(t, err)
	garan := seededAsset(t, s, "GARAN")

	batch := []models.Transaction{
		{Type: models.TransactionBuy, Quantity: 10, Price: 60, Date: 1, PortfolioID: portfolioID, AssetID: garan.ID},
		{Type: models.TransactionBuy, Quantity: 5, Price: 64, Date: 2, PortfolioID: portfolioID, AssetID: garan.ID},
	}
	ids, err := s.AddTransactions(ctx, batch)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	// An invalid row rejects the whole batch before any insert.
	bad := append(batch, models.Transaction{Type: models.TransactionBuy, Quantity: -1, Price: 1, Date: 3})
	_, err = s.AddTransactions(ctx, bad)
	assert.ErrorIs(t, err, ErrValidation)

	transactions, err := s.GetPortfolioTransactions(ctx, portfolioID)
	require.NoError(t, err)
	assert.Len(t, transactions, 2)
}

// The SQL pre-aggregation and the in-memory aggregator implement the same
// rule; any drift between them is a bug.
func TestPortfolioSummaryAgreesWithProcessor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	portfolioID, err := s.AddPortfolio(ctx, "Main", models.PortfolioMixed)
	require.NoError(t, err)
	btc := seededAsset(t, s, "BTC")
	eth := seededAsset(t, s, "ETH")

	seed := []models.Transaction{
		{Type: models.TransactionBuy, Quantity: 1, Price: 40000, Date: 1, PortfolioID: portfolioID, AssetID: btc.ID},
		{Type: models.TransactionBuy, Quantity: 1, Price: 44000, Date: 2, PortfolioID: portfolioID, AssetID: btc.ID},
		{Type: models.TransactionSell, Quantity: 0.5, Price: 50000, Date: 3, PortfolioID: portfolioID, AssetID: btc.ID},
		{Type: models.TransactionBuy, Quantity: 10, Price: 2000, Date: 4, PortfolioID: portfolioID, AssetID: eth.ID},
		{Type: models.TransactionSell, Quantity: 10, Price: 2500, Date: 5, PortfolioID: portfolioID, AssetID: eth.ID},
	}
	_, err = s.AddTransactions(ctx, seed)
	require.NoError(t, err)

	summary, err := s.GetPortfolioSummary(ctx, portfolioID)
	require.NoError(t, err)

	transactions, err := s.GetPortfolioTransactions(ctx, portfolioID)
	require.NoError(t, err)
	derived := processors.NewHoldingsProcessor().Aggregate(transactions)

	require.Len(t, summary, 1, "fully exited ETH position must not appear")
	require.Len(t, derived, 1)

	sqlBTC := summary[0]
	memBTC := derived["BTC"]
	assert.Equal(t, "BTC", sqlBTC.Symbol)
	assert.InDelta(t, memBTC.TotalQuantity, sqlBTC.TotalQuantity, 1e-9)
	assert.InDelta(t, memBTC.AvgPrice, sqlBTC.AvgPrice, 1e-9)
	assert.InDelta(t, 1.5, sqlBTC.TotalQuantity, 1e-9)
	// Mean over all three rows, the sell included.
	assert.InDelta(t, (40000.0+44000.0+50000.0)/3, sqlBTC.AvgPrice, 1e-9)
}

func TestOrphanedTransactionsSurviveDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	portfolioID, err := s.AddPortfolio(ctx, "Doomed", models.PortfolioCrypto)
	require.NoError(t, err)
	btc := seededAsset(t, s, "BTC")

	_, err = s.AddTransaction(ctx, models.Transaction{
		Type: models.TransactionBuy, Quantity: 1, Price: 40000, Date: 1,
		PortfolioID: portfolioID, AssetID: btc.ID,
	})
	require.NoError(t, err)

	require.NoError(t, s.DeletePortfolio(ctx, portfolioID))

	transactions, err := s.GetAllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, transactions, 1, "deleting a portfolio does not cascade")
	assert.Empty(t, transactions[0].PortfolioName)
	assert.Equal(t, "BTC", transactions[0].Symbol)
}

func TestSummaryGroupsDanglingAssetUnderSentinel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	portfolioID, err := s.AddPortfolio(ctx, "Main", models.PortfolioMixed)
	require.NoError(t, err)

	// asset_id 9999 has no assets row.
	_, err = s.AddTransaction(ctx, models.Transaction{
		Type: models.TransactionBuy, Quantity: 3, Price: 10, Date: 1,
		PortfolioID: portfolioID, AssetID: 9999,
	})
	require.NoError(t, err)

	summary, err := s.GetPortfolioSummary(ctx, portfolioID)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, models.UnknownSymbol, summary[0].Symbol)
}

func TestValueHistoryAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	portfolioID, err := s.AddPortfolio(ctx, "Main", models.PortfolioBist)
	require.NoError(t, err)
	eregl := seededAsset(t, s, "EREGL")

	_, err = s.AddTransactions(ctx, []models.Transaction{
		{Type: models.TransactionBuy, Quantity: 100, Price: 40, Date: 100, PortfolioID: portfolioID, AssetID: eregl.ID},
		{Type: models.TransactionBuy, Quantity: 50, Price: 44, Date: 200, PortfolioID: portfolioID, AssetID: eregl.ID},
		{Type: models.TransactionSell, Quantity: 30, Price: 46, Date: 200, PortfolioID: portfolioID, AssetID: eregl.ID},
	})
	require.NoError(t, err)

	points, err := s.GetPortfolioValueHistory(ctx, portfolioID)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(100), points[0].Date)
	assert.InDelta(t, 4000.0, points[0].DailyNet, 1e-9)
	assert.InDelta(t, 50*44.0-30*46.0, points[1].DailyNet, 1e-9)

	total, err := s.GetTotalPortfolioValue(ctx, portfolioID)
	require.NoError(t, err)
	assert.InDelta(t, 4000.0+2200.0-1380.0, total, 1e-9)

	stats, err := s.GetPortfolioStats(ctx, portfolioID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalTransactions)
	assert.InDelta(t, 6200.0, stats.TotalInvestment, 1e-9)
	assert.InDelta(t, 1380.0, stats.TotalSales, 1e-9)
	assert.Equal(t, int64(100), stats.FirstTransactionDate)
	assert.Equal(t, int64(200), stats.LastTransactionDate)
}

func TestCountTransactionsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	portfolioID, err := s.AddPortfolio(ctx, "Main", models.PortfolioCrypto)
	require.NoError(t, err)
	btc := seededAsset(t, s, "BTC")

	_, err = s.AddTransactions(ctx, []models.Transaction{
		{Type: models.TransactionBuy, Quantity: 1, Price: 100, Date: 50, PortfolioID: portfolioID, AssetID: btc.ID},
		{Type: models.TransactionBuy, Quantity: 1, Price: 100, Date: 150, PortfolioID: portfolioID, AssetID: btc.ID},
		{Type: models.TransactionBuy, Quantity: 1, Price: 100, Date: 250, PortfolioID: portfolioID, AssetID: btc.ID},
	})
	require.NoError(t, err)

	count, err := s.CountTransactionsSince(ctx, 150)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "boundary date counts")

	ranged, err := s.GetTransactionsByDateRange(ctx, portfolioID, 100, 200)
	require.NoError(t, err)
	require.Len(t, ranged, 1, "BETWEEN is inclusive on both ends")
	assert.Equal(t, int64(150), ranged[0].Date)
}

func TestSearchAssets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	results, err := s.SearchAssets(ctx, "bank")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "AKBNK", results[0].Symbol)
	assert.Equal(t, "GARAN", results[1].Symbol)

	results, err = s.SearchAssets(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Bitcoin", results[0].Name)

	results, err = s.SearchAssets(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAssetPerformance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddPortfolio(ctx, "First", models.PortfolioCrypto)
	require.NoError(t, err)
	second, err := s.AddPortfolio(ctx, "Second", models.PortfolioCrypto)
	require.NoError(t, err)
	eth := seededAsset(t, s, "ETH")

	_, err = s.AddTransactions(ctx, []models.Transaction{
		{Type: models.TransactionBuy, Quantity: 2, Price: 2000, Date: 1, PortfolioID: first, AssetID: eth.ID},
		{Type: models.TransactionBuy, Quantity: 3, Price: 2400, Date: 2, PortfolioID: second, AssetID: eth.ID},
		{Type: models.TransactionSell, Quantity: 1, Price: 2600, Date: 3, PortfolioID: first, AssetID: eth.ID},
	})
	require.NoError(t, err)

	perf, err := s.GetAssetPerformance(ctx, eth.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, perf.TotalQuantity, 1e-9)
	assert.InDelta(t, (2000.0+2400.0+2600.0)/3, perf.AvgBuyPrice, 1e-9)
	assert.InDelta(t, 2*2000.0+3*2400.0, perf.TotalInvestment, 1e-9)
}

func TestExportAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	portfolioID, err := s.AddPortfolio(ctx, "Main", models.PortfolioCrypto)
	require.NoError(t, err)
	btc := seededAsset(t, s, "BTC")
	_, err = s.AddTransaction(ctx, models.Transaction{
		Type: models.TransactionBuy, Quantity: 1, Price: 100, Date: 1,
		PortfolioID: portfolioID, AssetID: btc.ID,
	})
	require.NoError(t, err)

	bundle, err := s.ExportData(ctx)
	require.NoError(t, err)
	assert.Len(t, bundle.Portfolios, 1)
	assert.Len(t, bundle.Assets, 6)
	assert.Len(t, bundle.Transactions, 1)
	assert.NotZero(t, bundle.ExportDate)
	assert.Equal(t, "1.0", bundle.Version)

	require.NoError(t, s.ClearAllData(ctx))

	count, err := s.CountPortfolios(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assets, err := s.GetAssets(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)
}
