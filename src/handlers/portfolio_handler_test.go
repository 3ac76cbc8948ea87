package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/portfoly/backend/src/database"
	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
	"github.com/username/portfoly/backend/src/processors"
	"github.com/username/portfoly/backend/src/services"
	"github.com/username/portfoly/backend/src/store"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// stubPriceService serves a fixed quote set without touching the network.
// Like the real service it hands out a fresh copy per call, since callers
// decorate the map.
type stubPriceService struct {
	prices map[string]models.AssetPrice
}

func (s *stubPriceService) copy() map[string]models.AssetPrice {
	copied := make(map[string]models.AssetPrice, len(s.prices))
	for symbol, price := range s.prices {
		copied[symbol] = price
	}
	return copied
}

func (s *stubPriceService) GetCryptoPrices(ctx context.Context, apiSymbols []string) (map[string]models.AssetPrice, error) {
	return s.copy(), nil
}

func (s *stubPriceService) GetBistPrices(symbols []string) map[string]models.AssetPrice {
	return s.copy()
}

func (s *stubPriceService) GetAllPrices(ctx context.Context) (map[string]models.AssetPrice, error) {
	return s.copy(), nil
}

// recordingNotifier keeps every message for assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []services.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, notification services.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	titles := make([]string, 0, len(n.sent))
	for _, notification := range n.sent {
		titles = append(titles, notification.Title)
	}
	return titles
}

type testEnv struct {
	store        *store.Store
	entitlements *services.EntitlementService
	notifier     *recordingNotifier
	mux          *http.ServeMux
}

func newTestEnv(t *testing.T, prices map[string]models.AssetPrice) *testEnv {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { database.DB.Close() })

	dataStore := store.New(database.DB)
	entitlements := services.NewEntitlementService(services.NewMockPurchaseProvider())
	notifier := &recordingNotifier{}
	priceService := &stubPriceService{prices: prices}

	portfolioHandler := NewPortfolioHandler(dataStore, priceService,
		processors.NewHoldingsProcessor(), processors.NewValuationProcessor(), entitlements, notifier)
	transactionHandler := NewTransactionHandler(dataStore, entitlements, notifier)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/portfolios", portfolioHandler.HandleGetPortfolios)
	mux.HandleFunc("POST /api/portfolios", portfolioHandler.HandleCreatePortfolio)
	mux.HandleFunc("DELETE /api/portfolios/{id}", portfolioHandler.HandleDeletePortfolio)
	mux.HandleFunc("GET /api/portfolios/{id}/summary", portfolioHandler.HandleGetPortfolioSummary)
	mux.HandleFunc("GET /api/portfolios/{id}/valuation", portfolioHandler.HandleGetPortfolioValuation)
	mux.HandleFunc("POST /api/transactions", transactionHandler.HandleCreateTransaction)
	mux.HandleFunc("GET /api/export", portfolioHandler.HandleExportData)

	return &testEnv{store: dataStore, entitlements: entitlements, notifier: notifier, mux: mux}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func TestCreatePortfolioEnforcesFreeLimit(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, name := range []string{"First", "Second", "Third"} {
		rec := env.do(t, http.MethodPost, "/api/portfolios",
			map[string]string{"name": name, "type": models.PortfolioCrypto})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/portfolios",
		map[string]string{"name": "Fourth", "type": models.PortfolioCrypto})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Upgrading lifts the cap.
	require.NoError(t, env.entitlements.Purchase(context.Background(), "pro_version"))
	rec = env.do(t, http.MethodPost, "/api/portfolios",
		map[string]string{"name": "Fourth", "type": models.PortfolioCrypto})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreatePortfolioValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/portfolios",
		map[string]string{"name": "", "type": models.PortfolioCrypto})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/portfolios",
		map[string]string{"name": "X", "type": "bonds"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePortfolioNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodDelete, "/api/portfolios/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/portfolios/zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// The valuation endpoint must bridge a BTC holding to the quote published
// under the asset's api_symbol "bitcoin".
func TestValuationBridgesAPISymbol(t *testing.T) {
	env := newTestEnv(t, map[string]models.AssetPrice{
		"bitcoin": {Symbol: "bitcoin", Price: 50000},
	})
	ctx := context.Background()

	portfolioID, err := env.store.AddPortfolio(ctx, "Main", models.PortfolioCrypto)
	require.NoError(t, err)
	btc, err := env.store.GetAssetBySymbol(ctx, "BTC")
	require.NoError(t, err)
	_, err = env.store.AddTransaction(ctx, models.Transaction{
		Type: models.TransactionBuy, Quantity: 2, Price: 42000, Date: 1,
		PortfolioID: portfolioID, AssetID: btc.ID,
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/portfolios/1/valuation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var valuation models.PortfolioValuation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &valuation))
	require.Len(t, valuation.Holdings, 1)

	holding := valuation.Holdings[0]
	assert.True(t, holding.PriceKnown)
	assert.InDelta(t, 50000.0, holding.CurrentPrice, 1e-9)
	assert.InDelta(t, 100000.0, holding.CurrentValue, 1e-9)
	assert.InDelta(t, 16000.0, valuation.TotalProfitLoss, 1e-9)

	// A non-empty valuation pushes the refresh summary.
	assert.Contains(t, env.notifier.titles(), "Portfolio update")
}

func TestValuationOfEmptyPortfolioStaysQuiet(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.store.AddPortfolio(ctx, "Empty", models.PortfolioCrypto)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/portfolios/1/valuation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.notifier.titles())
}

// Valuations run concurrently in production; the ticker aliasing each
// request performs must never touch a map shared with another request.
func TestConcurrentValuationRequests(t *testing.T) {
	env := newTestEnv(t, map[string]models.AssetPrice{
		"bitcoin": {Symbol: "bitcoin", Price: 50000},
	})
	ctx := context.Background()

	portfolioID, err := env.store.AddPortfolio(ctx, "Main", models.PortfolioCrypto)
	require.NoError(t, err)
	btc, err := env.store.GetAssetBySymbol(ctx, "BTC")
	require.NoError(t, err)
	_, err = env.store.AddTransaction(ctx, models.Transaction{
		Type: models.TransactionBuy, Quantity: 1, Price: 42000, Date: 1,
		PortfolioID: portfolioID, AssetID: btc.ID,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/api/portfolios/1/valuation", nil)
			rec := httptest.NewRecorder()
			env.mux.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()
}

func TestTransactionDailyLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	portfolioID, err := env.store.AddPortfolio(ctx, "Main", models.PortfolioCrypto)
	require.NoError(t, err)
	btc, err := env.store.GetAssetBySymbol(ctx, "BTC")
	require.NoError(t, err)

	// The free cap counts rows dated today.
	now := time.Now().Unix()
	for i := 0; i < 10; i++ {
		rec := env.do(t, http.MethodPost, "/api/transactions", models.Transaction{
			Type: models.TransactionBuy, Quantity: 1, Price: 100, Date: now,
			PortfolioID: portfolioID, AssetID: btc.ID,
		})
		require.Equal(t, http.StatusCreated, rec.Code, "transaction %d", i)
	}

	rec := env.do(t, http.MethodPost, "/api/transactions", models.Transaction{
		Type: models.TransactionBuy, Quantity: 1, Price: 100, Date: now,
		PortfolioID: portfolioID, AssetID: btc.ID,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportCarriesETag(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	var bundle models.ExportBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Len(t, bundle.Assets, 6)
}
