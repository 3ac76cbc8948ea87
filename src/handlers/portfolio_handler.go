package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
	"github.com/username/portfoly/backend/src/processors"
	"github.com/username/portfoly/backend/src/services"
	"github.com/username/portfoly/backend/src/store"
	"github.com/username/portfoly/backend/src/utils"
)

type PortfolioHandler struct {
	store        *store.Store
	priceService services.PriceService
	holdings     processors.HoldingsAggregator
	valuation    processors.Valuer
	entitlements *services.EntitlementService
	notifier     services.Notifier
}

func NewPortfolioHandler(
	store *store.Store,
	priceService services.PriceService,
	holdings processors.HoldingsAggregator,
	valuation processors.Valuer,
	entitlements *services.EntitlementService,
	notifier services.Notifier,
) *PortfolioHandler {
	return &PortfolioHandler{
		store:        store,
		priceService: priceService,
		holdings:     holdings,
		valuation:    valuation,
		entitlements: entitlements,
		notifier:     notifier,
	}
}

func (h *PortfolioHandler) HandleGetPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.store.GetPortfolios(r.Context())
	if err != nil {
		// Store failures degrade to an empty collection.
		logger.L.Error("Error retrieving portfolios", "error", err)
		portfolios = nil
	}
	if portfolios == nil {
		portfolios = []models.Portfolio{}
	}
	utils.SendJSON(w, portfolios, http.StatusOK)
}

func (h *PortfolioHandler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Limit enforcement lives here, not in the resolver: the resolver only
	// declares the cap.
	limits := h.entitlements.GetLimits()
	if limits.MaxPortfolios > 0 {
		count, err := h.store.CountPortfolios(r.Context())
		if err != nil {
			utils.SendJSONError(w, fmt.Sprintf("Error counting portfolios: %v", err), http.StatusInternalServerError)
			return
		}
		if count >= limits.MaxPortfolios {
			utils.SendJSONError(w,
				fmt.Sprintf("portfolio limit reached (%d); upgrade to create more", limits.MaxPortfolios),
				http.StatusForbidden)
			return
		}
	}

	id, err := h.store.AddPortfolio(r.Context(), payload.Name, payload.Type)
	if err != nil {
		if errors.Is(err, store.ErrValidation) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error creating portfolio: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]int64{"id": id}, http.StatusCreated)
}

func (h *PortfolioHandler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid portfolio id", http.StatusBadRequest)
		return
	}

	if err := h.store.DeletePortfolio(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "portfolio not found", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error deleting portfolio %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]bool{"deleted": true}, http.StatusOK)
}

// HandleGetPortfolioSummary returns the store-side holdings pre-aggregation:
// net quantity and average price per symbol, no market data attached.
func (h *PortfolioHandler) HandleGetPortfolioSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid portfolio id", http.StatusBadRequest)
		return
	}

	holdings, err := h.store.GetPortfolioSummary(r.Context(), id)
	if err != nil {
		logger.L.Error("Error retrieving portfolio summary", "portfolioID", id, "error", err)
		holdings = nil
	}
	if holdings == nil {
		holdings = []models.Holding{}
	}
	utils.SendJSON(w, holdings, http.StatusOK)
}

// HandleGetPortfolioValuation recomputes holdings from the transaction
// history through the pure aggregator and prices them with current quotes.
func (h *PortfolioHandler) HandleGetPortfolioValuation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid portfolio id", http.StatusBadRequest)
		return
	}

	transactions, err := h.store.GetPortfolioTransactions(r.Context(), id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving transactions for portfolio %d: %v", id, err), http.StatusInternalServerError)
		return
	}

	holdings := h.holdings.Aggregate(transactions)
	lookup := h.buildLookup(r.Context())
	valuation := h.valuation.Valuate(holdings, lookup)

	// Refresh summary push, best effort. Empty portfolios stay quiet.
	if len(valuation.Holdings) > 0 {
		summary := services.PortfolioUpdateNotification(valuation.TotalValue, valuation.TotalProfitLossPct)
		if err := h.notifier.Notify(r.Context(), summary); err != nil {
			logger.L.Warn("portfolio update notification failed", "portfolioID", id, "error", err)
		}
	}

	utils.SendJSON(w, valuation, http.StatusOK)
}

// buildLookup fetches current quotes and aliases them under the display
// tickers of known assets, so a holding in BTC finds the quote published
// under its api_symbol "bitcoin". Price failures degrade to an empty quote
// set: every holding is then valued as price-unknown.
func (h *PortfolioHandler) buildLookup(ctx context.Context) processors.PriceLookup {
	prices, err := h.priceService.GetAllPrices(ctx)
	if err != nil {
		logger.L.Warn("price fetch failed, valuing holdings without quotes", "error", err)
		prices = map[string]models.AssetPrice{}
	}

	assets, err := h.store.GetAssets(ctx)
	if err != nil {
		logger.L.Warn("asset lookup failed, skipping ticker aliasing", "error", err)
		assets = nil
	}
	for _, asset := range assets {
		if _, ok := prices[asset.Symbol]; ok {
			continue
		}
		for key, quote := range prices {
			if strings.EqualFold(key, asset.APISymbol) {
				aliased := quote
				aliased.Symbol = asset.Symbol
				prices[asset.Symbol] = aliased
				break
			}
		}
	}

	return processors.NewPriceLookup(prices)
}

func (h *PortfolioHandler) HandleGetPortfolioHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid portfolio id", http.StatusBadRequest)
		return
	}

	points, err := h.store.GetPortfolioValueHistory(r.Context(), id)
	if err != nil {
		logger.L.Error("Error retrieving value history", "portfolioID", id, "error", err)
		points = nil
	}
	if points == nil {
		points = []models.ValuePoint{}
	}
	utils.SendJSON(w, points, http.StatusOK)
}

func (h *PortfolioHandler) HandleGetPortfolioStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid portfolio id", http.StatusBadRequest)
		return
	}

	stats, err := h.store.GetPortfolioStats(r.Context(), id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving stats for portfolio %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, stats, http.StatusOK)
}

// HandleExportData dumps the whole store. The ETag lets clients skip
// unchanged backups.
func (h *PortfolioHandler) HandleExportData(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.store.ExportData(r.Context())
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error exporting data: %v", err), http.StatusInternalServerError)
		return
	}

	if etag, err := utils.GenerateETag(bundle); err == nil {
		w.Header().Set("ETag", etag)
	}
	utils.SendJSON(w, bundle, http.StatusOK)
}

func (h *PortfolioHandler) HandleClearAllData(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAllData(r.Context()); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error clearing data: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]bool{"cleared": true}, http.StatusOK)
}

// pathID extracts an integer path value from the Go 1.22 pattern router.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
