package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
	"github.com/username/portfoly/backend/src/services"
	"github.com/username/portfoly/backend/src/store"
	"github.com/username/portfoly/backend/src/utils"
)

type AssetHandler struct {
	store        *store.Store
	entitlements *services.EntitlementService
}

func NewAssetHandler(store *store.Store, entitlements *services.EntitlementService) *AssetHandler {
	return &AssetHandler{store: store, entitlements: entitlements}
}

// HandleGetAssets lists all known assets, or runs a substring search when
// the q parameter is present.
func (h *AssetHandler) HandleGetAssets(w http.ResponseWriter, r *http.Request) {
	var (
		assets []models.Asset
		err    error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		assets, err = h.store.SearchAssets(r.Context(), q)
	} else {
		assets, err = h.store.GetAssets(r.Context())
	}
	if err != nil {
		logger.L.Error("Error retrieving assets", "error", err)
		assets = nil
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	utils.SendJSON(w, assets, http.StatusOK)
}

func (h *AssetHandler) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var asset models.Asset
	if err := json.NewDecoder(r.Body).Decode(&asset); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.store.AddAsset(r.Context(), asset)
	if err != nil {
		if errors.Is(err, store.ErrValidation) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error creating asset: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]int64{"id": id}, http.StatusCreated)
}

func (h *AssetHandler) HandleGetAssetBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		utils.SendJSONError(w, "asset symbol is required", http.StatusBadRequest)
		return
	}

	asset, err := h.store.GetAssetBySymbol(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "asset not found", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving asset %s: %v", symbol, err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, asset, http.StatusOK)
}

// HandleGetAssetPerformance returns the all-portfolios aggregate for one
// asset. Gated behind advanced analytics.
func (h *AssetHandler) HandleGetAssetPerformance(w http.ResponseWriter, r *http.Request) {
	if !h.entitlements.CanUseFeature("advanced_analytics") {
		utils.SendJSONError(w, "advanced analytics requires a paid tier", http.StatusForbidden)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	perf, err := h.store.GetAssetPerformance(r.Context(), id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving asset performance: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, perf, http.StatusOK)
}
