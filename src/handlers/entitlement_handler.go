package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/username/portfoly/backend/src/services"
	"github.com/username/portfoly/backend/src/utils"
)

type EntitlementHandler struct {
	entitlements *services.EntitlementService
}

func NewEntitlementHandler(entitlements *services.EntitlementService) *EntitlementHandler {
	return &EntitlementHandler{entitlements: entitlements}
}

func (h *EntitlementHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.entitlements.Status(), http.StatusOK)
}

func (h *EntitlementHandler) HandleGetLimits(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.entitlements.GetLimits(), http.StatusOK)
}

// HandleGetOfferings serves the product catalog and the feature list so a
// client can render the paywall in one round trip.
func (h *EntitlementHandler) HandleGetOfferings(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string]interface{}{
		"products": services.Products,
		"features": services.Features,
	}, http.StatusOK)
}

func (h *EntitlementHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductID string `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.entitlements.Purchase(r.Context(), payload.ProductID); err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownProduct):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrAlreadyEntitled):
			utils.SendJSONError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, services.ErrPurchaseFailed):
			utils.SendJSONError(w, err.Error(), http.StatusPaymentRequired)
		default:
			utils.SendJSONError(w, fmt.Sprintf("Error completing purchase: %v", err), http.StatusInternalServerError)
		}
		return
	}
	utils.SendJSON(w, h.entitlements.Status(), http.StatusOK)
}

// HandleRefresh re-reads the confirmed entitlement state from the vendor.
func (h *EntitlementHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.entitlements.Refresh(r.Context()); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error refreshing entitlements: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, h.entitlements.Status(), http.StatusOK)
}

// HandleCheckFeature answers whether the current tier unlocks one feature.
func (h *EntitlementHandler) HandleCheckFeature(w http.ResponseWriter, r *http.Request) {
	featureID := r.PathValue("id")
	if featureID == "" {
		utils.SendJSONError(w, "feature id is required", http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, map[string]bool{"allowed": h.entitlements.CanUseFeature(featureID)}, http.StatusOK)
}
