package handlers

import (
	"net/http"

	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
	"github.com/username/portfoly/backend/src/services"
	"github.com/username/portfoly/backend/src/utils"
)

type PriceHandler struct {
	priceService services.PriceService
	alarmService *services.AlarmService
}

func NewPriceHandler(priceService services.PriceService, alarmService *services.AlarmService) *PriceHandler {
	return &PriceHandler{
		priceService: priceService,
		alarmService: alarmService,
	}
}

// HandleGetPrices serves the current quote set. Each fetch doubles as the
// alarm evaluation tick: polling the prices endpoint is what drives alarms.
func (h *PriceHandler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.priceService.GetAllPrices(r.Context())
	if err != nil {
		logger.L.Warn("price fetch degraded", "error", err)
		prices = map[string]models.AssetPrice{}
	}

	if fired := h.alarmService.Evaluate(r.Context(), prices); len(fired) > 0 {
		logger.L.Info("price alarms fired during fetch", "count", len(fired))
	}

	utils.SendJSON(w, prices, http.StatusOK)
}
