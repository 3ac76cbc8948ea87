package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/portfoly/backend/src/services"
	"github.com/username/portfoly/backend/src/utils"
)

type AlarmHandler struct {
	alarmService *services.AlarmService
}

func NewAlarmHandler(alarmService *services.AlarmService) *AlarmHandler {
	return &AlarmHandler{alarmService: alarmService}
}

func (h *AlarmHandler) HandleGetAlarms(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.alarmService.List(), http.StatusOK)
}

func (h *AlarmHandler) HandleCreateAlarm(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AssetSymbol string  `json:"assetSymbol"`
		TargetPrice float64 `json:"targetPrice"`
		Condition   string  `json:"condition"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	alarm, err := h.alarmService.Create(payload.AssetSymbol, payload.TargetPrice, payload.Condition)
	if err != nil {
		if errors.Is(err, services.ErrAlarmsNotAllowed) {
			utils.SendJSONError(w, err.Error(), http.StatusForbidden)
			return
		}
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, alarm, http.StatusCreated)
}

func (h *AlarmHandler) HandleToggleAlarm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid alarm id", http.StatusBadRequest)
		return
	}

	alarm, err := h.alarmService.Toggle(id)
	if err != nil {
		utils.SendJSONError(w, "alarm not found", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, alarm, http.StatusOK)
}

func (h *AlarmHandler) HandleDeleteAlarm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid alarm id", http.StatusBadRequest)
		return
	}

	if err := h.alarmService.Delete(id); err != nil {
		utils.SendJSONError(w, "alarm not found", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, map[string]bool{"deleted": true}, http.StatusOK)
}
