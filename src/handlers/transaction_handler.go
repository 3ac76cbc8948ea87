package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
	"github.com/username/portfoly/backend/src/services"
	"github.com/username/portfoly/backend/src/store"
	"github.com/username/portfoly/backend/src/utils"
)

type TransactionHandler struct {
	store        *store.Store
	entitlements *services.EntitlementService
	notifier     services.Notifier
}

func NewTransactionHandler(store *store.Store, entitlements *services.EntitlementService, notifier services.Notifier) *TransactionHandler {
	return &TransactionHandler{
		store:        store,
		entitlements: entitlements,
		notifier:     notifier,
	}
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// The daily cap counts from local midnight, so the quota resets at the
	// start of each calendar day rather than on a rolling 24h window.
	limits := h.entitlements.GetLimits()
	if limits.MaxDailyTransactions > 0 {
		midnight := startOfDay(time.Now())
		count, err := h.store.CountTransactionsSince(r.Context(), midnight)
		if err != nil {
			utils.SendJSONError(w, fmt.Sprintf("Error counting transactions: %v", err), http.StatusInternalServerError)
			return
		}
		if count >= limits.MaxDailyTransactions {
			utils.SendJSONError(w,
				fmt.Sprintf("daily transaction limit reached (%d); upgrade for unlimited transactions", limits.MaxDailyTransactions),
				http.StatusForbidden)
			return
		}
	}

	id, err := h.store.AddTransaction(r.Context(), tx)
	if err != nil {
		if errors.Is(err, store.ErrValidation) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error creating transaction: %v", err), http.StatusInternalServerError)
		return
	}

	// Best effort: a failed confirmation never fails the write.
	symbol := tx.Symbol
	if symbol == "" {
		if asset, err := h.assetSymbol(r, tx.AssetID); err == nil {
			symbol = asset
		}
	}
	if err := h.notifier.Notify(r.Context(), services.TransactionNotification(symbol, tx.Type, tx.Quantity)); err != nil {
		logger.L.Warn("transaction notification failed", "transactionID", id, "error", err)
	}

	utils.SendJSON(w, map[string]int64{"id": id}, http.StatusCreated)
}

func (h *TransactionHandler) assetSymbol(r *http.Request, assetID int64) (string, error) {
	assets, err := h.store.GetAssets(r.Context())
	if err != nil {
		return "", err
	}
	for _, asset := range assets {
		if asset.ID == assetID {
			return asset.Symbol, nil
		}
	}
	return "", store.ErrNotFound
}

func (h *TransactionHandler) HandleCreateTransactionBatch(w http.ResponseWriter, r *http.Request) {
	var txs []models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&txs); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(txs) == 0 {
		utils.SendJSONError(w, "empty transaction batch", http.StatusBadRequest)
		return
	}

	limits := h.entitlements.GetLimits()
	if limits.MaxDailyTransactions > 0 {
		midnight := startOfDay(time.Now())
		count, err := h.store.CountTransactionsSince(r.Context(), midnight)
		if err != nil {
			utils.SendJSONError(w, fmt.Sprintf("Error counting transactions: %v", err), http.StatusInternalServerError)
			return
		}
		if count+len(txs) > limits.MaxDailyTransactions {
			utils.SendJSONError(w,
				fmt.Sprintf("batch would exceed the daily transaction limit (%d)", limits.MaxDailyTransactions),
				http.StatusForbidden)
			return
		}
	}

	ids, err := h.store.AddTransactions(r.Context(), txs)
	if err != nil {
		if errors.Is(err, store.ErrValidation) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error creating transactions: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string][]int64{"ids": ids}, http.StatusCreated)
}

func (h *TransactionHandler) HandleGetAllTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.store.GetAllTransactions(r.Context())
	if err != nil {
		logger.L.Error("Error retrieving transactions", "error", err)
		transactions = nil
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	utils.SendJSON(w, transactions, http.StatusOK)
}

func (h *TransactionHandler) HandleGetPortfolioTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid portfolio id", http.StatusBadRequest)
		return
	}

	transactions, err := h.store.GetPortfolioTransactions(r.Context(), id)
	if err != nil {
		logger.L.Error("Error retrieving portfolio transactions", "portfolioID", id, "error", err)
		transactions = nil
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	utils.SendJSON(w, transactions, http.StatusOK)
}

func (h *TransactionHandler) HandleGetAssetTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	transactions, err := h.store.GetTransactionsByAsset(r.Context(), id)
	if err != nil {
		logger.L.Error("Error retrieving asset transactions", "assetID", id, "error", err)
		transactions = nil
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	utils.SendJSON(w, transactions, http.StatusOK)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateTransaction(r.Context(), id, updates); err != nil {
		switch {
		case errors.Is(err, store.ErrValidation):
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, store.ErrNotFound):
			utils.SendJSONError(w, "transaction not found", http.StatusNotFound)
		default:
			utils.SendJSONError(w, fmt.Sprintf("Error updating transaction %d: %v", id, err), http.StatusInternalServerError)
		}
		return
	}
	utils.SendJSON(w, map[string]bool{"updated": true}, http.StatusOK)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteTransaction(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "transaction not found", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error deleting transaction %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]bool{"deleted": true}, http.StatusOK)
}

func startOfDay(t time.Time) int64 {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).Unix()
}
