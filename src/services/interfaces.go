package services

import (
	"context"

	"github.com/username/portfoly/backend/src/models"
)

// PriceService fetches best-effort current quotes. Failures degrade to an
// empty quote set; callers treat missing symbols as "price unknown".
type PriceService interface {
	GetCryptoPrices(ctx context.Context, apiSymbols []string) (map[string]models.AssetPrice, error)
	GetBistPrices(symbols []string) map[string]models.AssetPrice
	GetAllPrices(ctx context.Context) (map[string]models.AssetPrice, error)
}

// Notification is a user-facing push message.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Notifier delivers notifications. Delivery is best effort: implementations
// log failures and the caller moves on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// PurchaseResult is the outcome of a purchase attempt at the vendor.
type PurchaseResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// EntitlementStatus is the confirmed entitlement state at the vendor.
type EntitlementStatus struct {
	IsPro     bool `json:"isPro"`
	IsPremium bool `json:"isPremium"`
	Tier      Tier `json:"tier"`
}

// PurchaseProvider is the payment backend capability. Two variants exist:
// the in-memory mock used in development and a stub point for the real
// vendor SDK. Selected once at startup, never by runtime branching.
type PurchaseProvider interface {
	Purchase(ctx context.Context, productID string) (PurchaseResult, error)
	CheckStatus(ctx context.Context) (EntitlementStatus, error)
}
